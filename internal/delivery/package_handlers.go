package delivery

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/goccy/go-json"
)

// GET /packages?all=1
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("all") == ""

	list, err := h.packages.List(r.Context(), onlyActive)
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "list packages failed", Error: err})
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if list == nil {
		list = []*packages.Package{}
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /packages
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var pkg packages.Package
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.packages.Create(r.Context(), &pkg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

// PATCH /packages/{id}
func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var pkg packages.Package
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	pkg.ID = id

	if err := h.packages.Update(r.Context(), &pkg); err != nil {
		if errors.Is(err, packages.ErrPackageNotFound) {
			writeError(w, http.StatusNotFound, "package not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// POST /payments/yookassa
// Тело уведомления не доверенное: статус перепроверяется у провайдера.
// Ответ не 200 заставляет YooKassa повторить уведомление.
func (h *Handler) YooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event  string `json:"event"`
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Object.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid notification")
		return
	}

	p, b, err := h.packages.ConfirmPayment(r.Context(), req.Object.ID)
	switch {
	case err == nil:
		text := fmt.Sprintf("✅ Оплата прошла, начислено %d кредитов.\n\n%s", p.Credits, billing.FormatBalance(b))
		if nErr := h.notify.UserNotify(r.Context(), p.UserID, text); nErr != nil {
			h.log.Log(logger.LogEntry{Level: "warn", Message: "payment user notify failed", Error: nErr})
		}
	case errors.Is(err, packages.ErrPaymentNotFound), errors.Is(err, packages.ErrPaymentNotSucceeded):
		h.log.Log(logger.LogEntry{Level: "info", Message: "payment notification ignored: " + req.Event, Error: err})
	default:
		h.log.Log(logger.LogEntry{Level: "error", Message: "confirm payment failed", Error: err})
		writeError(w, http.StatusInternalServerError, "confirm failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
