package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech_billing/internal/billing"
	"github.com/Vovarama1992/speech_billing/internal/conversion"
	"github.com/Vovarama1992/speech_billing/internal/gateway"
	"github.com/Vovarama1992/speech_billing/internal/jokes"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/notificator"
	"github.com/Vovarama1992/speech_billing/internal/packages"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
	"github.com/Vovarama1992/speech_billing/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const defaultListLimit = 50

type Converter interface {
	Convert(ctx context.Context, userID, messageID int64, req tasks.Request) (*conversion.Outcome, error)
}

type Handler struct {
	tasks    tasks.Repo
	ledger   ledger.Repo
	billing  billing.Service
	flow     Converter
	packages packages.Service
	jokes    jokes.Service
	notify   notificator.Notificator
	log      *logger.ZapLogger
}

// NewHandler: pkgs может быть nil, тогда маршруты пакетов не регистрируются.
func NewHandler(
	taskRepo tasks.Repo,
	ledgerRepo ledger.Repo,
	billingSvc billing.Service,
	flow Converter,
	pkgs packages.Service,
	notify notificator.Notificator,
	log *logger.ZapLogger,
) *Handler {
	return &Handler{
		tasks:    taskRepo,
		ledger:   ledgerRepo,
		billing:  billingSvc,
		flow:     flow,
		packages: pkgs,
		notify:   notify,
		log:      log,
	}
}

// WithJokes включает маршрут пополнения базы анекдотов.
func (h *Handler) WithJokes(s jokes.Service) *Handler {
	h.jokes = s
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// GET /tasks/{task_id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.log.Log(logger.LogEntry{Level: "error", Message: "get task failed", Error: err})
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GET /users/{user_id}/tasks?limit=N
func (h *Handler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	list, err := h.tasks.ListByUser(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "list tasks failed", Error: err})
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /balances/{user_id}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	b, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			writeError(w, http.StatusNotFound, "balance not found")
			return
		}
		h.log.Log(logger.LogEntry{Level: "error", Message: "get balance failed", Error: err})
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	history, err := h.billing.History(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "warn", Message: "balance history failed", Error: err})
	}
	if history == nil {
		history = []*ledger.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    b.UserID,
		"balance":    b.Balance,
		"updated_at": b.UpdatedAt,
		"history":    history,
	})
}

// POST /balances/{user_id}/topup {"amount": 100, "reason": "manual"}
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.Reason == "" {
		req.Reason = "admin topup"
	}

	b, err := h.billing.TopUp(r.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			writeError(w, http.StatusNotFound, "balance not found")
			return
		}
		h.log.Log(logger.LogEntry{Level: "error", Message: "topup failed", Error: err})
		writeError(w, http.StatusInternalServerError, "topup failed")
		return
	}

	text := fmt.Sprintf("✅ Баланс пополнен на %d кредитов.\n\n%s", req.Amount, billing.FormatBalance(b))
	if err := h.notify.UserNotify(r.Context(), userID, text); err != nil {
		h.log.Log(logger.LogEntry{Level: "warn", Message: "topup user notify failed", Error: err})
	}

	writeJSON(w, http.StatusOK, b)
}

// POST /tasks {"user_id": 1, "kind": "TEXT_TO_SPEECH", "payload": "..."}
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int64  `json:"user_id"`
		Kind    string `json:"kind"`
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	kind, err := tasks.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	taskReq, err := tasks.NewRequest(kind, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.flow.Convert(r.Context(), req.UserID, time.Now().UnixMilli(), taskReq)
	if err != nil {
		h.writeConvertError(w, out, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeConvertError(w http.ResponseWriter, out *conversion.Outcome, err error) {
	var taskID string
	if out != nil {
		taskID = out.TaskID
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, conversion.ErrUserBlocked):
		status = http.StatusForbidden
	case errors.Is(err, conversion.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, gateway.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, conversion.ErrTaskFailed):
		status = http.StatusUnprocessableEntity
	default:
		h.log.Log(logger.LogEntry{Level: "error", Message: "convert failed", Error: err})
	}

	writeJSON(w, status, map[string]string{
		"error":   err.Error(),
		"task_id": taskID,
	})
}
