package delivery

import (
	"errors"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech_billing/internal/jokes"
	"github.com/goccy/go-json"
)

type createJokeRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// POST /jokes
func (h *Handler) CreateJoke(w http.ResponseWriter, r *http.Request) {
	var req createJokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	j, err := h.jokes.Add(r.Context(), req.Text, req.Category)
	if err != nil {
		if errors.Is(err, jokes.ErrEmptyJoke) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Log(logger.LogEntry{Level: "error", Message: "add joke failed", Error: err})
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusCreated, j)
}
