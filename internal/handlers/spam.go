package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/r-ms/detect-spam/internal/classifier"
	"github.com/r-ms/detect-spam/pkg/logging/logging"

	"go.uber.org/zap"
)

// Checker classifies a single text.
type Checker interface {
	Check(ctx context.Context, text string) (classifier.Result, error)
}

type checkSpamRequest struct {
	Text *string `json:"text"`
}

// SpamHandler serves POST /check_spam.
type SpamHandler struct {
	checker Checker
}

func NewSpamHandler(checker Checker) *SpamHandler {
	return &SpamHandler{checker: checker}
}

// CheckSpam classifies the posted text. Only backend failures produce a
// 500; model output that could not be parsed still yields a 200.
func (h *SpamHandler) CheckSpam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req checkSpamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "Field 'text' is required")
		return
	}

	res, err := h.checker.Check(ctx, *req.Text)
	if err != nil {
		logger.Error("check_spam failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error processing request: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}
