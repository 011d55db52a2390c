package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"corebank/internal/audit"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type AuditHandler struct {
	repo audit.Repository
}

func NewAuditHandler(repo audit.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

type auditLogResponse struct {
	ID            uint64    `json:"id"`
	RequestID     string    `json:"request_id"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor"`
	AccountID     string    `json:"account_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Message       *string   `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recent serves GET /audit-logs?limit=N, newest first.
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "validation_failed", ErrValidationFailed)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	logs, err := h.repo.GetRecentAuditLogs(ctx, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]auditLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, auditLogResponse{
			ID:            l.ID,
			RequestID:     l.RequestID,
			Action:        l.Action,
			Status:        l.Status,
			Actor:         l.Actor,
			AccountID:     l.AccountID,
			TransactionID: l.TransactionID,
			Message:       l.Message,
			CreatedAt:     l.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
