// Package httphandler is the HTTP driving adapter serving the REST API and
// the OAuth connect flow.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// ScanTrigger runs one synchronous scan cycle. Satisfied by application.ScanService.
type ScanTrigger interface {
	ScanNow(ctx context.Context) error
}

// Connector completes the OAuth authorization-code flow. Satisfied by
// application.ConnectService.
type Connector interface {
	AuthCodeURL(state string) string
	Connect(ctx context.Context, code string) (*model.Account, error)
}

// Handler serves the REST API and the OAuth endpoints.
type Handler struct {
	accounts            driven.AccountStore
	activity            driven.ActivityStore
	scan                ScanTrigger
	connect             Connector
	postConnectRedirect string
	logger              *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
// postConnectRedirect is where the browser lands after a completed connect
// flow and after a redirect-style manual scan.
func NewHandler(
	accounts driven.AccountStore,
	activity driven.ActivityStore,
	scan ScanTrigger,
	connect Connector,
	postConnectRedirect string,
	logger *slog.Logger,
) *Handler {
	if postConnectRedirect == "" {
		postConnectRedirect = "/"
	}
	return &Handler{
		accounts:            accounts,
		activity:            activity,
		scan:                scan,
		connect:             connect,
		postConnectRedirect: postConnectRedirect,
		logger:              logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google", h.BeginAuth)
	mux.HandleFunc("GET /auth/google/callback", h.AuthCallback)

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("PUT /api/v1/accounts/{email}/preferences", h.UpdatePreferences)
	mux.HandleFunc("DELETE /api/v1/accounts/{email}", h.DeleteAccount)
	mux.HandleFunc("GET /api/v1/activity", h.ListActivity)
	mux.HandleFunc("GET /api/v1/activity/count", h.CountActivity)
	mux.HandleFunc("POST /api/v1/scan", h.TriggerScan)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListAccounts returns all connected accounts. Tokens are never serialized.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, toAccountResponse(account))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdatePreferences sets the reply language, tone, and auto-send flag for one account.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")

	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PreferredLanguage == "" || req.PreferredTone == "" {
		writeError(w, http.StatusBadRequest, "preferred_language and preferred_tone are required")
		return
	}

	err := h.accounts.UpdatePreferences(r.Context(), email, req.PreferredLanguage, req.PreferredTone, req.AutoSend)
	if errors.Is(err, driven.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update preferences", "account", email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	account, err := h.accounts.GetByEmail(r.Context(), email)
	if err != nil || account == nil {
		h.logger.Error("failed to reload account", "account", email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

// DeleteAccount disconnects a mailbox.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")

	if err := h.accounts.Delete(r.Context(), email); err != nil {
		h.logger.Error("failed to delete account", "account", email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListActivity returns activity records, optionally filtered by ?status=.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	status := model.ActivityStatus(r.URL.Query().Get("status"))
	if status != "" && !model.ValidActivityStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	records, err := h.activity.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list activity", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ActivityResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toActivityResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CountActivity returns the number of activity records, optionally filtered by ?status=.
func (h *Handler) CountActivity(w http.ResponseWriter, r *http.Request) {
	status := model.ActivityStatus(r.URL.Query().Get("status"))
	if status != "" && !model.ValidActivityStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	count, err := h.activity.CountByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to count activity", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// TriggerScan runs one scan cycle synchronously. It shares the scheduler's
// reconciliation routine, so a manual scan can never overlap a timer-fired
// one. With ?redirect=true the browser is sent back to the activity page
// instead of receiving JSON.
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scan.ScanNow(r.Context()); err != nil {
		h.logger.Error("manual scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, h.postConnectRedirect, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{Status: "completed"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
