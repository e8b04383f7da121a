package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AccountResponse is the JSON representation of a connected account.
// Token material is deliberately absent.
type AccountResponse struct {
	EmailAddress      string `json:"email_address"`
	PreferredLanguage string `json:"preferred_language"`
	PreferredTone     string `json:"preferred_tone"`
	AutoSend          bool   `json:"auto_send"`
	ConnectedAt       string `json:"connected_at"`
	UpdatedAt         string `json:"updated_at"`
}

// PreferencesRequest is the JSON body for the update preferences endpoint.
type PreferencesRequest struct {
	PreferredLanguage string `json:"preferred_language"`
	PreferredTone     string `json:"preferred_tone"`
	AutoSend          bool   `json:"auto_send"`
}

// ActivityResponse is the JSON representation of one reply attempt.
type ActivityResponse struct {
	ID           int64  `json:"id"`
	AccountEmail string `json:"account_email"`
	MessageID    string `json:"message_id"`
	Subject      string `json:"subject"`
	ReplyText    string `json:"reply_text"`
	Status       string `json:"status"`
	Detail       string `json:"detail,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// CountResponse is the JSON representation of the activity count endpoint.
type CountResponse struct {
	Count int `json:"count"`
}

// ScanResponse is the JSON representation of a completed manual scan.
type ScanResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// toAccountResponse converts a domain Account to its JSON representation.
func toAccountResponse(account model.Account) AccountResponse {
	return AccountResponse{
		EmailAddress:      account.EmailAddress,
		PreferredLanguage: account.Language(),
		PreferredTone:     account.Tone(),
		AutoSend:          account.AutoSend,
		ConnectedAt:       account.ConnectedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toActivityResponse converts a domain ActivityRecord to its JSON representation.
func toActivityResponse(rec model.ActivityRecord) ActivityResponse {
	return ActivityResponse{
		ID:           rec.ID,
		AccountEmail: rec.AccountEmail,
		MessageID:    rec.MessageID,
		Subject:      rec.Subject,
		ReplyText:    rec.ReplyText,
		Status:       string(rec.Status),
		Detail:       rec.Detail,
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
