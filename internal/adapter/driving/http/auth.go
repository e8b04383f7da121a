package httphandler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// stateCookie carries the anti-forgery nonce across the consent round trip.
const stateCookie = "ernesco_oauth_state"

// BeginAuth starts the connect flow: it sets a short-lived state cookie and
// redirects the browser to the provider consent page.
func (h *Handler) BeginAuth(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.connect.AuthCodeURL(state), http.StatusFound)
}

// AuthCallback finishes the connect flow: it verifies the state nonce,
// exchanges the authorization code, and redirects to the configured target.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	// Expire the nonce; it is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	account, err := h.connect.Connect(r.Context(), code)
	if err != nil {
		h.logger.Error("mailbox connect failed", "error", err)
		writeError(w, http.StatusBadGateway, "authorization failed")
		return
	}

	h.logger.Info("mailbox connected", "account", account.EmailAddress)
	http.Redirect(w, r, h.postConnectRedirect, http.StatusSeeOther)
}
