package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	applog "finance-tracker/internal/log"
	"finance-tracker/internal/services"
)

// AuthMiddleware wraps handlers to require authentication. Sessions past
// the halfway point of their lifetime are renewed and the cookie reissued.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.redirectToLogin(w, r)
			return
		}

		state, err := h.svc.Auth.ResumeSession(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				h.clearSessionCookie(w)
				h.redirectToLogin(w, r)
				return
			}
			h.serverError(w, r, err)
			return
		}
		if state.Renewed {
			h.setSessionCookie(w, cookie.Value, state.ExpiresAt)
		}

		ctx := context.WithValue(r.Context(), UserContextKey, state.User)
		logger := applog.FromContext(ctx).With("user_id", state.User.ID)
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AnonymousOnly sends already signed-in callers to the dashboard.
func (h *Handlers) AnonymousOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.signedIn(r) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) signedIn(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	_, err = h.svc.Auth.ResumeSession(r.Context(), cookie.Value)
	return err == nil
}

func (h *Handlers) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	h.addFlash(w, r, FlashInfo, "Please log in to access this page.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
