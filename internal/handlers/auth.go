package handlers

import (
	"errors"
	"net/http"
	"strings"

	applog "finance-tracker/internal/log"
	"finance-tracker/internal/services"
)

// AuthForm carries submitted credential form values back to the view.
type AuthForm struct {
	Username string
	Email    string
}

// ResetForm feeds reset_password.html.
type ResetForm struct {
	Token string
}

// Home renders the landing page, or sends signed-in users to the dashboard.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "home.html", "Welcome", nil)
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", "Register", AuthForm{})
}

// Register handles the registration form submission.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "register.html", "Register", AuthForm{}, Flash{FlashError, "Invalid form submission"})
		return
	}
	form := AuthForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
	}

	_, err := h.svc.Auth.Register(r.Context(), form.Username, r.FormValue("password"), form.Email)
	if err != nil {
		logIfStorage(r, err)
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", "Register", form, Flash{FlashError, userMessage(err)})
		return
	}

	applog.FromContext(r.Context()).Info("User registered", "username", form.Username)
	h.addFlash(w, r, FlashSuccess, "You are registered successfully!!")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", "Login", AuthForm{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", "Login", AuthForm{}, Flash{FlashError, "Invalid form submission"})
		return
	}
	form := AuthForm{Username: strings.TrimSpace(r.FormValue("username"))}

	session, err := h.svc.Auth.Authenticate(r.Context(), form.Username, r.FormValue("password"))
	if err != nil {
		logIfStorage(r, err)
		if errors.Is(err, services.ErrInvalidCredentials) {
			applog.FromContext(r.Context()).Warn("Failed login", "username", form.Username)
		}
		h.render(w, r, http.StatusUnauthorized, "login.html", "Login", form, Flash{FlashError, userMessage(err)})
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.svc.Auth.Logout(r.Context(), cookie.Value); err != nil {
			applog.FromContext(r.Context()).Error("Failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ForgotPasswordForm renders the reset request page.
func (h *Handlers) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot_password.html", "Forgot Password", AuthForm{})
}

// ForgotPassword queues a reset link. The response does not reveal
// whether the address is registered.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "forgot_password.html", "Forgot Password", AuthForm{}, Flash{FlashError, "Invalid form submission"})
		return
	}
	form := AuthForm{Email: strings.TrimSpace(r.FormValue("email"))}

	if err := h.svc.Auth.RequestPasswordReset(r.Context(), form.Email); err != nil {
		logIfStorage(r, err)
		h.render(w, r, http.StatusUnprocessableEntity, "forgot_password.html", "Forgot Password", form, Flash{FlashError, userMessage(err)})
		return
	}

	h.addFlash(w, r, FlashSuccess, "Email sent! (Check your spam folder)")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ResetPasswordForm renders the new-password page for a valid link.
func (h *Handlers) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.svc.Auth.VerifyResetToken(token); err != nil {
		h.addFlash(w, r, FlashError, userMessage(err))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "reset_password.html", "Reset Password", ResetForm{Token: token})
}

// ResetPassword stores the new password.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	form := ResetForm{Token: token}
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "reset_password.html", "Reset Password", form, Flash{FlashError, "Invalid form submission"})
		return
	}

	password := r.FormValue("password")
	if confirm, ok := r.Form["confirm_password"]; ok && confirm[0] != password {
		h.render(w, r, http.StatusUnprocessableEntity, "reset_password.html", "Reset Password", form, Flash{FlashError, "Passwords do not match."})
		return
	}

	err := h.svc.Auth.ResetPassword(r.Context(), token, password)
	switch {
	case errors.Is(err, services.ErrInvalidOrExpiredToken):
		h.addFlash(w, r, FlashError, userMessage(err))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	case err != nil:
		logIfStorage(r, err)
		h.render(w, r, http.StatusUnprocessableEntity, "reset_password.html", "Reset Password", form, Flash{FlashError, userMessage(err)})
		return
	}

	h.addFlash(w, r, FlashSuccess, "Your password has been updated! You can now login.")
	http.Redirect(w, r, "/login", http.StatusFound)
}
