// Package handlers implements the HTTP front door: routing targets for
// every page, session middleware, flash notices and template rendering.
package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	applog "finance-tracker/internal/log"
	"finance-tracker/internal/models"
	"finance-tracker/internal/services"

	"golang.org/x/time/rate"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure Handlers.
type Options struct {
	TemplateDir  string
	SecureCookie bool
	Location     *time.Location
	Logger       *applog.Logger
	// RateLimit and RateBurst throttle credential and reset-mail forms per client.
	RateLimit rate.Limit
	RateBurst int
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	Health     Pinger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	svc          *services.Services
	templateDir  string
	secureCookie bool
	loc          *time.Location
	logger       *applog.Logger
	limiter      *rateLimiter
	trustProxy   bool
	health       Pinger
	funcs        template.FuncMap
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *services.Services, opts Options) *Handlers {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 10
	}
	h := &Handlers{
		svc:          svc,
		templateDir:  opts.TemplateDir,
		secureCookie: opts.SecureCookie,
		loc:          opts.Location,
		logger:       opts.Logger.WithComponent("http"),
		limiter:      newRateLimiter(opts.RateLimit, opts.RateBurst),
		trustProxy:   opts.TrustProxy,
		health:       opts.Health,
	}
	h.funcs = templateFuncs(h.loc)
	return h
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// View is the envelope every template receives.
type View struct {
	Title   string
	User    *models.User
	Flashes []Flash
	Data    any
}

// render executes base.html together with viewName. Flashes pending in the
// cookie are shown and cleared; extra notices are appended.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName, title string, data any, extra ...Flash) {
	tmpl, err := template.New("base.html").Funcs(h.funcs).ParseFiles(
		filepath.Join(h.templateDir, "base.html"),
		filepath.Join(h.templateDir, viewName),
	)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Template error", "error", err, "view", viewName)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	view := View{
		Title:   title,
		User:    GetUserFromContext(r),
		Flashes: append(h.popFlashes(w, r), extra...),
		Data:    data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", view); err != nil {
		applog.FromContext(r.Context()).Error("Template execution error", "error", err, "view", viewName)
	}
}

// ErrorData feeds error.html.
type ErrorData struct {
	Status  int
	Heading string
	Message string
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error.html", http.StatusText(status), ErrorData{
		Status:  status,
		Heading: http.StatusText(status),
		Message: message,
	})
}

// NotFound renders the 404 view.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).Error("Request failed", "error", err)
	h.renderError(w, r, http.StatusInternalServerError, "Something went wrong on our side. Please try again later.")
}

// Health reports database reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).Error("Health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// userMessage turns a service error into a notice fit for display.
// Storage failures never leak their detail.
func userMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrStorage):
		return "Something went wrong. Please try again."
	case errors.Is(err, services.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": ")
		if msg == "" {
			return "Invalid input."
		}
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	case errors.Is(err, services.ErrDuplicateIdentity):
		return "Username or Email already exists!"
	case errors.Is(err, services.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, services.ErrInvalidOrExpiredToken):
		return "The reset link is invalid or has expired."
	case errors.Is(err, services.ErrDuplicateCategory):
		return "Category already exists!!"
	case errors.Is(err, services.ErrInvalidAmount):
		return "Please enter a valid, non-negative amount."
	case errors.Is(err, services.ErrInvalidDate):
		return "Please enter a valid date that is not in the future."
	case errors.Is(err, services.ErrCategoryTypeMismatch):
		return "The category type does not match the transaction type!"
	case errors.Is(err, services.ErrForbidden):
		return "Unauthorized Access!"
	case errors.Is(err, services.ErrUnknownCategory):
		return "Please choose one of your own categories."
	case errors.Is(err, services.ErrNotFound):
		return "The requested record was not found."
	}
	return "Something went wrong. Please try again."
}

// logIfStorage records the detail of storage failures before they are
// reduced to a generic notice.
func logIfStorage(r *http.Request, err error) {
	if errors.Is(err, services.ErrStorage) || !services.IsDomainError(err) {
		applog.FromContext(r.Context()).Error("Operation failed", "error", err)
	}
}
