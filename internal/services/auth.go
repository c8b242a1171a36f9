package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"finance-tracker/internal/auth"
	applog "finance-tracker/internal/log"
	appmail "finance-tracker/internal/mail"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// SessionDuration is how long a session lasts without activity.
const SessionDuration = 30 * 24 * time.Hour

const (
	maxUsername = 100
	maxEmail    = 200
	// bcrypt only reads the first 72 bytes of a password.
	maxPasswordBytes = 72
)

// dummyHash is compared against when the username does not exist so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = auth.HashPassword("finance-tracker-dummy-password")

// AuthService handles accounts, sessions and password resets.
type AuthService struct {
	db      *storage.DB
	tokens  *auth.ResetTokens
	mail    appmail.Queue
	baseURL string
	now     func() time.Time
	logger  *applog.Logger
}

// SessionState is the result of resuming a session from its token.
type SessionState struct {
	User      *models.User
	ExpiresAt time.Time
	// Renewed is set when the expiry was pushed forward and the cookie
	// should be reissued.
	Renewed bool
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. The user is not logged in afterwards.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if username == "" || password == "" || email == "" {
		return nil, invalid("username, email and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsername {
		return nil, invalid("username must be at most %d characters", maxUsername)
	}
	if utf8.RuneCountInString(email) > maxEmail {
		return nil, invalid("email must be at most %d characters", maxEmail)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, invalid("invalid email address")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = inTx(ctx, s.db, func(st *storage.Store) error {
		exists, err := st.UserExists(ctx, username, email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdentity
		}
		user, err = st.CreateUser(ctx, username, email, hash)
		if errors.Is(err, storage.ErrConflict) {
			return ErrDuplicateIdentity
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and opens a new session. Unknown users
// and wrong passwords fail identically.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, storageErr(err)
		}
		auth.CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(SessionDuration),
	}
	if err := s.db.CreateSession(ctx, session.Token, session.UserID, session.ExpiresAt); err != nil {
		return nil, storageErr(err)
	}
	return session, nil
}

// ResumeSession resolves a session token to its user. Sessions past the
// halfway point of their lifetime are renewed; a failed renewal keeps the
// current session.
func (s *AuthService) ResumeSession(ctx context.Context, token string) (*SessionState, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	info, err := s.db.ValidateSessionWithInfo(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr(err)
	}

	state := &SessionState{User: info.User, ExpiresAt: info.ExpiresAt}
	now := s.now()
	if info.ExpiresAt.Sub(now) < SessionDuration/2 {
		newExpiresAt := now.Add(SessionDuration)
		if err := s.db.RenewSession(ctx, token, newExpiresAt); err != nil {
			s.logger.WarnContext(ctx, "Failed to renew session", "error", err, "user_id", info.User.ID)
		} else {
			state.ExpiresAt = newExpiresAt
			state.Renewed = true
		}
	}
	return state, nil
}

// Logout ends the session identified by token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return storageErr(s.db.DeleteSession(ctx, token))
}

// RequestPasswordReset mails a reset link when email belongs to a user.
// The result is the same whether or not it does; delivery happens in the
// background and its outcome is never reported here.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return invalid("email is required")
	}

	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.InfoContext(ctx, "Password reset requested for unknown email")
			return nil
		}
		return storageErr(err)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return err
	}
	link := s.baseURL + "/reset_password/" + token
	s.mail.Enqueue(ctx, appmail.PasswordReset(user.Email, link))
	s.logger.InfoContext(ctx, "Password reset mail queued", "user_id", user.ID)
	return nil
}

// VerifyResetToken returns the email a valid reset token was issued for.
func (s *AuthService) VerifyResetToken(token string) (string, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	return email, nil
}

// ResetPassword overwrites the password of the user named by token and
// signs that user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.VerifyResetToken(token)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return invalid("password is required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return inTx(ctx, s.db, func(st *storage.Store) error {
		user, err := st.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}
		if err := st.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		return st.DeleteUserSessions(ctx, user.ID)
	})
}

func checkPassword(password string) error {
	if len(password) > maxPasswordBytes {
		return invalid("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// EnsureUser creates username unless any user exists yet. It reports
// whether an account was created.
func (s *AuthService) EnsureUser(ctx context.Context, username, password, email string) (bool, error) {
	count, err := s.db.UserCount(ctx)
	if err != nil {
		return false, storageErr(err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.Register(ctx, username, password, email); err != nil {
		return false, err
	}
	return true, nil
}
