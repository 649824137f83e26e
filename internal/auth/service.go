package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// TokenPair is returned by sign-in and refresh.
type TokenPair struct {
	UserID       string `json:"userID"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUpInput carries the fields accepted at registration.
type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Surname  string
}

// Service implements the credential and token lifecycle.
type Service struct {
	store    Store
	hasher   Hasher
	tokens   Tokens
	notifier Notifier
	logger   *slog.Logger
	resetURL string
	// dummyHash is verified against when the email is unknown so that
	// sign-in takes comparable time either way.
	dummyHash string
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithResetURL sets the link prefix used in reset emails; the token is
// appended as the "token" query parameter.
func WithResetURL(u string) Option {
	return func(s *Service) { s.resetURL = u }
}

// NewService wires a Service from its collaborators.
func NewService(store Store, hasher Hasher, tokens Tokens, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if h, err := hasher.Hash("timing-equaliser"); err == nil {
		s.dummyHash = h
	}
	return s
}

// SignUp registers a new active account with the default role.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	existing, err := s.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, s.internal(ctx, "sign up lookup", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "sign up hash", err)
	}
	user, err := s.store.CreateUser(ctx, &User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Surname:      in.Surname,
		Role:         DefaultRole,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "sign up create", err)
	}
	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))
	return user, nil
}

// SignIn verifies the password, then the account status, and only then
// issues tokens.
func (s *Service) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.checkPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, Forbidden(msgDeactivated)
	}
	return s.issuePair(ctx, user.ID)
}

// Refresh exchanges a refresh token for a new pair bound to the same subject.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := s.tokens.Verify(PurposeRefresh, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, subject)
	if err != nil {
		return nil, s.internal(ctx, "refresh lookup", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	if !user.Active {
		return nil, Forbidden(msgDeactivated)
	}
	return s.issuePair(ctx, user.ID)
}

// SendResetToken mails a reset token to email when it is registered. The
// returned confirmation is the same whether or not the email exists.
func (s *Service) SendResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", s.internal(ctx, "reset lookup", err)
	}
	if user == nil {
		s.logger.DebugContext(ctx, "reset requested for unknown email")
		return msgResetRequested, nil
	}
	token, err := s.tokens.Issue(PurposeReset, user.ID)
	if err != nil {
		return "", s.internal(ctx, "issue reset token", err)
	}
	if err := s.notifier.Send(ctx, user.Email, "Password reset", s.resetBody(token)); err != nil {
		s.logger.ErrorContext(ctx, "send reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", newError(KindDelivery, ErrDelivery.Message, err)
	}
	return msgResetRequested, nil
}

// ResetPassword replaces the password of the reset token's subject.
// Previously issued tokens stay valid until they expire.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	subject, err := s.tokens.Verify(PurposeReset, resetToken)
	if err != nil {
		return err
	}
	user, err := s.store.GetUserByID(ctx, subject)
	if err != nil {
		return s.internal(ctx, "reset lookup", err)
	}
	if user == nil {
		return ErrUnauthorized
	}
	return s.setPassword(ctx, user, newPassword)
}

// UpdatePassword changes the password of id after re-verifying current.
func (s *Service) UpdatePassword(ctx context.Context, id, current, next, callerID string) error {
	user, err := s.ownedUser(ctx, id, callerID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return newError(KindInvalidCredential, msgWrongPassword, nil)
	}
	return s.setPassword(ctx, user, next)
}

// UpdateEmail changes the email of id after checking the current one.
func (s *Service) UpdateEmail(ctx context.Context, id, current, next, callerID string) (*User, error) {
	user, err := s.ownedUser(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if user.Email != current {
		return nil, newError(KindInvalidCredential, msgWrongEmail, nil)
	}
	if next == current {
		return user, nil
	}
	taken, err := s.store.GetUserByEmail(ctx, next)
	if err != nil {
		return nil, s.internal(ctx, "update email lookup", err)
	}
	if taken != nil {
		return nil, ErrDuplicateEmail
	}
	updated, err := s.store.UpdateEmail(ctx, user.ID, user.Version, next)
	if err != nil {
		return nil, s.storeErr(ctx, "update email", err)
	}
	return updated, nil
}

// Deactivate marks the caller's own account inactive.
func (s *Service) Deactivate(ctx context.Context, id, callerID string) error {
	user, err := s.ownedUser(ctx, id, callerID)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}
	if _, err := s.store.SetActive(ctx, user.ID, user.Version, false); err != nil {
		return s.storeErr(ctx, "deactivate", err)
	}
	s.logger.InfoContext(ctx, "account deactivated", slog.String("user_id", user.ID))
	return nil
}

// Activate re-enables an account after verifying its password.
func (s *Service) Activate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.checkPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.Active {
		return user, nil
	}
	updated, err := s.store.SetActive(ctx, user.ID, user.Version, true)
	if err != nil {
		return nil, s.storeErr(ctx, "activate", err)
	}
	s.logger.InfoContext(ctx, "account activated", slog.String("user_id", user.ID))
	return updated, nil
}

// Profile returns the account with the given id.
func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, s.internal(ctx, "profile lookup", err)
	}
	if user == nil {
		return nil, NotFound(msgUserNotFound)
	}
	return user, nil
}

// checkPassword resolves email and verifies password, failing with the same
// error for an unknown email and a wrong password.
func (s *Service) checkPassword(ctx context.Context, email, password string) (*User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "credential lookup", err)
	}
	if user == nil {
		if s.dummyHash != "" {
			s.hasher.Verify(password, s.dummyHash)
		}
		return nil, Unauthorized(msgInvalidLogin)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, Unauthorized(msgInvalidLogin)
	}
	return user, nil
}

func (s *Service) ownedUser(ctx context.Context, id, callerID string) (*User, error) {
	if callerID == "" || callerID != id {
		return nil, Unauthorized(msgNotOwner)
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, s.internal(ctx, "user lookup", err)
	}
	if user == nil {
		return nil, NotFound(msgUserNotFound)
	}
	return user, nil
}

func (s *Service) setPassword(ctx context.Context, user *User, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}
	if _, err := s.store.UpdatePasswordHash(ctx, user.ID, user.Version, hash); err != nil {
		return s.storeErr(ctx, "update password", err)
	}
	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return nil
}

func (s *Service) issuePair(ctx context.Context, subject string) (*TokenPair, error) {
	access, err := s.tokens.Issue(PurposeAccess, subject)
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}
	refresh, err := s.tokens.Issue(PurposeRefresh, subject)
	if err != nil {
		return nil, s.internal(ctx, "issue refresh token", err)
	}
	return &TokenPair{UserID: subject, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) resetBody(token string) string {
	var b strings.Builder
	b.WriteString("A password reset was requested for your account.\n\n")
	if s.resetURL != "" {
		sep := "?"
		if strings.Contains(s.resetURL, "?") {
			sep = "&"
		}
		fmt.Fprintf(&b, "Open %s%stoken=%s to choose a new password.\n", s.resetURL, sep, token)
	} else {
		fmt.Fprintf(&b, "Reset token: %s\n", token)
	}
	b.WriteString("\nIf you did not ask for this, ignore this message.\n")
	return b.String()
}

// storeErr keeps domain errors raised by the store (not found, conflict,
// duplicate email) and turns everything else into an internal error.
func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	wrapped := wrapStore(err)
	if KindOf(wrapped) == KindInternal {
		s.logger.ErrorContext(ctx, op, slog.Any("error", err))
	}
	return wrapped
}

func (s *Service) internal(ctx context.Context, op string, err error) error {
	if KindOf(err) != KindInternal {
		return err
	}
	s.logger.ErrorContext(ctx, op, slog.Any("error", err))
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
