package account

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"careregistry/access"
	"careregistry/apperr"
	"careregistry/db"
	"careregistry/outbox"
	"careregistry/validate"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "account: no active account found with the given credentials")
	// ErrInvalidToken signals a malformed, expired or already used token.
	ErrInvalidToken = apperr.New(apperr.ErrUnauthorized, "account: token is invalid or expired")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = apperr.New(apperr.ErrValidation, "account: password must be at least 8 characters")
	// ErrPasswordTooLong signals a password bcrypt cannot hash.
	ErrPasswordTooLong = apperr.New(apperr.ErrValidation, "account: password must be at most 72 bytes")
	// ErrPasswordMismatch signals that password and password2 differ.
	ErrPasswordMismatch = apperr.New(apperr.ErrValidation, "account: password fields didn't match")
	// ErrStaffOnly signals an administrative action by a non-staff caller.
	ErrStaffOnly = apperr.New(apperr.ErrForbidden, "account: staff only")
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
)

// Service handles registration, credentials and account administration.
type Service struct {
	pool     db.TxBeginner
	repo     Repository
	outbox   outbox.Writer
	tokens   *TokenIssuer
	sessions SessionStore
}

// NewService creates a new account service.
func NewService(pool db.TxBeginner, repo Repository, ob outbox.Writer, tokens *TokenIssuer, sessions SessionStore) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		outbox:   ob,
		tokens:   tokens,
		sessions: sessions,
	}
}

// Register creates a new account with no role flags.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return Account{}, err
	}
	if req.Password != req.Password2 {
		return Account{}, ErrPasswordMismatch
	}
	return s.create(ctx, req.Email, req.Name, req.Password, false)
}

// CreateStaff creates an administrative account. It is only reachable from
// the operator command line.
func (s *Service) CreateStaff(ctx context.Context, email, name, password string) (Account, error) {
	email = NormalizeEmail(email)
	if email == "" || name == "" {
		return Account{}, apperr.Validation("account: email and name are required")
	}
	return s.create(ctx, email, name, password, true)
}

func (s *Service) create(ctx context.Context, email, name, password string, staff bool) (Account, error) {
	if len(password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return Account{}, ErrPasswordTooLong
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("account: hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	acct, err := s.repo.CreateAccount(ctx, tx, CreateAccountParams{
		Email:        email,
		Name:         name,
		PasswordHash: string(passwordHash),
		IsStaff:      staff,
	})
	if err != nil {
		return Account{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicAccountRegistered, map[string]any{
		"account_id": acct.ID,
		"email":      acct.Email,
		"is_staff":   acct.IsStaff,
	}); err != nil {
		return Account{}, fmt.Errorf("account: enqueue registered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("account: commit: %w", err)
	}
	return acct, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenPair, Account, error) {
	if err := validate.Struct(req); err != nil {
		return TokenPair{}, Account{}, err
	}

	acct, err := s.repo.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, Account{}, ErrInvalidCredentials
		}
		return TokenPair{}, Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return TokenPair{}, Account{}, ErrInvalidCredentials
	}
	if !acct.IsActive {
		return TokenPair{}, Account{}, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, acct.ID)
	if err != nil {
		return TokenPair{}, Account{}, err
	}
	return pair, acct, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed, so replaying it fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subject, jti, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	owner, ok, err := s.sessions.Consume(ctx, jti)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok || owner != subject {
		return TokenPair{}, ErrInvalidToken
	}

	acct, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !acct.IsActive {
		return TokenPair{}, ErrInvalidToken
	}

	return s.issue(ctx, acct.ID)
}

// Authenticate resolves an access token to the caller it represents.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (access.Caller, error) {
	subject, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return access.Caller{}, err
	}

	acct, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return access.Caller{}, ErrInvalidToken
		}
		return access.Caller{}, err
	}
	if !acct.IsActive {
		return access.Caller{}, ErrInvalidToken
	}

	return access.Caller{AccountID: acct.ID, IsStaff: acct.IsStaff}, nil
}

// Get retrieves an account by ID.
func (s *Service) Get(ctx context.Context, accountID string) (Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// Delete removes an account together with its profiles and assignments.
func (s *Service) Delete(ctx context.Context, caller access.Caller, accountID string) error {
	if !caller.IsStaff {
		return ErrStaffOnly
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, accountID); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicAccountDeleted, map[string]any{
		"account_id": accountID,
		"deleted_by": caller.AccountID,
	}); err != nil {
		return fmt.Errorf("account: enqueue deleted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("account: commit: %w", err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, accountID string) (TokenPair, error) {
	pair, jti, err := s.tokens.Issue(accountID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.Save(ctx, jti, accountID, s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}
