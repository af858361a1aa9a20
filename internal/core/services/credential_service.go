package services

import (
	"context"
	"errors"
	"sync"

	apperrors "streamctl/pkg/errors"
	"streamctl/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost keeps a verification in the tens of milliseconds on the
// appliance CPU.
const bcryptCost = 10

// PasswordHashStore persists the password hash. ConfigStore implements it.
type PasswordHashStore interface {
	PasswordHash() string
	SetPasswordHash(ctx context.Context, hash string) error
}

type CredentialStore struct {
	setupMu sync.Mutex
	hashes  PasswordHashStore
	cost    int
	logger  *zap.SugaredLogger
}

// CredentialOption configures a CredentialStore.
type CredentialOption func(*CredentialStore)

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) CredentialOption {
	return func(s *CredentialStore) {
		s.cost = cost
	}
}

func NewCredentialStore(hashes PasswordHashStore, logger *zap.SugaredLogger, opts ...CredentialOption) *CredentialStore {
	s := &CredentialStore{
		hashes: hashes,
		cost:   bcryptCost,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CredentialStore) HasPassword() bool {
	return s.hashes.PasswordHash() != ""
}

// Authenticate compares password with the stored hash. When no password has
// been configured yet, an acceptable password is stored and the attempt
// succeeds.
func (s *CredentialStore) Authenticate(ctx context.Context, password string) (bool, error) {
	hash := s.hashes.PasswordHash()
	if hash == "" {
		return s.firstRunSetup(ctx, password)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.WrapError(err, apperrors.ErrCodeInternal, "stored password hash is unusable")
	}
	return true, nil
}

// SetPassword replaces the stored hash. Issued tokens stay valid.
func (s *CredentialStore) SetPassword(ctx context.Context, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return apperrors.NewValidationError("password", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to hash password")
	}
	if err := s.hashes.SetPasswordHash(ctx, string(hash)); err != nil {
		return err
	}

	s.logger.Infow("password updated")
	return nil
}

func (s *CredentialStore) firstRunSetup(ctx context.Context, password string) (bool, error) {
	if validation.ValidatePassword(password) != nil {
		return false, nil
	}

	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	// Another session may have completed setup while we waited.
	if hash := s.hashes.PasswordHash(); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
	}

	if err := s.SetPassword(ctx, password); err != nil {
		return false, err
	}
	s.logger.Infow("initial password configured")
	return true, nil
}
