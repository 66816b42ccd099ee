package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
)

const (
	auditTimeout    = 5 * time.Second
	DefaultTokenTTL = 2 * time.Hour
)

// AdminStore is the credential store as seen by AuthService.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	GetByID(ctx context.Context, id int64) (*domain.Admin, error)
	Create(ctx context.Context, email, passwordHash string) (*domain.Admin, error)
	Update(ctx context.Context, id int64, patch domain.AdminPatch) (*domain.Admin, error)
}

type AuthConfig struct {
	Secret   []byte
	TokenTTL time.Duration
	HashCost int
}

type LoginResult struct {
	Admin *domain.Admin
	Token string
}

// UpdateCredentialsInput carries a credential change. Nil or empty fields are left as they are.
type UpdateCredentialsInput struct {
	CurrentPassword string
	Email           *string
	Password        *string
}

// UpdateResult holds the updated account. Token is set only when the email changed.
type UpdateResult struct {
	Admin *domain.Admin
	Token string
}

type AuthService struct {
	store    AdminStore
	tokens   *TokenManager
	pub      publisher.Publisher
	log      *zap.Logger
	hashCost int
	decoy    string

	wg sync.WaitGroup
}

func NewAuthService(store AdminStore, pub publisher.Publisher, log *zap.Logger, cfg AuthConfig) (*AuthService, error) {
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		log.Warn("JWT_SECRET is not set, using a random secret; tokens will not survive a restart")
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = DefaultHashCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if pub == nil {
		pub = publisher.Nop{}
	}

	decoy, err := decoyHash(cfg.HashCost)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		store:    store,
		tokens:   NewTokenManager(secret, cfg.TokenTTL),
		pub:      pub,
		log:      log,
		hashCost: cfg.HashCost,
		decoy:    decoy,
	}, nil
}

func (s *AuthService) Tokens() *TokenManager { return s.tokens }

// Login verifies email and password and issues a session token. Unknown
// emails and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	admin, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrAdminNotFound) {
		checkPassword(s.decoy, password)
		return nil, s.loginFailed(email)
	}
	if err != nil {
		metrics.LoginAttempt("error")
		return nil, fmt.Errorf("find admin by email: %w", err)
	}

	if !checkPassword(admin.PasswordHash, password) {
		return nil, s.loginFailed(email)
	}

	token, err := s.tokens.Issue(admin.ID, admin.Email)
	if err != nil {
		metrics.LoginAttempt("error")
		return nil, err
	}

	metrics.LoginAttempt("success")
	s.audit(publisher.NewEvent(publisher.EventLoginSucceeded, admin.ID, admin.Email))
	return &LoginResult{Admin: admin, Token: token}, nil
}

func (s *AuthService) loginFailed(email string) error {
	metrics.LoginAttempt("invalid_credentials")
	s.audit(publisher.NewEvent(publisher.EventLoginFailed, 0, email))
	return ErrInvalidCredentials
}

// Authenticate verifies a session token and returns its claims.
func (s *AuthService) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

// Logout records the logout of the admin behind claims, if any. The token
// itself stays valid until it expires.
func (s *AuthService) Logout(claims *Claims) {
	if claims == nil {
		return
	}
	s.audit(publisher.NewEvent(publisher.EventLogout, claims.ID, claims.Email))
}

func (s *AuthService) GetSelf(ctx context.Context, id int64) (*domain.Admin, error) {
	admin, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAdminNotFound) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin %d: %w", id, err)
	}
	return admin, nil
}

// UpdateCredentials changes the email and/or password of admin id after
// re-checking the current password. Nothing is written if the check fails.
func (s *AuthService) UpdateCredentials(ctx context.Context, id int64, in UpdateCredentialsInput) (*UpdateResult, error) {
	if in.CurrentPassword == "" {
		return nil, ErrCurrentPasswordRequired
	}
	newEmail := nonEmpty(in.Email)
	newPassword := nonEmpty(in.Password)
	if newEmail == nil && newPassword == nil {
		return nil, ErrNothingToUpdate
	}
	if newPassword != nil && len(*newPassword) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	admin, err := s.GetSelf(ctx, id)
	if err != nil {
		return nil, err
	}
	if !checkPassword(admin.PasswordHash, in.CurrentPassword) {
		return nil, ErrCurrentPasswordIncorrect
	}

	patch := domain.AdminPatch{Email: newEmail}
	if newPassword != nil {
		hash, err := hashPassword(*newPassword, s.hashCost)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	updated, err := s.store.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrEmailConflict):
		return nil, ErrEmailConflict
	case errors.Is(err, repository.ErrAdminNotFound):
		return nil, ErrAdminNotFound
	case err != nil:
		return nil, fmt.Errorf("update admin %d: %w", id, err)
	}

	res := &UpdateResult{Admin: updated}
	if newEmail != nil {
		res.Token, err = s.tokens.Issue(updated.ID, updated.Email)
		if err != nil {
			return nil, err
		}
	}

	e := publisher.NewEvent(publisher.EventCredentialsUpdated, updated.ID, updated.Email)
	e.Detail = changedFields(patch)
	s.audit(e)
	return res, nil
}

// EnsureAdmin creates the account if no admin has that email yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, ErrMissingCredentials
	}

	_, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrAdminNotFound) {
		return false, fmt.Errorf("find admin by email: %w", err)
	}

	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		return false, err
	}
	admin, err := s.store.Create(ctx, email, hash)
	if errors.Is(err, repository.ErrEmailConflict) {
		return false, nil // created concurrently
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}

	s.audit(publisher.NewEvent(publisher.EventAdminCreated, admin.ID, admin.Email))
	return true, nil
}

// Close waits for outstanding audit events.
func (s *AuthService) Close() error {
	s.wg.Wait()
	return nil
}

func (s *AuthService) audit(e publisher.Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.pub.Publish(ctx, e); err != nil {
			s.log.Warn("audit event not published", zap.String("type", e.Type), zap.String("event_id", e.ID), zap.Error(err))
		}
	}()
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func changedFields(p domain.AdminPatch) string {
	switch {
	case p.Email != nil && p.PasswordHash != nil:
		return "email,password"
	case p.Email != nil:
		return "email"
	default:
		return "password"
	}
}
