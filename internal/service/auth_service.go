package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const passwordMinLen = 6

// AuthService coordinates registration and login flows.
type AuthService struct {
	users       repository.UserRepository
	revocations auth.RevocationStore
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	logger      *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations auth.RevocationStore
	Logger      *zap.Logger
}

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	Identification *string
	Department     *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:       deps.UserRepo,
		revocations: deps.Revocations,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:  cfg.Auth.BcryptCost,
		logger:      deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a STUDENT account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	errs := fieldErrors{}
	errs.minLen("name", name, 2)
	errs.email("email", email)
	errs.minLen("password", in.Password, passwordMinLen)
	if err := errs.err(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("User with this email already exists", nil)
	} else if mapped := apperrors.FromStore(err, "user"); !apperrors.HasCode(mapped, apperrors.CodeNotFound) {
		return nil, mapped
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleStudent,
		Identification: optionalText(in.Identification),
		Department:     optionalText(in.Department),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err, "") {
			return nil, apperrors.NewConflict("User with this email already exists", nil)
		}
		return nil, apperrors.FromStore(err, "user")
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		mapped := apperrors.FromStore(err, "user")
		if apperrors.HasCode(mapped, apperrors.CodeNotFound) {
			return nil, apperrors.NewUnauthorized("Invalid email or password")
		}
		return nil, mapped
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("Invalid email or password")
	}
	return s.issue(user)
}

// Profile returns the caller's account.
func (s *AuthService) Profile(ctx context.Context, p *auth.Principal) (*domain.User, error) {
	if p == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if p.User != nil {
		return p.User, nil
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, apperrors.FromStore(err, "user")
	}
	return user, nil
}

// Logout revokes the token the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, p *auth.Principal) error {
	if p == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if s.revocations == nil || p.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.TokenExpiresAt); err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
