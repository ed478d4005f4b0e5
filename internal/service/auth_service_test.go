package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func newAuthService(users *fakeUserRepo, revocations auth.RevocationStore) *AuthService {
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}}
	return NewAuthService(cfg, AuthDependencies{UserRepo: users, Revocations: revocations})
}

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUserRepo()
	svc := newAuthService(users, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{
		Name:           "Jane Roe",
		Email:          "  Jane@ASTU.edu.et ",
		Password:       "secret1",
		Identification: strp("ASTU/2024/002"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.Role != domain.RoleStudent {
		t.Fatalf("registration must create students, got %s", res.User.Role)
	}
	if res.User.Email != "jane@astu.edu.et" {
		t.Fatalf("email not normalised: %q", res.User.Email)
	}
	if res.User.PasswordHash == "secret1" || res.Token == "" {
		t.Fatalf("password stored in clear or token missing")
	}
	claims, err := svc.TokenManager().ParseToken(res.Token)
	if err != nil || claims.UserID != res.User.ID || claims.Role != domain.RoleStudent {
		t.Fatalf("unexpected claims %+v, %v", claims, err)
	}

	if _, err := svc.Register(ctx, RegisterInput{Name: "Jane Again", Email: "jane@astu.edu.et", Password: "secret2"}); errCode(err) != apperrors.CodeConflict {
		t.Fatalf("duplicate email should conflict, got %v", err)
	}

	if _, err := svc.Login(ctx, "JANE@astu.edu.et", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = svc.Login(ctx, "jane@astu.edu.et", "wrong")
	if errCode(err) != apperrors.CodeUnauth {
		t.Fatalf("wrong password should be unauthorized, got %v", err)
	}
	_, unknownErr := svc.Login(ctx, "nobody@astu.edu.et", "secret1")
	if apperrors.ToDomainError(unknownErr).Message != apperrors.ToDomainError(err).Message {
		t.Fatalf("unknown email and wrong password must be indistinguishable")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), nil)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "J", Email: "not-an-email", Password: "123"})
	if errCode(err) != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := errDetails(err)[field]; !ok {
			t.Errorf("missing detail for %s", field)
		}
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	users := newFakeUserRepo()
	revocations := &memoryRevocations{}
	svc := newAuthService(users, revocations)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Name: "Jane Roe", Email: "jane@astu.edu.et", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := svc.TokenManager().ParseToken(res.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := &auth.Principal{
		UserID:         res.User.ID,
		Role:           res.User.Role,
		TokenID:        claims.ID,
		TokenExpiresAt: claims.ExpiresAt.Time,
	}

	profile, err := svc.Profile(ctx, p)
	if err != nil || profile.Email != "jane@astu.edu.et" {
		t.Fatalf("profile: %+v, %v", profile, err)
	}
	if err := svc.Logout(ctx, p); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if revoked, _ := revocations.IsRevoked(ctx, claims.ID); !revoked {
		t.Fatalf("token not revoked")
	}
}
