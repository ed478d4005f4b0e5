package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 60)
	user := &domain.User{ID: "u1", Email: "student@astu.edu.et", Role: domain.RoleStudent}

	token, exp, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 59*time.Minute {
		t.Errorf("expiry too soon: %v", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != user.Email || claims.Role != domain.RoleStudent {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestTokenExpired(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tm := NewTokenManager("secret", 1).WithClock(func() time.Time { return now })

	token, _, err := tm.GenerateToken(&domain.User{ID: "u1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	now = base.Add(2 * time.Minute)
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken(&domain.User{ID: "u1", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("two", 5).ParseToken(token); err == nil {
		t.Fatal("expected signature mismatch")
	}
	if _, err := NewTokenManager("one", 5).ParseToken("not-a-token"); err == nil {
		t.Fatal("expected malformed token to fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("student123", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "student123"); err != nil {
		t.Errorf("ComparePassword(correct) = %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("ComparePassword(wrong) = nil")
	}
}
