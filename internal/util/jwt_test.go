package util

import (
	"testing"
	"time"

	"sat_prep_backend/internal/model"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Name: "张三", Email: "zhang@example.com", Role: model.Student}
	user.ID = 42

	token, err := GenerateJWT(user, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Role != model.Student {
		t.Errorf("Role = %q, want student", claims.Role)
	}
	if claims.Email != "zhang@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	user := &model.User{Email: "a@b.com", Role: model.Student}
	user.ID = 1

	token, err := GenerateJWT(user, "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ParseJWT(token, "secret-b"); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestJWTExpired(t *testing.T) {
	user := &model.User{Email: "a@b.com", Role: model.Student}
	user.ID = 1

	token, err := GenerateJWT(user, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatal("expected expiration error")
	}
}
