package security_test

import (
	"testing"
	"time"

	"github.com/Rrens/apex-chat/internal/security"
	"github.com/google/uuid"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", time.Hour)

	userID := uuid.New()
	email := "test@example.com"

	token, expires, err := manager.GenerateToken(userID, email)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("token is empty")
	}

	if d := time.Until(expires); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("unexpected expiry: %v from now", d)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID mismatch: got %v, want %v", claims.UserID, userID)
	}

	if claims.Email != email {
		t.Errorf("email mismatch: got %v, want %v", claims.Email, email)
	}

	if claims.ID == "" {
		t.Error("token ID is empty")
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", time.Hour)

	// Invalid token format
	_, err := manager.ValidateToken("invalid-token")
	if err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	// Empty token
	_, err = manager.ValidateToken("")
	if err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewJWTManager("different-secret-key-32-chars!!", time.Hour)
	token, _, _ := otherManager.GenerateToken(uuid.New(), "test@example.com")

	_, err = manager.ValidateToken(token)
	if err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", -time.Minute)

	token, _, err := manager.GenerateToken(uuid.New(), "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestJWTManager_TTL(t *testing.T) {
	ttl := 30 * time.Minute
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", ttl)

	if manager.TTL() != ttl {
		t.Errorf("TTL mismatch: got %v, want %v", manager.TTL(), ttl)
	}
}
