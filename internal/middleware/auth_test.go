package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/storage/memory"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken(testSecret, "u1", model.RoleWorker, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("Expected subject u1, got %s", claims.Subject)
	}
	if claims.Role != model.RoleWorker {
		t.Errorf("Expected role worker, got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Error("Expected a token id for revocation")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewToken(testSecret, "u1", model.RoleCitizen, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); err == nil {
		t.Error("Expected error for wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := NewToken(testSecret, "u1", model.RoleCitizen, -time.Minute)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("Expected error for expired token")
	}
}

func authProbe(t *testing.T) (http.Handler, *string, *model.Role) {
	t.Helper()
	var gotUser string
	var gotRole model.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return next, &gotUser, &gotRole
}

func TestAuthAcceptsHeaderToken(t *testing.T) {
	next, gotUser, gotRole := authProbe(t)
	h := Auth(testSecret, nil)(next)

	token, _ := NewToken(testSecret, "u1", model.RoleAdmin, time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if *gotUser != "u1" || *gotRole != model.RoleAdmin {
		t.Errorf("Expected u1/admin in context, got %s/%s", *gotUser, *gotRole)
	}
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	next, gotUser, _ := authProbe(t)
	h := Auth(testSecret, nil)(next)

	token, _ := NewToken(testSecret, "u1", model.RoleCitizen, time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if *gotUser != "u1" {
		t.Errorf("Expected u1, got %s", *gotUser)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	next, _, _ := authProbe(t)
	h := Auth(testSecret, nil)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	store := memory.New()
	defer store.Close()

	next, _, _ := authProbe(t)
	h := Auth(testSecret, store)(next)

	token, _ := NewToken(testSecret, "u1", model.RoleCitizen, time.Hour)
	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if err := store.Revoke(context.Background(), claims.ID, "u1", time.Hour); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for revoked token, got %d", w.Code)
	}
}
