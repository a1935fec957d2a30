package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"mindwell/internal/domain"
)

func newProviderServer(t *testing.T) (*httptest.Server, *HTTPProvider) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "taken@b.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "User already registered"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"expires_in":   3600,
			"user":         map[string]string{"id": "id-1", "email": req.Email},
		})
	})
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "password123" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"expires_in":   3600,
			"user":         map[string]string{"id": "id-1", "email": "a@b.com"},
		})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "invalid token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "id-1", "email": "a@b.com"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, NewHTTPProvider(server.URL, "test-key", zap.NewNop())
}

func TestHTTPProviderCreateAccountCachesSession(t *testing.T) {
	_, provider := newProviderServer(t)

	ident, sess, err := provider.CreateAccount(context.Background(), "a@b.com", "password123", map[string]string{"name": "Ann"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if ident.ID != "id-1" || ident.Email != "a@b.com" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if sess == nil || sess.AccessToken != "token-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	current, err := provider.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("current session failed: %v", err)
	}
	if current == nil || current.IdentityID != "id-1" {
		t.Fatalf("expected cached session, got %+v", current)
	}
}

func TestHTTPProviderClassifiesDuplicateAccount(t *testing.T) {
	_, provider := newProviderServer(t)

	_, _, err := provider.CreateAccount(context.Background(), "taken@b.com", "password123", nil)
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	if KindOf(err) != KindDuplicateAccount {
		t.Fatalf("expected KindDuplicateAccount, got %v (%v)", KindOf(err), err)
	}
	if err.Error() != "User already registered" {
		t.Fatalf("expected raw provider message preserved, got %q", err.Error())
	}
}

func TestHTTPProviderClassifiesInvalidCredentials(t *testing.T) {
	_, provider := newProviderServer(t)

	_, _, err := provider.Authenticate(context.Background(), "a@b.com", "wrong")
	if KindOf(err) != KindInvalidCredentials {
		t.Fatalf("expected KindInvalidCredentials, got %v (%v)", KindOf(err), err)
	}
}

func TestHTTPProviderNetworkFailureIsUnavailable(t *testing.T) {
	server, provider := newProviderServer(t)
	server.Close()

	_, _, err := provider.Authenticate(context.Background(), "a@b.com", "password123")
	if KindOf(err) != KindUnavailable {
		t.Fatalf("expected KindUnavailable on transport failure, got %v (%v)", KindOf(err), err)
	}
}

func TestHTTPProviderEndSessionEmitsSignedOut(t *testing.T) {
	_, provider := newProviderServer(t)

	if _, _, err := provider.Authenticate(context.Background(), "a@b.com", "password123"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	var events []string
	unsubscribe := provider.SubscribeToChanges(func(event, _ string) {
		events = append(events, event)
	})
	defer unsubscribe()

	if err := provider.EndSession(context.Background()); err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	if len(events) != 1 || events[0] != domain.EventSignedOut {
		t.Fatalf("expected SIGNED_OUT event, got %v", events)
	}

	current, err := provider.CurrentSession(context.Background())
	if err != nil || current != nil {
		t.Fatalf("expected no session after sign-out, got %+v, %v", current, err)
	}
}

func TestHTTPProviderSubscribeUnsubscribe(t *testing.T) {
	_, provider := newProviderServer(t)

	var count int
	unsubscribe := provider.SubscribeToChanges(func(_, _ string) { count++ })

	if _, _, err := provider.Authenticate(context.Background(), "a@b.com", "password123"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}

	unsubscribe()
	if _, _, err := provider.Authenticate(context.Background(), "a@b.com", "password123"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected no events after unsubscribe, got %d", count)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		msg    string
		want   ErrorKind
	}{
		{422, "User already registered", KindDuplicateAccount},
		{400, "Invalid login credentials", KindInvalidCredentials},
		{400, "Email not confirmed", KindEmailNotConfirmed},
		{404, "anything", KindAccountNotFound},
		{500, "internal", KindUnavailable},
		{400, "Database error saving new user", KindUnknown},
	}
	for _, tc := range cases {
		if got := classify(tc.status, tc.msg); got.Kind != tc.want {
			t.Fatalf("classify(%d, %q) = %v, want %v", tc.status, tc.msg, got.Kind, tc.want)
		}
	}
}
