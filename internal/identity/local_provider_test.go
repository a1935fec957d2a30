package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mindwell/internal/domain"
)

type mockCredentialRepo struct {
	byEmail map[string]domain.Credential
	err     error
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{byEmail: make(map[string]domain.Credential)}
}

func (m *mockCredentialRepo) Create(_ context.Context, cred domain.Credential) error {
	if m.err != nil {
		return m.err
	}
	m.byEmail[cred.Email] = cred
	return nil
}

func (m *mockCredentialRepo) GetByEmail(_ context.Context, email string) (domain.Credential, error) {
	if m.err != nil {
		return domain.Credential{}, m.err
	}
	cred, ok := m.byEmail[email]
	if !ok {
		return domain.Credential{}, pgx.ErrNoRows
	}
	return cred, nil
}

func newLocalProvider(repo *mockCredentialRepo) *LocalProvider {
	return NewLocalProvider(zap.NewNop(), repo, "test-secret", time.Hour)
}

func TestLocalProviderCreateAndAuthenticate(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	ident, sess, err := p.CreateAccount(context.Background(), "A@B.com", "password123", nil)
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	if ident.Email != "a@b.com" {
		t.Fatalf("expected normalized email, got %q", ident.Email)
	}
	if sess == nil || sess.AccessToken == "" {
		t.Fatalf("expected session token")
	}
	if stored := repo.byEmail["a@b.com"]; stored.PasswordHash == "password123" || stored.PasswordHash == "" {
		t.Fatalf("expected hashed password, got %q", stored.PasswordHash)
	}

	ident2, _, err := p.Authenticate(context.Background(), "a@b.com", "password123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if ident2.ID != ident.ID {
		t.Fatalf("expected same identity id, got %q vs %q", ident2.ID, ident.ID)
	}
}

func TestLocalProviderDuplicateAccount(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	if _, _, err := p.CreateAccount(context.Background(), "a@b.com", "password123", nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, _, err := p.CreateAccount(context.Background(), "a@b.com", "password456", nil)
	if KindOf(err) != KindDuplicateAccount {
		t.Fatalf("expected KindDuplicateAccount, got %v (%v)", KindOf(err), err)
	}
}

func TestLocalProviderWrongPassword(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	if _, _, err := p.CreateAccount(context.Background(), "a@b.com", "password123", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, _, err := p.Authenticate(context.Background(), "a@b.com", "wrong")
	if KindOf(err) != KindInvalidCredentials {
		t.Fatalf("expected KindInvalidCredentials, got %v (%v)", KindOf(err), err)
	}

	_, _, err = p.Authenticate(context.Background(), "ghost@b.com", "password123")
	if KindOf(err) != KindInvalidCredentials {
		t.Fatalf("unknown email must look like invalid credentials, got %v (%v)", KindOf(err), err)
	}
}

func TestLocalProviderTokenRoundTrip(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	ident, sess, err := p.CreateAccount(context.Background(), "a@b.com", "password123", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resolved, err := p.IdentityFromToken(context.Background(), sess.AccessToken)
	if err != nil {
		t.Fatalf("token resolution failed: %v", err)
	}
	if resolved.ID != ident.ID || resolved.Email != "a@b.com" {
		t.Fatalf("unexpected identity from token: %+v", resolved)
	}

	if _, err := p.IdentityFromToken(context.Background(), "garbage"); err == nil {
		t.Fatalf("expected invalid token to fail")
	}
}

func TestLocalProviderEndSession(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	if _, _, err := p.CreateAccount(context.Background(), "a@b.com", "password123", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var lastEvent string
	unsubscribe := p.SubscribeToChanges(func(event, _ string) { lastEvent = event })
	defer unsubscribe()

	if err := p.EndSession(context.Background()); err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	if lastEvent != domain.EventSignedOut {
		t.Fatalf("expected SIGNED_OUT event, got %q", lastEvent)
	}

	sess, err := p.CurrentSession(context.Background())
	if err != nil || sess != nil {
		t.Fatalf("expected no session, got %+v, %v", sess, err)
	}
}

func TestLocalProviderCurrentSessionAfterSignIn(t *testing.T) {
	repo := newMockCredentialRepo()
	p := newLocalProvider(repo)

	ident, _, err := p.CreateAccount(context.Background(), "a@b.com", "password123", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sess, err := p.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("current session failed: %v", err)
	}
	if sess == nil || sess.IdentityID != ident.ID {
		t.Fatalf("expected current session for %q, got %+v", ident.ID, sess)
	}
}
