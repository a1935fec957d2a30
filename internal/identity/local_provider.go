package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"mindwell/internal/domain"
	"mindwell/internal/repository"
)

// LocalProvider implementa Provider sin servicio hospedado: credenciales con
// bcrypt en Postgres y tokens de sesión JWT firmados localmente. Pensado para
// desarrollo y despliegues self-hosted.
type LocalProvider struct {
	logger      *zap.Logger
	credentials repository.CredentialRepository
	secret      []byte
	sessionTTL  time.Duration
	events      *broadcaster

	mu      sync.Mutex
	session *domain.Session
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var errTokenInvalid = errors.New("session token invalid")

func NewLocalProvider(logger *zap.Logger, credentials repository.CredentialRepository, secret string, sessionTTL time.Duration) *LocalProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &LocalProvider{
		logger:      logger,
		credentials: credentials,
		secret:      []byte(secret),
		sessionTTL:  sessionTTL,
		events:      newBroadcaster(),
	}
}

func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string, _ map[string]string) (*Identity, *domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := p.credentials.GetByEmail(ctx, email); err == nil {
		return nil, nil, &Error{Kind: KindDuplicateAccount, Message: "account already registered"}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	cred := domain.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.credentials.Create(ctx, cred); err != nil {
		// El proveedor es la fuente de verdad de unicidad: dos altas
		// concurrentes para el mismo email chocan aquí, no antes.
		return nil, nil, &Error{Kind: KindDuplicateAccount, Message: err.Error()}
	}

	return p.openSession(cred.ID, cred.Email)
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Identity, *domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	cred, err := p.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
		}
		return nil, nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, nil, &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
	}

	return p.openSession(cred.ID, cred.Email)
}

func (p *LocalProvider) EndSession(_ context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	p.events.emit(domain.EventSignedOut, "")
	return nil
}

func (p *LocalProvider) CurrentSession(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()

	if sess.Expired(time.Now().UTC()) {
		return nil, nil
	}
	if _, err := p.IdentityFromToken(ctx, sess.AccessToken); err != nil {
		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()
		return nil, nil
	}
	return sess, nil
}

func (p *LocalProvider) IdentityFromToken(_ context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" || len(p.secret) == 0 {
		return nil, errTokenInvalid
	}
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errTokenInvalid
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, errTokenInvalid
	}
	return &Identity{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *LocalProvider) SubscribeToChanges(fn ChangeFunc) func() {
	return p.events.subscribe(fn)
}

func (p *LocalProvider) openSession(identityID, email string) (*Identity, *domain.Session, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			ID:        uuid.NewString(),
			Issuer:    "mindwell",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.sessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, nil, err
	}

	sess := &domain.Session{
		IdentityID:  identityID,
		AccessToken: signed,
		IssuedAt:    now,
		ExpiresAt:   now.Add(p.sessionTTL),
	}
	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()
	p.events.emit(domain.EventSignedIn, identityID)

	return &Identity{ID: identityID, Email: email}, sess, nil
}
