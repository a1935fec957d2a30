package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindwell/internal/domain"
)

// HTTPProvider implementa Provider contra un servicio de identidad hospedado
// con API estilo GoTrue. Cachea la sesión vigente del proceso.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	events  *broadcaster

	mu      sync.Mutex
	session *domain.Session
}

// NewHTTPProvider construye el adaptador apuntando a la API del proveedor.
func NewHTTPProvider(baseURL, apiKey string, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		events:  newBroadcaster(),
	}
}

func (p *HTTPProvider) CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (*Identity, *domain.Session, error) {
	body := signupRequest{Email: email, Password: password, Data: metadata}
	var resp authResponse
	if err := p.post(ctx, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, nil, err
	}
	return p.adopt(resp)
}

func (p *HTTPProvider) Authenticate(ctx context.Context, email, password string) (*Identity, *domain.Session, error) {
	body := passwordGrantRequest{Email: email, Password: password}
	var resp authResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, nil, err
	}
	return p.adopt(resp)
}

// EndSession cierra la sesión remota. El cache local se descarta y el evento
// SIGNED_OUT se emite aunque la llamada remota falle: el cliente nunca debe
// quedarse presentando una identidad que ya pidió cerrar.
func (p *HTTPProvider) EndSession(ctx context.Context) error {
	p.mu.Lock()
	token := ""
	if p.session != nil {
		token = p.session.AccessToken
	}
	p.session = nil
	p.mu.Unlock()

	var err error
	if token != "" {
		err = p.post(ctx, "/auth/v1/logout", token, struct{}{}, nil)
	}
	p.events.emit(domain.EventSignedOut, "")
	return err
}

// CurrentSession revalida la sesión cacheada contra el proveedor. Cualquier
// ambigüedad se resuelve como no autenticado.
func (p *HTTPProvider) CurrentSession(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()

	if sess.Expired(time.Now().UTC()) {
		return nil, nil
	}
	if _, err := p.IdentityFromToken(ctx, sess.AccessToken); err != nil {
		if KindOf(err) == KindUnavailable {
			return nil, err
		}
		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()
		return nil, nil
	}
	return sess, nil
}

func (p *HTTPProvider) IdentityFromToken(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(req, accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, classify(resp.StatusCode, errorMessage(respBody))
	}

	var ident Identity
	if err := json.Unmarshal(respBody, &ident); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if ident.ID == "" {
		return nil, &Error{Kind: KindAccountNotFound, Message: "identity missing in provider response"}
	}
	return &ident, nil
}

func (p *HTTPProvider) SubscribeToChanges(fn ChangeFunc) func() {
	return p.events.subscribe(fn)
}

// adopt normaliza la respuesta de autenticación, cachea la sesión y emite el
// evento de inicio de sesión.
func (p *HTTPProvider) adopt(resp authResponse) (*Identity, *domain.Session, error) {
	if resp.User == nil || resp.User.ID == "" {
		return nil, nil, &Error{Kind: KindUnknown, Message: "provider returned no identity"}
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		IdentityID:  resp.User.ID,
		AccessToken: resp.AccessToken,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()
	p.events.emit(domain.EventSignedIn, resp.User.ID)
	return resp.User, sess, nil
}

func (p *HTTPProvider) post(ctx context.Context, path, token string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(req, token)

	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		perr := classify(resp.StatusCode, errorMessage(respBody))
		p.logger.Warn("identity provider error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", perr.Message),
		)
		return perr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (p *HTTPProvider) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// classify traduce status + mensaje crudo a un ErrorKind. Este es el único
// lugar del sistema donde se inspecciona texto del proveedor.
func classify(status int, msg string) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already registered"), strings.Contains(lower, "already exists"):
		return &Error{Kind: KindDuplicateAccount, Message: msg}
	case strings.Contains(lower, "invalid login credentials"), strings.Contains(lower, "invalid_grant"):
		return &Error{Kind: KindInvalidCredentials, Message: msg}
	case strings.Contains(lower, "email not confirmed"):
		return &Error{Kind: KindEmailNotConfirmed, Message: msg}
	case strings.Contains(lower, "user not found"), status == http.StatusNotFound:
		return &Error{Kind: KindAccountNotFound, Message: msg}
	case status >= 500:
		return &Error{Kind: KindUnavailable, Message: msg}
	default:
		return &Error{Kind: KindUnknown, Message: msg}
	}
}

func errorMessage(body []byte) string {
	var payload struct {
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
		ErrorCode   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, candidate := range []string{payload.Msg, payload.Message, payload.Description, payload.ErrorCode} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(body))
}

type signupRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *Identity `json:"user"`
}
