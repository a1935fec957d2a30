package service

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mindwell/internal/domain"
	"mindwell/internal/identity"
	"mindwell/internal/state"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Mensajes visibles al usuario. Los kinds desconocidos pasan el texto del
// proveedor tal cual.
const (
	msgEmailRequired    = "Email is required."
	msgEmailInvalid     = "Please enter a valid email address."
	msgPasswordRequired = "Password is required."
	msgPasswordShort    = "Password must be at least 8 characters."
	msgNameRequired     = "Name is required."
	msgDuplicate        = "An account with this email already exists."
	msgInvalidLogin     = "Invalid email or password. Please try again."
	msgUnconfirmed      = "Please confirm your email before signing in."
	msgNotFound         = "No account found for this email."
	msgProviderDown     = "The service is temporarily unavailable. Please try again."
	msgSignupIncomplete = "We couldn't finish setting up your account. Please try again."
	msgProfileMissing   = "We couldn't load your profile. Please sign in again."
	msgAccountFailed    = "Could not create your account. Please try again."
)

// SessionManager orquesta alta, inicio, cierre y restauración de sesión
// componiendo el proveedor de identidad y el reconciliador de perfiles.
// Toda salida se normaliza en AuthResult; nada lanza más allá de su borde.
type SessionManager struct {
	logger     *zap.Logger
	provider   identity.Provider
	reconciler *ProfileReconciler
	state      *state.Container

	restored    atomic.Bool
	unsubscribe func()
}

func NewSessionManager(logger *zap.Logger, provider identity.Provider, reconciler *ProfileReconciler, st *state.Container) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		logger:     logger,
		provider:   provider,
		reconciler: reconciler,
		state:      st,
	}
}

// SignUp crea la cuenta y garantiza su perfil. Si la reconciliación falla,
// la sesión recién creada se cierra (acción compensatoria): sin API de
// borrado de credenciales, cerrar la sesión evita operar autenticado sin
// perfil, y el upsert hace seguro el reintento.
func (m *SessionManager) SignUp(ctx context.Context, email, password, name string) domain.AuthResult {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if msg := validateSignUp(email, password, name); msg != "" {
		return m.fail(domain.FailureValidation, msg)
	}

	m.state.BeginOperation()

	ident, _, err := m.provider.CreateAccount(ctx, email, password, map[string]string{"name": name})
	if err != nil {
		m.logger.Warn("create account failed", zap.Error(err))
		return m.fail(failureCategory(err), userMessage(err))
	}
	if ident == nil || ident.ID == "" {
		// Inconsistencia del proveedor: jamás se trata como éxito.
		m.logger.Error("provider returned success without identity")
		return m.fail(domain.FailureProvider, msgAccountFailed)
	}

	profile, err := m.reconciler.Reconcile(ctx, ident.ID, email, name)
	if err != nil || profile == nil {
		m.logger.Error("profile reconcile failed after signup",
			zap.String("identity_id", ident.ID),
			zap.Error(err),
		)
		if endErr := m.provider.EndSession(ctx); endErr != nil {
			m.logger.Warn("compensating sign-out failed", zap.Error(endErr))
		}
		return m.fail(domain.FailureConsistency, msgSignupIncomplete)
	}

	m.state.SetAuthenticated(profile)
	return domain.AuthResult{User: profile, Success: true}
}

// SignIn autentica y carga el perfil, curando en el camino identidades
// huérfanas de signups fallidos previos.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) domain.AuthResult {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return m.fail(domain.FailureValidation, msgEmailRequired)
	}
	if strings.TrimSpace(password) == "" {
		return m.fail(domain.FailureValidation, msgPasswordRequired)
	}

	m.state.BeginOperation()

	ident, _, err := m.provider.Authenticate(ctx, email, password)
	if err != nil {
		m.logger.Warn("authenticate failed", zap.Error(err))
		return m.fail(failureCategory(err), userMessage(err))
	}
	if ident == nil || ident.ID == "" {
		m.logger.Error("provider returned success without identity")
		return m.fail(domain.FailureProvider, msgInvalidLogin)
	}

	profile, err := m.reconciler.Fetch(ctx, ident.ID)
	if err != nil {
		m.logger.Warn("profile fetch failed", zap.String("identity_id", ident.ID), zap.Error(err))
	}
	if profile == nil {
		// Identidad sin perfil: auto-curación con nombre derivado del
		// local-part del email.
		profile, err = m.reconciler.Reconcile(ctx, ident.ID, email, fallbackName(email))
		if err != nil {
			m.logger.Error("profile self-heal failed", zap.String("identity_id", ident.ID), zap.Error(err))
		}
	}
	if profile == nil {
		return m.fail(domain.FailureConsistency, msgProfileMissing)
	}

	m.state.SetAuthenticated(profile)
	return domain.AuthResult{User: profile, Success: true}
}

// SignOut cierra la sesión remota y limpia el estado local pase lo que pase.
// El error remoto se devuelve solo para logging del llamador; el cliente
// nunca sigue presentando una identidad tras pedir el cierre.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.state.BeginOperation()
	err := m.provider.EndSession(ctx)
	m.state.Clear()
	if err != nil {
		m.logger.Warn("remote sign-out failed, local state cleared anyway", zap.Error(err))
	}
	return err
}

// RestoreSession inicializa el estado desde la sesión vigente del proveedor
// y registra la suscripción al stream de cambios. Idempotente: como máximo
// una vez por vida del proceso.
func (m *SessionManager) RestoreSession(ctx context.Context) {
	if !m.restored.CompareAndSwap(false, true) {
		return
	}
	defer m.state.SetInitialized()

	m.state.BeginOperation()
	m.unsubscribe = m.provider.SubscribeToChanges(m.onChange)

	sess, err := m.provider.CurrentSession(ctx)
	if err != nil || sess == nil {
		// Fail-secure: sesión ausente o ambigua nunca se restaura como
		// autenticada.
		if err != nil {
			m.logger.Warn("current session lookup failed", zap.Error(err))
		}
		m.state.SetUnauthenticated()
		return
	}

	profile, err := m.reconciler.Fetch(ctx, sess.IdentityID)
	if err != nil || profile == nil {
		if err != nil {
			m.logger.Warn("profile fetch during restore failed", zap.Error(err))
		}
		m.state.SetUnauthenticated()
		return
	}
	m.state.SetAuthenticated(profile)
}

// Teardown da de baja la suscripción al stream de cambios.
func (m *SessionManager) Teardown() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// onChange aplica eventos del stream directamente sobre el estado,
// independiente de las cuatro operaciones. Last-write-wins frente a una
// operación manual en vuelo: ambas convergen en la misma identidad.
func (m *SessionManager) onChange(event, identityID string) {
	switch event {
	case domain.EventSignedOut:
		m.state.Clear()
	case domain.EventSignedIn, domain.EventTokenRefreshed:
		if identityID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		profile, err := m.reconciler.Fetch(ctx, identityID)
		if err != nil || profile == nil {
			m.logger.Warn("profile fetch on auth event failed",
				zap.String("event", event),
				zap.String("identity_id", identityID),
				zap.Error(err),
			)
			return
		}
		m.state.SetAuthenticated(profile)
	}
}

func (m *SessionManager) fail(category domain.FailureCategory, msg string) domain.AuthResult {
	m.state.FailOperation(msg)
	return domain.AuthResult{Error: msg, Category: category}
}

func validateSignUp(email, password, name string) string {
	switch {
	case email == "":
		return msgEmailRequired
	case !emailPattern.MatchString(email):
		return msgEmailInvalid
	case strings.TrimSpace(password) == "":
		return msgPasswordRequired
	case len(password) < 8:
		return msgPasswordShort
	case name == "":
		return msgNameRequired
	}
	return ""
}

// userMessage traduce kinds de error del proveedor a mensajes cortos y no
// técnicos. Mensajes no reconocidos pasan verbatim.
func userMessage(err error) string {
	switch identity.KindOf(err) {
	case identity.KindDuplicateAccount:
		return msgDuplicate
	case identity.KindInvalidCredentials:
		return msgInvalidLogin
	case identity.KindEmailNotConfirmed:
		return msgUnconfirmed
	case identity.KindAccountNotFound:
		return msgNotFound
	case identity.KindUnavailable:
		return msgProviderDown
	default:
		return err.Error()
	}
}

// failureCategory traduce kinds de error del proveedor a la categoría que el
// borde HTTP mapea a status codes.
func failureCategory(err error) domain.FailureCategory {
	switch identity.KindOf(err) {
	case identity.KindDuplicateAccount:
		return domain.FailureDuplicateAccount
	case identity.KindInvalidCredentials, identity.KindEmailNotConfirmed, identity.KindAccountNotFound:
		return domain.FailureInvalidCredentials
	default:
		return domain.FailureProvider
	}
}

func fallbackName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
