package identity

import (
	"context"
	"errors"

	"mindwell/internal/domain"
)

// Identity son los hechos de identidad normalizados que devuelve el
// proveedor. Sin decisiones de autorización.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ErrorKind clasifica errores del proveedor una sola vez, en el borde del
// adaptador. La lógica posterior decide por kind, nunca por substring.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDuplicateAccount
	KindInvalidCredentials
	KindEmailNotConfirmed
	KindAccountNotFound
	KindUnavailable
)

// Error es un error de proveedor ya clasificado. Message conserva el texto
// crudo para el fallback verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extrae el ErrorKind de un error; KindUnknown si no viene del
// adaptador de proveedor.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// ChangeFunc recibe eventos del stream de cambios. identityID está vacío en
// eventos de cierre de sesión.
type ChangeFunc func(event string, identityID string)

// Provider define el contrato con el servicio remoto de identidad. El
// adaptador cachea su sesión vigente; los consumidores nunca tocan tokens.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (*Identity, *domain.Session, error)
	Authenticate(ctx context.Context, email, password string) (*Identity, *domain.Session, error)
	EndSession(ctx context.Context) error
	CurrentSession(ctx context.Context) (*domain.Session, error)
	IdentityFromToken(ctx context.Context, accessToken string) (*Identity, error)
	SubscribeToChanges(fn ChangeFunc) (unsubscribe func())
}
