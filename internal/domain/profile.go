package domain

import "time"

// Profile describe a un usuario a nivel de aplicación, con la misma clave que
// su identidad en el proveedor.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FailureCategory clasifica la falla de una operación de sesión para el
// mapeo a status HTTP. No viaja en el JSON de respuesta.
type FailureCategory int

const (
	FailureNone FailureCategory = iota
	FailureValidation
	FailureInvalidCredentials
	FailureDuplicateAccount
	FailureProvider
	FailureConsistency
)

// AuthResult es el contrato uniforme que devuelve cada operación de sesión.
type AuthResult struct {
	User     *Profile        `json:"user"`
	Error    string          `json:"error,omitempty"`
	Success  bool            `json:"success"`
	Category FailureCategory `json:"-"`
}

// AuthSnapshot es la porción del estado de identidad que se persiste entre
// reinicios. Los flags de carga y error nunca se guardan.
type AuthSnapshot struct {
	User            *Profile `json:"user"`
	IsAuthenticated bool     `json:"is_authenticated"`
}
