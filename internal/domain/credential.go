package domain

import "time"

// Credential es el registro local de credenciales cuando el servicio opera
// sin proveedor de identidad hospedado.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
