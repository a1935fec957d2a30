package domain

import "time"

// Session es el estado efímero de autenticación emitido por el proveedor de
// identidad. Solo se cachea en memoria, nunca se persiste directamente.
type Session struct {
	IdentityID  string    `json:"identity_id"`
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired indica si la sesión ya no es utilizable.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && now.After(s.ExpiresAt))
}

// Eventos del stream de cambios de autenticación.
const (
	EventSignedIn       = "SIGNED_IN"
	EventSignedOut      = "SIGNED_OUT"
	EventTokenRefreshed = "TOKEN_REFRESHED"
)
