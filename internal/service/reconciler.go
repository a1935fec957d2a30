package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mindwell/internal/domain"
	"mindwell/internal/repository"
)

// RetryPolicy controla los reintentos del reconciliador. Se inyecta para que
// los tests corran sin espera real.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy reintenta 3 veces con backoff lineal.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 300 * time.Millisecond
		},
	}
}

// ErrReconcileExhausted indica que el upsert de perfil agotó sus reintentos.
// Para el llamador es una falla dura, nunca "la fila no existe".
var ErrReconcileExhausted = errors.New("profile reconcile exhausted")

// ProfileReconciler garantiza que exista exactamente un perfil por identidad,
// tolerando fallas transitorias de escritura y la carrera con el trigger de
// creación del lado del proveedor.
type ProfileReconciler struct {
	logger   *zap.Logger
	profiles repository.ProfileRepository
	policy   RetryPolicy
}

func NewProfileReconciler(logger *zap.Logger, profiles repository.ProfileRepository, policy RetryPolicy) *ProfileReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &ProfileReconciler{
		logger:   logger,
		profiles: profiles,
		policy:   policy,
	}
}

// Reconcile hace un upsert idempotente por identityID. Las fallas
// transitorias se reintentan en silencio; solo el agotamiento se reporta.
func (r *ProfileReconciler) Reconcile(ctx context.Context, identityID, email, name string) (*domain.Profile, error) {
	candidate := domain.Profile{
		ID:        identityID,
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		stored, err := r.profiles.Upsert(ctx, candidate)
		if err == nil {
			return &stored, nil
		}
		lastErr = err
		r.logger.Warn("profile upsert failed",
			zap.String("identity_id", identityID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == r.policy.MaxAttempts {
			break
		}
		if r.policy.Backoff != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.policy.Backoff(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrReconcileExhausted, lastErr)
}

// Fetch es una consulta puntual sin reintentos: nil sin error significa "no
// hay fila de perfil".
func (r *ProfileReconciler) Fetch(ctx context.Context, identityID string) (*domain.Profile, error) {
	profile, err := r.profiles.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
