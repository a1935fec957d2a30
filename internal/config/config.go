package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort           string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	DBMaxConns         int    `env:"DB_MAX_CONNS" envDefault:"10"`
	IdentityBaseURL    string `env:"IDENTITY_BASE_URL"`
	IdentityAPIKey     string `env:"IDENTITY_API_KEY"`
	SessionSecret      string `env:"SESSION_SECRET"`
	SessionTTLMinutes  int    `env:"SESSION_TTL_MINUTES" envDefault:"60"`
	ReconcileAttempts  int    `env:"RECONCILE_ATTEMPTS" envDefault:"3"`
	ReconcileBackoffMS int    `env:"RECONCILE_BACKOFF_MS" envDefault:"300"`
	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
