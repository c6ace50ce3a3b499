package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret            string `env:"JWT_SECRET,required"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"gefarm-api"`
	JWTAudience          string `env:"JWT_AUDIENCE" envDefault:"gefarm-app"`
	JWTTTLSeconds        int    `env:"JWT_TTL_SECONDS" envDefault:"3600"`
	// Presente en la configuración original pero sin flujo de refresh asociado.
	JWTRefreshTTLSeconds int `env:"JWT_REFRESH_TTL_SECONDS" envDefault:"604800"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`
	// Clave AES para los datos PII del contador; exactamente 32 caracteres.
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	CodeLength     int           `env:"CODE_LENGTH" envDefault:"6"`
	VerifyCodeTTL  time.Duration `env:"VERIFY_CODE_TTL" envDefault:"24h"`
	ResetCodeTTL   time.Duration `env:"RESET_CODE_TTL" envDefault:"1h"`
	VerifyCooldown time.Duration `env:"VERIFY_COOLDOWN" envDefault:"2m"`
	ResetCooldown  time.Duration `env:"RESET_COOLDOWN" envDefault:"5m"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
