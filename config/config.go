package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const defaultPath = "."

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis RedisConfig `json:"redis" yaml:"redis"`

	Auth AuthConfig `json:"auth" yaml:"auth"`

	Password PasswordConfig `json:"password" yaml:"password"`

	TwoFactor TwoFactorConfig `json:"twoFactor" yaml:"twoFactor"`

	Challenge ChallengeConfig `json:"challenge" yaml:"challenge"`

	Email EmailConfig `json:"email" yaml:"email"`

	Session SessionConfig `json:"session" yaml:"session"`
}

// SessionConfig defines refresh-session housekeeping.
type SessionConfig struct {
	// CleanupInterval is how often expired session rows are deleted.
	CleanupInterval time.Duration `json:"cleanupInterval" yaml:"cleanupInterval"`
}

// RedisConfig holds key-value service connection settings.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	// OpTimeout bounds single key-value operations.
	OpTimeout time.Duration `json:"opTimeout" yaml:"opTimeout"`
}

// AuthConfig defines token issuance configuration.
type AuthConfig struct {
	JWTSecret    string        `json:"jwtSecret" yaml:"jwtSecret"`
	JWTAlgorithm string        `json:"jwtAlgorithm" yaml:"jwtAlgorithm"`
	Issuer       string        `json:"issuer" yaml:"issuer"`
	AccessTTL    time.Duration `json:"accessTtl" yaml:"accessTtl"`
	RefreshTTL   time.Duration `json:"refreshTtl" yaml:"refreshTtl"`
	PendingTTL   time.Duration `json:"pendingTtl" yaml:"pendingTtl"`
	ResetAuthTTL time.Duration `json:"resetAuthTtl" yaml:"resetAuthTtl"`
	// Leeway absorbs clock skew between the server and token issuers.
	Leeway time.Duration `json:"leeway" yaml:"leeway"`
	// CookieSecure marks the token cookies Secure; enable behind TLS.
	CookieSecure bool `json:"cookieSecure" yaml:"cookieSecure"`
}

// PasswordConfig defines the Argon2id parameters and password policy.
type PasswordConfig struct {
	MemoryKB    uint32 `json:"memoryKb" yaml:"memoryKb"`
	Time        uint32 `json:"time" yaml:"time"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism"`
	SaltLength  uint32 `json:"saltLength" yaml:"saltLength"`
	KeyLength   uint32 `json:"keyLength" yaml:"keyLength"`
	MinLength   int    `json:"minLength" yaml:"minLength"`
}

// TwoFactorConfig defines TOTP provisioning settings.
type TwoFactorConfig struct {
	Issuer string `json:"issuer" yaml:"issuer"`
	// SetupTTL bounds how long an unconfirmed candidate secret is kept.
	SetupTTL time.Duration `json:"setupTtl" yaml:"setupTtl"`
	QRSize   int           `json:"qrSize" yaml:"qrSize"`
}

// ChallengeConfig defines email-code TTLs and the attempt cap.
type ChallengeConfig struct {
	VerifyTTL   time.Duration `json:"verifyTtl" yaml:"verifyTtl"`
	ResetTTL    time.Duration `json:"resetTtl" yaml:"resetTtl"`
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
}

// EmailConfig defines the notifier settings.
type EmailConfig struct {
	From string `json:"from" yaml:"from"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf with env-var overrides.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables, aligning each segment with existing
	// YAML keys. Example: REDIS_OPTIMEOUT -> redis.opTimeout
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyAuthEnvOverrides()
	cfg.applyDefaults()

	return cfg, nil
}

// applyAuthEnvOverrides honors the flat, deployment-facing variable
// names used by the federation's orchestration. They take precedence
// over yaml and the canonical koanf env keys.
func (cfg *Config) applyAuthEnvOverrides() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("JWT_ALGORITHM"); v != "" {
		cfg.Auth.JWTAlgorithm = v
	}
	if minutes, ok := envInt("ACCESS_TOKEN_EXPIRES_MINUTES"); ok {
		cfg.Auth.AccessTTL = time.Duration(minutes) * time.Minute
	}
	if days, ok := envInt("REFRESH_TOKEN_EXPIRES_DAYS"); ok {
		cfg.Auth.RefreshTTL = time.Duration(days) * 24 * time.Hour
	}
	if seconds, ok := envInt("TWOFA_PENDING_EXPIRES_SECONDS"); ok {
		cfg.Auth.PendingTTL = time.Duration(seconds) * time.Second
	}
	if seconds, ok := envInt("RESET_CODE_TTL_SECONDS"); ok {
		cfg.Challenge.ResetTTL = time.Duration(seconds) * time.Second
	}
	if seconds, ok := envInt("VERIFY_CODE_TTL_SECONDS"); ok {
		cfg.Challenge.VerifyTTL = time.Duration(seconds) * time.Second
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Auth.JWTAlgorithm == "" {
		cfg.Auth.JWTAlgorithm = "HS256"
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = 15 * time.Minute
	}
	if cfg.Auth.RefreshTTL <= 0 {
		cfg.Auth.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.PendingTTL <= 0 || cfg.Auth.PendingTTL > 5*time.Minute {
		cfg.Auth.PendingTTL = 5 * time.Minute
	}
	if cfg.Auth.ResetAuthTTL <= 0 {
		cfg.Auth.ResetAuthTTL = 10 * time.Minute
	}
	if cfg.Auth.Leeway <= 0 {
		cfg.Auth.Leeway = 30 * time.Second
	}
	if cfg.Challenge.VerifyTTL <= 0 {
		cfg.Challenge.VerifyTTL = 15 * time.Minute
	}
	if cfg.Challenge.ResetTTL <= 0 {
		cfg.Challenge.ResetTTL = 10 * time.Minute
	}
	if cfg.Challenge.MaxAttempts <= 0 {
		cfg.Challenge.MaxAttempts = 5
	}
	if cfg.Redis.OpTimeout <= 0 {
		cfg.Redis.OpTimeout = 2 * time.Second
	}
	if cfg.Password.MemoryKB == 0 {
		cfg.Password.MemoryKB = 64 * 1024
	}
	if cfg.Password.Time == 0 {
		cfg.Password.Time = 2
	}
	if cfg.Password.Parallelism == 0 {
		cfg.Password.Parallelism = 2
	}
	if cfg.Password.SaltLength == 0 {
		cfg.Password.SaltLength = 16
	}
	if cfg.Password.KeyLength == 0 {
		cfg.Password.KeyLength = 32
	}
	if cfg.Password.MinLength == 0 {
		cfg.Password.MinLength = 10
	}
	if cfg.TwoFactor.Issuer == "" {
		cfg.TwoFactor.Issuer = cfg.Env.ServiceName
	}
	if cfg.TwoFactor.SetupTTL <= 0 {
		cfg.TwoFactor.SetupTTL = 10 * time.Minute
	}
	if cfg.TwoFactor.QRSize <= 0 {
		cfg.TwoFactor.QRSize = 256
	}
	if cfg.Session.CleanupInterval <= 0 {
		cfg.Session.CleanupInterval = time.Hour
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return value, true
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
