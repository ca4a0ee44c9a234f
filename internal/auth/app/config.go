package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer         string // Optional: issuer claim for tokens (default: assetflow-auth)
	SigningKeyFile string // Optional: PKCS8 Ed25519 key; unset generates ephemeral keys
	SigningKeyID   string // Optional: kid for SigningKeyFile (default: primary)
	NumKeys        int    // Optional: number of ephemeral signing keys (default: 1, max: 10)

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile           string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	ChallengeRetention   time.Duration // How long expired MFA challenges are kept (default: 24h)

	// Peers allowed to set X-Forwarded-For / X-Real-IP. Empty trusts nobody
	// and every request is attributed to its direct peer.
	TrustedProxies httpx.TrustedProxies

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	TempSessionTTL time.Duration
	UnlockTTL      time.Duration

	Policy        service.Policy
	MFACodeLength int

	RoleLabels map[string]string // role id -> label carried in access tokens
	AdminRoles []string          // labels allowed on /v1/admin routes
	AuthzDebug bool              // include denial reasons in responses

	Product   string // product name used in email subjects
	UnlockURL string // link the unlock token is appended to

	SMTPHost     string // unset logs notifications instead of sending them
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	ReputationEnabled  bool
	ReputationFailOpen bool
	ReputationTimeout  time.Duration
	AbuseIPDBKey       string
	HomeCountry        string

	RedisAddr          string // unset disables the reputation cache
	RedisPassword      string
	RedisDB            int
	ReputationCacheTTL time.Duration

	AuditBatchSize  int
	AuditMaxWait    time.Duration
	AuditQueueSize  int
	NotifyQueueSize int
	MetricsEnabled  bool

	BootstrapAdminEmail     string // creates the first administrator when set
	BootstrapAdminPassword  string
	BootstrapAdminFirstName string
	BootstrapAdminRoleID    string
}

// LoadConfig reads configuration from the environment, after loading a .env
// file from the working directory when one exists.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	def := service.DefaultPolicy()
	policy := service.Policy{
		KnownDeviceMaxAttempts:   getEnvIntOrDefault("AUTH_KNOWN_DEVICE_MAX_ATTEMPTS", def.KnownDeviceMaxAttempts),
		UnknownDeviceMaxAttempts: getEnvIntOrDefault("AUTH_UNKNOWN_DEVICE_MAX_ATTEMPTS", def.UnknownDeviceMaxAttempts),
		FinalAttemptsBeforeLock:  getEnvIntOrDefault("AUTH_FINAL_ATTEMPTS_BEFORE_LOCK", def.FinalAttemptsBeforeLock),
		TempDisableDuration:      getEnvDurationOrDefault("AUTH_TEMP_DISABLE_DURATION", def.TempDisableDuration),
		SuspendDuration:          getEnvDurationOrDefault("AUTH_SUSPEND_DURATION", def.SuspendDuration),
		FraudScoreLimit:          getEnvIntOrDefault("AUTH_FRAUD_SCORE_LIMIT", def.FraudScoreLimit),
		ExpectedTimezone:         getEnvOrDefault("AUTH_EXPECTED_TIMEZONE", def.ExpectedTimezone),
		ExpectedLanguage:         getEnvOrDefault("AUTH_EXPECTED_LANGUAGE", def.ExpectedLanguage),
		WorkingHoursStart:        getEnvIntOrDefault("AUTH_WORKING_HOURS_START", def.WorkingHoursStart),
		WorkingHoursEnd:          getEnvIntOrDefault("AUTH_WORKING_HOURS_END", def.WorkingHoursEnd),
		OrgUTCOffset:             getEnvDurationOrDefault("AUTH_ORG_UTC_OFFSET", def.OrgUTCOffset),
		IPWhitelistThreshold:     getEnvIntOrDefault("AUTH_IP_WHITELIST_THRESHOLD", def.IPWhitelistThreshold),
		MFACodeTTL:               getEnvDurationOrDefault("AUTH_MFA_CODE_TTL", def.MFACodeTTL),
		MFAMaxAttempts:           getEnvIntOrDefault("AUTH_MFA_MAX_ATTEMPTS", def.MFAMaxAttempts),
		PasswordExpiryDays:       getEnvIntOrDefault("AUTH_PASSWORD_EXPIRY_DAYS", def.PasswordExpiryDays),
		InactiveAccountDays:      getEnvIntOrDefault("AUTH_INACTIVE_ACCOUNT_DAYS", def.InactiveAccountDays),
		MinPasswordLength:        getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", def.MinPasswordLength),
		FingerprintSecret:        os.Getenv("AUTH_FINGERPRINT_SECRET"),
	}

	roleLabels, err := parseRoleLabels(getEnvOrDefault("AUTH_ROLE_LABELS", "role_admin=admin"))
	if err != nil {
		return Config{}, err
	}

	trusted, err := httpx.ParseTrustedProxies(getEnvListOrDefault("AUTH_TRUSTED_PROXIES", nil))
	if err != nil {
		return Config{}, fmt.Errorf("AUTH_TRUSTED_PROXIES: %w", err)
	}

	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "assetflow-auth"),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKeyID:   getEnvOrDefault("AUTH_SIGNING_KEY_ID", "primary"),
		NumKeys:        getEnvIntOrDefault("AUTH_NUM_KEYS", 1),

		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:           getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		ChallengeRetention:   getEnvDurationOrDefault("AUTH_CHALLENGE_RETENTION", 24*time.Hour),
		TrustedProxies:       trusted,

		AccessTTL:      getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:     getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),
		TempSessionTTL: getEnvDurationOrDefault("AUTH_TEMP_SESSION_TTL", 30*time.Minute),
		UnlockTTL:      getEnvDurationOrDefault("AUTH_UNLOCK_TTL", 24*time.Hour),

		Policy:        policy,
		MFACodeLength: getEnvIntOrDefault("AUTH_MFA_CODE_LENGTH", 6),

		RoleLabels: roleLabels,
		AdminRoles: getEnvListOrDefault("AUTH_ADMIN_ROLES", []string{"superadmin", "admin"}),
		AuthzDebug: getEnvBoolOrDefault("AUTH_AUTHZ_DEBUG", false),

		Product:   getEnvOrDefault("AUTH_PRODUCT_NAME", "AssetFlow"),
		UnlockURL: getEnvOrDefault("AUTH_UNLOCK_URL", "http://localhost:8080/unlock"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@assetflow.local"),

		ReputationEnabled:  getEnvBoolOrDefault("AUTH_REPUTATION_ENABLED", true),
		ReputationFailOpen: getEnvBoolOrDefault("AUTH_REPUTATION_FAIL_OPEN", false),
		ReputationTimeout:  getEnvDurationOrDefault("AUTH_REPUTATION_TIMEOUT", 6*time.Second),
		AbuseIPDBKey:       os.Getenv("ABUSEIPDB_API_KEY"),
		HomeCountry:        getEnvOrDefault("AUTH_HOME_COUNTRY", "KE"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvIntOrDefault("REDIS_DB", 0),
		ReputationCacheTTL: getEnvDurationOrDefault("AUTH_REPUTATION_CACHE_TTL", 6*time.Hour),

		AuditBatchSize:  getEnvIntOrDefault("AUDIT_BATCH_SIZE", 50),
		AuditMaxWait:    getEnvDurationOrDefault("AUDIT_MAX_WAIT", 5*time.Second),
		AuditQueueSize:  getEnvIntOrDefault("AUDIT_QUEUE_SIZE", 1024),
		NotifyQueueSize: getEnvIntOrDefault("NOTIFY_QUEUE_SIZE", 256),
		MetricsEnabled:  getEnvBoolOrDefault("METRICS_ENABLED", true),

		BootstrapAdminEmail:     os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminFirstName: getEnvOrDefault("BOOTSTRAP_ADMIN_FIRST_NAME", "Admin"),
		BootstrapAdminRoleID:    getEnvOrDefault("BOOTSTRAP_ADMIN_ROLE_ID", "role_admin"),
	}

	return cfg, nil
}

// parseRoleLabels reads "role_id=label" pairs separated by commas.
func parseRoleLabels(s string) (map[string]string, error) {
	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, label, ok := strings.Cut(pair, "=")
		id, label = strings.TrimSpace(id), strings.TrimSpace(label)
		if !ok || id == "" || label == "" {
			return nil, errors.New("AUTH_ROLE_LABELS: expected role_id=label, got " + strconv.Quote(pair))
		}
		labels[id] = label
	}
	return labels, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
