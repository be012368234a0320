package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigError reports a configuration problem found before startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

type Config struct {
	// Bank endpoints and identity. All injected; nothing bank-specific
	// is baked into the binary.
	AuthBaseURL     string // Required: token endpoint + hosted authorization UI host
	ResourceBaseURL string // Required: consents/accounts/payments host
	ClientID        string // Required: OAuth client id registered with the bank
	ClientSecret    string // Optional: enables HTTP Basic on code/refresh grants
	RedirectURI     string // Required: registered redirect target
	FinancialID     string // Required: x-fapi-financial-id header value
	KID             string // Required: signing key id registered in the JWKS
	JWKSURL         string // Required: hosted JWKS; its host becomes the tan claim

	// mTLS transport material and the payment signing key.
	TransportCertFile string // Required: transport certificate PEM
	TransportKeyFile  string // Required: transport private key PEM
	CAFile            string // Optional: CA bundle for the bank's server chain
	SigningKeyFile    string // Required: PS256 signing key PEM

	MasterKeyPath string // Optional: path to token sealing master key file
	DatabaseFile  string // Optional: SQLite database file (default: ./openbank.db)

	ConsentTTL  time.Duration // Optional: account access consent validity (default: 90 days)
	OutboundRPS int           // Optional: outbound requests/second to the bank (default: 10)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		AuthBaseURL:     strings.TrimRight(os.Getenv("REVOLUT_AUTH_URL"), "/"),
		ResourceBaseURL: strings.TrimRight(os.Getenv("REVOLUT_RESOURCE_URL"), "/"),
		ClientID:        os.Getenv("REVOLUT_CLIENT_ID"),
		ClientSecret:    os.Getenv("REVOLUT_CLIENT_SECRET"),
		RedirectURI:     os.Getenv("REVOLUT_REDIRECT_URI"),
		FinancialID:     os.Getenv("REVOLUT_FINANCIAL_ID"),
		KID:             os.Getenv("REVOLUT_KID"),
		JWKSURL:         os.Getenv("REVOLUT_JWKS_URL"),

		TransportCertFile: os.Getenv("REVOLUT_TRANSPORT_CERT"),
		TransportKeyFile:  os.Getenv("REVOLUT_TRANSPORT_KEY"),
		CAFile:            os.Getenv("REVOLUT_CA_CERT"),
		SigningKeyFile:    os.Getenv("REVOLUT_SIGNING_KEY"),

		MasterKeyPath: os.Getenv("OB_MASTER_KEY_PATH"),
		DatabaseFile:  getEnvOrDefault("OB_DATABASE_FILE", "openbank.db"),

		ConsentTTL:  getEnvDurationOrDefault("CONSENT_TTL", 90*24*time.Hour),
		OutboundRPS: getEnvIntOrDefault("OUTBOUND_RPS", 10),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate fails fast on anything the service cannot run without. A
// missing credential found here is a config mistake; found at the first
// bank call it is a 3am page.
func (c Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"REVOLUT_AUTH_URL", c.AuthBaseURL},
		{"REVOLUT_RESOURCE_URL", c.ResourceBaseURL},
		{"REVOLUT_CLIENT_ID", c.ClientID},
		{"REVOLUT_REDIRECT_URI", c.RedirectURI},
		{"REVOLUT_FINANCIAL_ID", c.FinancialID},
		{"REVOLUT_KID", c.KID},
		{"REVOLUT_JWKS_URL", c.JWKSURL},
		{"REVOLUT_TRANSPORT_CERT", c.TransportCertFile},
		{"REVOLUT_TRANSPORT_KEY", c.TransportKeyFile},
		{"REVOLUT_SIGNING_KEY", c.SigningKeyFile},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Field: r.field, Reason: "is required"}
		}
	}

	for _, u := range []struct {
		field, value string
	}{
		{"REVOLUT_AUTH_URL", c.AuthBaseURL},
		{"REVOLUT_RESOURCE_URL", c.ResourceBaseURL},
		{"REVOLUT_REDIRECT_URI", c.RedirectURI},
		{"REVOLUT_JWKS_URL", c.JWKSURL},
	} {
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return &ConfigError{Field: u.field, Reason: "must be an absolute URL"}
		}
	}

	return nil
}

// TrustAnchor derives the trust anchor (tan) claim for detached JWS
// headers: the host serving the JWKS the bank verifies against.
func (c Config) TrustAnchor() string {
	parsed, err := url.Parse(c.JWKSURL)
	if err != nil {
		return ""
	}
	return parsed.Host
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
