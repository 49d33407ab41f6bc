package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/flasharray"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/otel"
	"github.com/onkernel/nasattach/lib/vsphere"
)

type Config struct {
	ArrayEndpoint   string
	ArrayAPIToken   string
	ArrayAPIVersion string
	ArrayInsecure   bool
	ArrayTimeout    time.Duration

	NFSServerAddress string

	VCenterURL        string
	VCenterUser       string
	VCenterPassword   string
	VCenterDatacenter string
	VCenterInsecure   bool

	MountConcurrency       int
	MountConcurrencyCap    int
	SettleDelay            time.Duration
	VerifyDefaultProtocol  bool
	MultiSessionMinVersion string
	DiagnosticsEnabled     bool

	DataDir string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSize    string
	LogMaxBackups int
	LogMaxAgeDays int

	OtelEnabled     bool
	OtelEndpoint    string
	OtelServiceName string
	OtelInsecure    bool

	Env     string
	Version string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		ArrayEndpoint:   getEnv("ARRAY_ENDPOINT", ""),
		ArrayAPIToken:   getEnv("ARRAY_API_TOKEN", ""),
		ArrayAPIVersion: getEnv("ARRAY_API_VERSION", "2.16"),
		ArrayInsecure:   getEnvBool("ARRAY_INSECURE", false),
		ArrayTimeout:    getEnvDuration("ARRAY_TIMEOUT", 30*time.Second),

		NFSServerAddress: getEnv("NFS_SERVER_ADDRESS", ""),

		VCenterURL:        getEnv("VCENTER_URL", ""),
		VCenterUser:       getEnv("VCENTER_USER", ""),
		VCenterPassword:   getEnv("VCENTER_PASSWORD", ""),
		VCenterDatacenter: getEnv("VCENTER_DATACENTER", ""),
		VCenterInsecure:   getEnvBool("VCENTER_INSECURE", false),

		MountConcurrency:       getEnvInt("MOUNT_CONCURRENCY", 0),
		MountConcurrencyCap:    getEnvInt("MOUNT_CONCURRENCY_CAP", attachment.DefaultConcurrencyCap),
		SettleDelay:            getEnvDuration("SETTLE_DELAY", 5*time.Second),
		VerifyDefaultProtocol:  getEnvBool("VERIFY_DEFAULT_PROTOCOL", true),
		MultiSessionMinVersion: getEnv("MULTISESSION_MIN_VERSION", compute.DefaultMultiSessionMinVersion),
		DiagnosticsEnabled:     getEnvBool("DIAGNOSTICS_ENABLED", true),

		DataDir: getEnv("DATA_DIR", "./.nasattach"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnv("LOG_MAX_SIZE", "100MB"),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),

		OtelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:    getEnv("OTEL_ENDPOINT", "127.0.0.1:4317"),
		OtelServiceName: getEnv("OTEL_SERVICE_NAME", "nasattach"),
		OtelInsecure:    getEnvBool("OTEL_INSECURE", true),

		Env:     getEnv("ENV", "unset"),
		Version: getEnv("VERSION", "dev"),
	}

	return cfg
}

// Validate reports missing settings. needArray and needVCenter select
// which connections the command uses.
func (c *Config) Validate(needArray, needVCenter bool) error {
	var missing []string
	if needArray {
		if c.ArrayEndpoint == "" {
			missing = append(missing, "ARRAY_ENDPOINT")
		}
		if c.ArrayAPIToken == "" {
			missing = append(missing, "ARRAY_API_TOKEN")
		}
	}
	if needVCenter {
		if c.VCenterURL == "" {
			missing = append(missing, "VCENTER_URL")
		}
		if c.VCenterUser == "" {
			missing = append(missing, "VCENTER_USER")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if _, err := c.logMaxSizeMB(); err != nil {
		return err
	}
	return nil
}

// ArrayConfig returns the storage array client settings and credentials.
func (c *Config) ArrayConfig() (flasharray.Config, flasharray.Credentials) {
	return flasharray.Config{
			Endpoint:   c.ArrayEndpoint,
			APIVersion: c.ArrayAPIVersion,
			Insecure:   c.ArrayInsecure,
			Timeout:    c.ArrayTimeout,
		}, flasharray.Credentials{
			APIToken: c.ArrayAPIToken,
		}
}

// VSphereConfig returns the vCenter client settings and credentials.
func (c *Config) VSphereConfig() (vsphere.Config, vsphere.Credentials) {
	return vsphere.Config{
			URL:                    c.VCenterURL,
			Datacenter:             c.VCenterDatacenter,
			Insecure:               c.VCenterInsecure,
			MultiSessionMinVersion: c.MultiSessionMinVersion,
		}, vsphere.Credentials{
			Username: c.VCenterUser,
			Password: c.VCenterPassword,
		}
}

// AttachmentConfig returns the mount fan-out settings.
func (c *Config) AttachmentConfig() attachment.Config {
	return attachment.Config{
		ServerAddress:          c.NFSServerAddress,
		Concurrency:            c.MountConcurrency,
		ConcurrencyCap:         c.MountConcurrencyCap,
		SettleDelay:            c.SettleDelay,
		VerifyDefaultProtocol:  c.VerifyDefaultProtocol,
		DiagnosticsEnabled:     c.DiagnosticsEnabled,
		MultiSessionMinVersion: c.MultiSessionMinVersion,
	}
}

// LoggerConfig returns the log handler settings.
func (c *Config) LoggerConfig() logger.Config {
	maxSize, _ := c.logMaxSizeMB()
	return logger.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  maxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

// OtelConfig returns the telemetry settings for a run.
func (c *Config) OtelConfig(runID string) otel.Config {
	return otel.Config{
		Enabled:     c.OtelEnabled,
		Endpoint:    c.OtelEndpoint,
		ServiceName: c.OtelServiceName,
		RunID:       runID,
		Insecure:    c.OtelInsecure,
		Version:     c.Version,
		Env:         c.Env,
	}
}

// logMaxSizeMB converts LOG_MAX_SIZE to whole megabytes, at least one.
func (c *Config) logMaxSizeMB() (int, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(c.LogMaxSize)); err != nil {
		return 0, fmt.Errorf("invalid LOG_MAX_SIZE %q: %w", c.LogMaxSize, err)
	}
	return max(int(size.MBytes()), 1), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
