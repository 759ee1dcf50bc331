package shelterboard

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines dashboard configuration.
type Config struct {
	// Source configures where the dataset CSV comes from.
	Source SourceConfig

	// Snapshot configures the local snapshot store.
	// A zero Path disables snapshots.
	Snapshot SnapshotConfig

	// Auth configures the password gate.
	// With neither Password nor PasswordHash set the dashboard is open.
	Auth AuthConfig

	// Server configures the HTTP server.
	Server ServerConfig

	// Smoothing sets the dashboard's smoothing defaults.
	Smoothing SmoothingConfig

	// Refresh configures background dataset refresh.
	Refresh RefreshConfig

	// RemoteWrite configures the optional Prometheus remote-write publisher.
	// If nil or URL is empty, publishing is disabled.
	RemoteWrite *RemoteWriteConfig
}

// SourceConfig groups dataset retrieval settings. Exactly one of Path, URL,
// DriveFileID, or S3 selects the source; Path wins when several are set.
type SourceConfig struct {
	// Path is a local CSV file.
	Path string

	// URL is a remote CSV link fetched over HTTP(S).
	URL string

	// DriveFileID builds a Google Drive download link
	// (https://drive.google.com/uc?export=download&id=<id>).
	DriveFileID string

	// S3 selects an object in an S3-compatible store.
	S3 *S3SourceConfig

	// MaxBodyBytes caps the fetched payload size.
	// Default: 64MB.
	MaxBodyBytes int64

	// FetchTimeout bounds a single fetch attempt.
	// Default: 60 seconds.
	FetchTimeout time.Duration

	// Retry configures fetch retries.
	Retry RetryConfig
}

// S3SourceConfig locates a dataset object in S3.
type S3SourceConfig struct {
	// Bucket and Key identify the object. Both required.
	Bucket string
	Key    string

	// Region is the bucket region. Default: us-east-1.
	Region string

	// Endpoint overrides the S3 endpoint for MinIO and similar stores.
	Endpoint string

	// AccessKeyID and SecretAccessKey set static credentials. When empty the
	// default AWS credential chain applies.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	UsePathStyle bool
}

// SnapshotConfig groups snapshot store settings.
type SnapshotConfig struct {
	// Path is the SQLite file holding snapshots and saved views.
	// Empty disables the store.
	Path string

	// Keep is how many snapshots to retain; older ones are pruned.
	// Default: 5.
	Keep int
}

// AuthConfig groups password-gate settings.
type AuthConfig struct {
	// Password is the shared secret in plain text. Intended for development;
	// prefer PasswordHash.
	Password string

	// PasswordHash is a digest produced by HashPassword. Takes precedence
	// over Password.
	PasswordHash string

	// SessionTTL is how long a login lasts.
	// Default: 24 hours.
	SessionTTL time.Duration

	// LoginRatePerMinute caps login attempts per client IP.
	// Default: 10. Set to 0 to disable.
	LoginRatePerMinute int
}

// ServerConfig groups HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8600".
	Addr string

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// RateLimitPerSecond is the maximum requests per second per IP.
	// Default: 50. Set to 0 to disable rate limiting.
	RateLimitPerSecond int
}

// SmoothingConfig groups the dashboard's smoothing defaults.
type SmoothingConfig struct {
	// DefaultMethod is applied when a request carries no method.
	// Default: SmoothingNone.
	DefaultMethod Smoothing

	// DefaultWindow is the initial slider position.
	// Default: 3. Clamped to [2, 12].
	DefaultWindow int
}

// RefreshConfig groups background refresh settings.
type RefreshConfig struct {
	// Interval between background re-fetches. 0 disables the loop;
	// refreshes then happen only via the API.
	Interval time.Duration
}

// RemoteWriteConfig groups Prometheus remote-write publisher settings.
type RemoteWriteConfig struct {
	// URL is the remote-write endpoint. Required.
	URL string

	// Families limits publishing to the listed family keys.
	// Empty publishes every family.
	Families []string

	// Variant selects the column variant to publish. Default: raw.
	Variant string

	// Timeout bounds one push. Default: 30 seconds.
	Timeout time.Duration

	// Headers are added to every request (for example, authorization).
	Headers map[string]string

	// Retry configures push retries.
	Retry RetryConfig
}

// DefaultConfig returns a configuration with sensible defaults: listen on
// :8600, 24h sessions, snapshots and remote write disabled.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			MaxBodyBytes: 64 << 20,
			FetchTimeout: 60 * time.Second,
			Retry:        DefaultRetryConfig(),
		},
		Snapshot: SnapshotConfig{
			Keep: 5,
		},
		Auth: AuthConfig{
			SessionTTL:         24 * time.Hour,
			LoginRatePerMinute: 10,
		},
		Server: ServerConfig{
			Addr:               ":8600",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RateLimitPerSecond: 50,
		},
		Smoothing: SmoothingConfig{
			DefaultMethod: SmoothingNone,
			DefaultWindow: DefaultSmoothingWindow,
		},
	}
}

// normalized returns a copy with zero-valued fields replaced by defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Source.MaxBodyBytes <= 0 {
		c.Source.MaxBodyBytes = def.Source.MaxBodyBytes
	}
	if c.Source.FetchTimeout <= 0 {
		c.Source.FetchTimeout = def.Source.FetchTimeout
	}
	if c.Snapshot.Keep <= 0 {
		c.Snapshot.Keep = def.Snapshot.Keep
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = def.Auth.SessionTTL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	c.Smoothing.DefaultWindow = ClampWindow(c.Smoothing.DefaultWindow)
	if c.RemoteWrite != nil && c.RemoteWrite.Timeout <= 0 {
		c.RemoteWrite.Timeout = 30 * time.Second
	}
	return c
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Source.S3 != nil {
		if c.Source.S3.Bucket == "" || c.Source.S3.Key == "" {
			return fmt.Errorf("config: s3 source requires bucket and key")
		}
	}
	if c.Auth.PasswordHash != "" {
		if _, err := parsePasswordDigest(c.Auth.PasswordHash); err != nil {
			return fmt.Errorf("config: password_hash: %w", err)
		}
	}
	if c.RemoteWrite != nil {
		if c.RemoteWrite.URL == "" {
			return fmt.Errorf("config: remote_write requires url")
		}
		for _, key := range c.RemoteWrite.Families {
			if _, err := FamilyByKey(key); err != nil {
				return fmt.Errorf("config: remote_write: %w", err)
			}
		}
		if _, err := ParseVariant(c.RemoteWrite.Variant); err != nil {
			return fmt.Errorf("config: remote_write: %w", err)
		}
	}
	return nil
}

// fileConfig mirrors Config for YAML loading. Durations are strings parsed
// with time.ParseDuration so files can say "90s" or "24h".
type fileConfig struct {
	Source struct {
		Path         string        `yaml:"path"`
		URL          string        `yaml:"url"`
		DriveFileID  string        `yaml:"drive_file_id"`
		S3           *fileS3Config `yaml:"s3"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
		FetchTimeout string        `yaml:"fetch_timeout"`
		Retry        fileRetry     `yaml:"retry"`
	} `yaml:"source"`
	Snapshot struct {
		Path string `yaml:"path"`
		Keep int    `yaml:"keep"`
	} `yaml:"snapshot"`
	Auth struct {
		Password           string `yaml:"password"`
		PasswordHash       string `yaml:"password_hash"`
		SessionTTL         string `yaml:"session_ttl"`
		LoginRatePerMinute int    `yaml:"login_rate_per_minute"`
	} `yaml:"auth"`
	Server struct {
		Addr               string `yaml:"addr"`
		ReadTimeout        string `yaml:"read_timeout"`
		WriteTimeout       string `yaml:"write_timeout"`
		ShutdownTimeout    string `yaml:"shutdown_timeout"`
		RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	} `yaml:"server"`
	Smoothing struct {
		DefaultMethod string `yaml:"default_method"`
		DefaultWindow int    `yaml:"default_window"`
	} `yaml:"smoothing"`
	Refresh struct {
		Interval string `yaml:"interval"`
	} `yaml:"refresh"`
	RemoteWrite *struct {
		URL      string            `yaml:"url"`
		Families []string          `yaml:"families"`
		Variant  string            `yaml:"variant"`
		Timeout  string            `yaml:"timeout"`
		Headers  map[string]string `yaml:"headers"`
		Retry    fileRetry         `yaml:"retry"`
	} `yaml:"remote_write"`
}

type fileS3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type fileRetry struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialBackoff    string  `yaml:"initial_backoff"`
	MaxBackoff        string  `yaml:"max_backoff"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	Jitter            float64 `yaml:"jitter"`
}

// LoadConfig reads a YAML configuration file. ${VAR} references in string
// values expand from the environment, so secrets can stay out of the file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("config: invalid YAML in %s: %w", path, err)
	}

	cfg := DefaultConfig()

	cfg.Source.Path = expandEnv(fc.Source.Path)
	cfg.Source.URL = expandEnv(fc.Source.URL)
	cfg.Source.DriveFileID = expandEnv(fc.Source.DriveFileID)
	if fc.Source.S3 != nil {
		cfg.Source.S3 = &S3SourceConfig{
			Bucket:          expandEnv(fc.Source.S3.Bucket),
			Key:             expandEnv(fc.Source.S3.Key),
			Region:          fc.Source.S3.Region,
			Endpoint:        expandEnv(fc.Source.S3.Endpoint),
			AccessKeyID:     expandEnv(fc.Source.S3.AccessKeyID),
			SecretAccessKey: expandEnv(fc.Source.S3.SecretAccessKey),
			UsePathStyle:    fc.Source.S3.UsePathStyle,
		}
	}
	if fc.Source.MaxBodyBytes > 0 {
		cfg.Source.MaxBodyBytes = fc.Source.MaxBodyBytes
	}
	if err := setDuration(&cfg.Source.FetchTimeout, fc.Source.FetchTimeout, "source.fetch_timeout"); err != nil {
		return Config{}, err
	}
	if err := applyFileRetry(&cfg.Source.Retry, fc.Source.Retry, "source.retry"); err != nil {
		return Config{}, err
	}

	cfg.Snapshot.Path = expandEnv(fc.Snapshot.Path)
	if fc.Snapshot.Keep > 0 {
		cfg.Snapshot.Keep = fc.Snapshot.Keep
	}

	cfg.Auth.Password = expandEnv(fc.Auth.Password)
	cfg.Auth.PasswordHash = expandEnv(fc.Auth.PasswordHash)
	if err := setDuration(&cfg.Auth.SessionTTL, fc.Auth.SessionTTL, "auth.session_ttl"); err != nil {
		return Config{}, err
	}
	if fc.Auth.LoginRatePerMinute > 0 {
		cfg.Auth.LoginRatePerMinute = fc.Auth.LoginRatePerMinute
	}

	if fc.Server.Addr != "" {
		cfg.Server.Addr = fc.Server.Addr
	}
	if err := setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout, "server.read_timeout"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout, "server.write_timeout"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return Config{}, err
	}
	if fc.Server.RateLimitPerSecond > 0 {
		cfg.Server.RateLimitPerSecond = fc.Server.RateLimitPerSecond
	}

	if fc.Smoothing.DefaultMethod != "" {
		method, err := ParseSmoothing(fc.Smoothing.DefaultMethod)
		if err != nil {
			return Config{}, fmt.Errorf("config: smoothing.default_method: %w", err)
		}
		cfg.Smoothing.DefaultMethod = method
	}
	if fc.Smoothing.DefaultWindow > 0 {
		cfg.Smoothing.DefaultWindow = ClampWindow(fc.Smoothing.DefaultWindow)
	}

	if err := setDuration(&cfg.Refresh.Interval, fc.Refresh.Interval, "refresh.interval"); err != nil {
		return Config{}, err
	}

	if fc.RemoteWrite != nil {
		rw := &RemoteWriteConfig{
			URL:      expandEnv(fc.RemoteWrite.URL),
			Families: fc.RemoteWrite.Families,
			Variant:  fc.RemoteWrite.Variant,
			Headers:  make(map[string]string, len(fc.RemoteWrite.Headers)),
			Retry:    DefaultRetryConfig(),
		}
		for k, v := range fc.RemoteWrite.Headers {
			rw.Headers[k] = expandEnv(v)
		}
		if err := setDuration(&rw.Timeout, fc.RemoteWrite.Timeout, "remote_write.timeout"); err != nil {
			return Config{}, err
		}
		if err := applyFileRetry(&rw.Retry, fc.RemoteWrite.Retry, "remote_write.retry"); err != nil {
			return Config{}, err
		}
		cfg.RemoteWrite = rw
	}

	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

func setDuration(dst *time.Duration, val, field string) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	*dst = d
	return nil
}

func applyFileRetry(dst *RetryConfig, src fileRetry, field string) error {
	if src.MaxAttempts > 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if err := setDuration(&dst.InitialBackoff, src.InitialBackoff, field+".initial_backoff"); err != nil {
		return err
	}
	if err := setDuration(&dst.MaxBackoff, src.MaxBackoff, field+".max_backoff"); err != nil {
		return err
	}
	if src.BackoffMultiplier > 0 {
		dst.BackoffMultiplier = src.BackoffMultiplier
	}
	if src.Jitter > 0 {
		dst.Jitter = src.Jitter
	}
	return nil
}
