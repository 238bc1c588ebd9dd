package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/perfgo/benchtrack/history"
	"github.com/perfgo/benchtrack/regression"
	"gopkg.in/yaml.v3"
)

// ErrConfig marks invalid configuration
var ErrConfig = regression.ErrConfig

const (
	DefaultStoreTimeout = 30 * time.Second
	DefaultStoreRetries = 4
)

// DefaultFiles are tried in order when no configuration file is given
var DefaultFiles = []string{".benchtrack.yaml", "benchtrack.yaml"}

// Config is the configuration file of benchtrack
type Config struct {
	RepoURL   string            `yaml:"repoUrl"`
	Store     Store             `yaml:"store"`
	Detector  regression.Config `yaml:"detector"`
	Retention Retention         `yaml:"retention"`
	Slack     Slack             `yaml:"slack"`
}

type Store struct {
	// Path of the document, gs://bucket/object for Cloud Storage. A .gz
	// suffix compresses the document.
	Location string `yaml:"location"`
	// Time a single persist may take
	Timeout time.Duration `yaml:"timeout"`
	// Retries of transient storage failures
	Retries *int `yaml:"retries"`
}

type Retention struct {
	MaxEntries int   `yaml:"maxEntries"`
	MaxAgeMs   int64 `yaml:"maxAgeMs"`
}

type Slack struct {
	Token    string `yaml:"token"`
	Channel  string `yaml:"channel"`
	Username string `yaml:"username"`
}

// Enabled reports whether notifications can be posted
func (s Slack) Enabled() bool {
	return s.Token != "" && s.Channel != ""
}

// StoreRetries returns the retry budget of the store
func (c *Config) StoreRetries() int {
	if c.Store.Retries == nil {
		return DefaultStoreRetries
	}
	return *c.Store.Retries
}

// HistoryRetention converts the retention settings for the history store
func (c *Config) HistoryRetention() history.Retention {
	return history.Retention{
		MaxEntries: c.Retention.MaxEntries,
		MaxAge:     time.Duration(c.Retention.MaxAgeMs) * time.Millisecond,
	}
}

func configError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// Validate checks the whole configuration. The detector has no defaults, so
// its options must be set by the file or by flags before calling Validate.
func (c *Config) Validate() error {
	if c.Store.Location == "" {
		return configError("store.location is required")
	}
	if c.Store.Timeout < 0 {
		return configError("store.timeout must not be negative, got %s", c.Store.Timeout)
	}
	if c.StoreRetries() < 0 {
		return configError("store.retries must not be negative, got %d", c.StoreRetries())
	}
	if c.Retention.MaxEntries < 0 || c.Retention.MaxAgeMs < 0 {
		return configError("retention limits must not be negative")
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	return nil
}

// Parse decodes a configuration document. Environment variables referenced
// as $VAR or ${VAR} are expanded first.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Store: Store{Timeout: DefaultStoreTimeout},
	}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse configuration"), ErrConfig)
	}
	return cfg, nil
}

// Load reads the configuration file at path. An empty path tries
// DefaultFiles and falls back to an empty configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, name := range DefaultFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path == "" {
		return Parse(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if oserror.IsNotExist(err) {
			return nil, configError("configuration file %s does not exist", path)
		}
		return nil, errors.Wrapf(err, "failed to read configuration file %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return cfg, nil
}
