package probe

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/streamprobe/embed"
)

// BrowserConfig selects how Chrome is obtained for a run.
type BrowserConfig struct {
	// RemoteURL connects to an already running Chrome over WebSocket.
	// Empty means launch a local one.
	RemoteURL string `yaml:"remote_url"`

	// Headless applies to locally launched Chrome. Default: true.
	Headless *bool `yaml:"headless"`

	// BlockResources lists resource types blocked on every tab
	// (e.g. image, font, media).
	BlockResources []string `yaml:"block_resources"`
}

// WaitConfig sets the default quiescence windows for stream waits.
// Per-check overrides in CheckSpec take precedence.
type WaitConfig struct {
	// Silence is how long the response element must stay unchanged
	// before the stream counts as complete. Default: 1s.
	Silence time.Duration `yaml:"silence"`

	// Overall caps the whole wait. Default: 30s.
	Overall time.Duration `yaml:"overall"`

	// PollInterval overrides the derived polling cadence. 0 = derive
	// from Silence.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ReportConfig points at the SQLite file for run history. Empty path
// disables recording.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// Config is the full probe configuration.
type Config struct {
	Browser   BrowserConfig `yaml:"browser"`
	Embedding embed.Config  `yaml:"embedding"`
	Wait      WaitConfig    `yaml:"wait"`
	Report    ReportConfig  `yaml:"report"`
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("probe: read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("probe: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns a config usable without any file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Wait.Silence <= 0 {
		c.Wait.Silence = time.Second
	}
	if c.Wait.Overall <= 0 {
		c.Wait.Overall = 30 * time.Second
	}
}
