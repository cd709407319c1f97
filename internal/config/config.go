package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkarev/bracedl/internal/engine"
	"github.com/tkarev/bracedl/internal/utils"
)

// Config mirrors the YAML configuration file:
//
//	download:
//	  url_template: "https://example.com/data_{1..50}.csv"
//	  output_dir: ./downloads
//	  max_concurrent: 10
//	  chunk_size: 8192
//	  resume: true
//	http:
//	  timeout:
//	    total: 30s
//	    connect: 10s
//	  headers:
//	    X-Api-Key: secret
//	  retries:
//	    enabled: true
//	    max_attempts: 3
//	    delay: 2s
//	logging:
//	  level: info
type Config struct {
	Download DownloadSection `yaml:"download"`
	HTTP     HTTPSection     `yaml:"http"`
	Logging  LoggingSection  `yaml:"logging"`
}

type DownloadSection struct {
	URLTemplate   string `yaml:"url_template"`
	OutputDir     string `yaml:"output_dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	ChunkSize     int64  `yaml:"chunk_size"`
	Resume        *bool  `yaml:"resume"`
}

type HTTPSection struct {
	Timeout TimeoutSection    `yaml:"timeout"`
	Retries RetriesSection    `yaml:"retries"`
	Headers map[string]string `yaml:"headers"`
}

type TimeoutSection struct {
	Total   Duration `yaml:"total"`
	Connect Duration `yaml:"connect"`
}

type RetriesSection struct {
	Enabled     bool     `yaml:"enabled"`
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       Duration `yaml:"delay"`
}

// Duration accepts both Go duration strings ("30s", "2m") and bare numbers,
// which are read as seconds for compatibility with older config files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

type LoggingSection struct {
	Level string `yaml:"level"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	log := utils.GetLogger("config")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Str("template", cfg.Download.URLTemplate).Msg("Config loaded")
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = "./downloads"
	}
	if c.Download.MaxConcurrent == 0 {
		c.Download.MaxConcurrent = 10
	}
	if c.Download.ChunkSize == 0 {
		c.Download.ChunkSize = utils.DefaultChunkSize
	}
	if c.HTTP.Timeout.Total == 0 {
		c.HTTP.Timeout.Total = Duration(30 * time.Second)
	}
	if c.HTTP.Timeout.Connect == 0 {
		c.HTTP.Timeout.Connect = Duration(10 * time.Second)
	}
	if c.HTTP.Retries.Enabled && c.HTTP.Retries.MaxAttempts == 0 {
		c.HTTP.Retries.MaxAttempts = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Download.URLTemplate == "" {
		return fmt.Errorf("config: download.url_template is required")
	}
	if c.Download.MaxConcurrent < 1 {
		return fmt.Errorf("config: download.max_concurrent must be at least 1")
	}
	if c.Download.ChunkSize < 1 {
		return fmt.Errorf("config: download.chunk_size must be positive")
	}
	if c.HTTP.Retries.Enabled && c.HTTP.Retries.MaxAttempts < 1 {
		return fmt.Errorf("config: http.retries.max_attempts must be at least 1")
	}
	if c.HTTP.Retries.Delay < 0 {
		return fmt.Errorf("config: http.retries.delay cannot be negative")
	}
	return nil
}

// Spec converts the parsed configuration into the engine's input. Resume
// defaults to on when the file does not say otherwise.
func (c *Config) Spec() engine.DownloadSpec {
	resume := true
	if c.Download.Resume != nil {
		resume = *c.Download.Resume
	}
	return engine.DownloadSpec{
		URLTemplate:    c.Download.URLTemplate,
		OutputDir:      c.Download.OutputDir,
		MaxConcurrent:  c.Download.MaxConcurrent,
		ChunkSize:      c.Download.ChunkSize,
		Timeout:        time.Duration(c.HTTP.Timeout.Total),
		ConnectTimeout: time.Duration(c.HTTP.Timeout.Connect),
		UserAgent:      utils.ToolUserAgent,
		Headers:        c.HTTP.Headers,
		Retry: engine.RetryPolicy{
			Enabled:     c.HTTP.Retries.Enabled,
			MaxAttempts: c.HTTP.Retries.MaxAttempts,
			Delay:       time.Duration(c.HTTP.Retries.Delay),
		},
		ResumeEnabled: resume,
	}
}
