package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	defaultURL     = "http://localhost:8002"
	defaultTimeout = 30 * time.Second
	urlEnvVar      = "NDCHAT_URL"
)

// config holds the merged settings: defaults, then the config file, then the
// environment, then flags.
type config struct {
	URL           string        `yaml:"url"`
	StreamPath    string        `yaml:"stream_path"`
	HealthPath    string        `yaml:"health_path"`
	LogLevel      string        `yaml:"log_level"`
	LogFile       string        `yaml:"log_file"`
	TranscriptDir string        `yaml:"transcript_dir"`
	Timeout       time.Duration `yaml:"timeout"`
}

func defaultConfig() config {
	return config{
		URL:           defaultURL,
		StreamPath:    "/chat/stream",
		HealthPath:    "/health",
		LogLevel:      "info",
		LogFile:       filepath.Join(homeDir(), ".ndchat", "ndchat.log"),
		TranscriptDir: filepath.Join(homeDir(), ".ndchat", "transcripts"),
		Timeout:       defaultTimeout,
	}
}

func defaultConfigPath() string {
	return filepath.Join(homeDir(), ".ndchat", "config.yaml")
}

// loadConfig overlays the YAML file at path on the defaults. A missing file
// is an error only when required.
func loadConfig(path string, required bool) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !required:
		return cfg, nil
	default:
		return config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// withEnv applies environment overrides.
func (c config) withEnv(getenv func(string) string) config {
	if v := strings.TrimSpace(getenv(urlEnvVar)); v != "" {
		c.URL = v
	}
	return c
}

// withFlags applies the flags set on the command line.
func (c config) withFlags(cmd *cobra.Command, f *flags) config {
	fl := cmd.Flags()
	if fl.Changed("url") {
		c.URL = f.url
	}
	if fl.Changed("stream-path") {
		c.StreamPath = f.streamPath
	}
	if fl.Changed("health-path") {
		c.HealthPath = f.healthPath
	}
	if fl.Changed("log-level") {
		c.LogLevel = f.logLevel
	}
	if fl.Changed("log-file") {
		c.LogFile = f.logFile
	}
	if fl.Changed("transcript-dir") {
		c.TranscriptDir = f.transcriptDir
	}
	if fl.Changed("timeout") {
		c.Timeout = f.timeout
	}
	return c
}

func (c config) validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: want http(s)://host[:port]", c.URL)
	}
	if !strings.HasPrefix(c.StreamPath, "/") || !strings.HasPrefix(c.HealthPath, "/") {
		return errors.New("stream_path and health_path must start with /")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}
	return nil
}

// resolveConfig merges every settings source for cmd.
func resolveConfig(cmd *cobra.Command, f *flags, getenv func(string) string) (config, error) {
	path, required := f.configPath, true
	if path == "" {
		path, required = defaultConfigPath(), false
	}
	cfg, err := loadConfig(expandHome(path), required)
	if err != nil {
		return config{}, err
	}
	cfg = cfg.withEnv(getenv).withFlags(cmd, f)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.TranscriptDir = expandHome(cfg.TranscriptDir)
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return path
}
