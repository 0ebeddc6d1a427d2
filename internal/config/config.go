// Package config loads feedwatch settings from YAML with embedded defaults and
// environment overrides.
//
// Environment variables are read after .env files are loaded. Files are
// loaded in priority order: ENV_FILE (if set, only this file), then .env.local,
// then .env. Variables already present in the environment always win.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where settings are looked up when no --config flag is given.
const DefaultPath = ".feedwatch/settings.yaml"

// Store drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Corrupt store policies.
const (
	OnCorruptBackup = "backup"
	OnCorruptFail   = "fail"
)

//go:embed settings.yaml
var defaultSettings []byte

// Settings represents the YAML configuration structure.
type Settings struct {
	Seeds    []string       `yaml:"seeds"`
	Keywords []string       `yaml:"keywords"`
	Crawl    CrawlSettings  `yaml:"crawl"`
	Fetch    FetchSettings  `yaml:"fetch"`
	Store    StoreSettings  `yaml:"store"`
	Digest   DigestSettings `yaml:"digest"`
	Log      LogSettings    `yaml:"log"`
}

// CrawlSettings bounds link discovery.
type CrawlSettings struct {
	MaxDepth   int           `yaml:"max_depth"`
	MaxPages   int           `yaml:"max_pages"`
	SameOrigin bool          `yaml:"same_origin"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
}

// FetchSettings configures feed downloads.
type FetchSettings struct {
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// StoreSettings selects and locates the persisted store.
type StoreSettings struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	OnCorrupt string `yaml:"on_corrupt"`
}

// DigestSettings locates the Markdown digest. An empty Path disables it.
type DigestSettings struct {
	Path         string `yaml:"path"`
	TemplatePath string `yaml:"template_path,omitempty"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the embedded default settings.
func Default() (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(defaultSettings, &s); err != nil {
		return nil, fmt.Errorf("parsing embedded settings: %w", err)
	}
	return &s, nil
}

// DefaultYAML returns the embedded default settings file.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultSettings...)
}

// Load reads settings from path on top of the embedded defaults and applies
// environment overrides. A missing file falls back to the defaults unless
// required is set.
func Load(path string, required bool) (*Settings, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	settings, err := LoadFile(path, required)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadFile reads settings from path on top of the embedded defaults without
// consulting the environment. Use it when the result is written back.
func LoadFile(path string, required bool) (*Settings, error) {
	settings, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	settings.Keywords = NormalizeKeywords(settings.Keywords)
	return settings, nil
}

// Save writes settings to path as YAML, creating parent directories.
func Save(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}

// EnsureExists writes the embedded defaults to path if no file is there yet.
// It reports whether a file was created.
func EnsureExists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking settings %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, defaultSettings, 0644); err != nil {
		return false, fmt.Errorf("writing default settings: %w", err)
	}
	return true, nil
}

// Validate checks settings for values the pipeline cannot run with.
// Seeds are only required for commands that crawl.
func (s *Settings) Validate(requireSeeds bool) error {
	var errs []error

	if requireSeeds && len(s.Seeds) == 0 {
		errs = append(errs, errors.New("at least one seed URL is required"))
	}
	for _, seed := range s.Seeds {
		if !strings.HasPrefix(seed, "http://") && !strings.HasPrefix(seed, "https://") {
			errs = append(errs, fmt.Errorf("invalid seed URL %q (must start with http:// or https://)", seed))
		}
	}
	if len(s.Keywords) == 0 {
		errs = append(errs, errors.New("at least one keyword is required"))
	}
	if s.Crawl.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("crawl.max_depth must be >= 0, got %d", s.Crawl.MaxDepth))
	}
	if s.Crawl.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("crawl.max_pages must be >= 0, got %d", s.Crawl.MaxPages))
	}
	if s.Crawl.Timeout <= 0 {
		errs = append(errs, errors.New("crawl.timeout must be positive"))
	}
	if s.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if s.Fetch.MinInterval < 0 {
		errs = append(errs, errors.New("fetch.min_interval must not be negative"))
	}
	if s.Store.Driver != DriverJSON && s.Store.Driver != DriverSQLite {
		errs = append(errs, fmt.Errorf("unknown store.driver %q", s.Store.Driver))
	}
	if strings.TrimSpace(s.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if s.Store.OnCorrupt != OnCorruptBackup && s.Store.OnCorrupt != OnCorruptFail {
		errs = append(errs, fmt.Errorf("unknown store.on_corrupt %q", s.Store.OnCorrupt))
	}

	return errors.Join(errs...)
}

// AddKeywords appends keywords not already configured (case-insensitive).
// It returns the keywords that were actually added.
func (s *Settings) AddKeywords(words ...string) []string {
	s.Keywords = NormalizeKeywords(s.Keywords)
	before := len(s.Keywords)
	s.Keywords = NormalizeKeywords(append(s.Keywords, words...))
	return append([]string(nil), s.Keywords[before:]...)
}

// RemoveKeywords drops configured keywords matching any of words
// (case-insensitive). It returns the keywords that were removed.
func (s *Settings) RemoveKeywords(words ...string) []string {
	drop := make(map[string]bool, len(words))
	for _, w := range words {
		drop[strings.ToLower(strings.TrimSpace(w))] = true
	}

	var kept, removed []string
	for _, kw := range s.Keywords {
		if drop[strings.ToLower(kw)] {
			removed = append(removed, kw)
			continue
		}
		kept = append(kept, kw)
	}
	s.Keywords = kept
	return removed
}

// NormalizeKeywords trims keywords and drops blanks and case-insensitive
// duplicates, keeping the first occurrence in order.
func NormalizeKeywords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		key := strings.ToLower(w)
		if w == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func applyEnvOverrides(s *Settings) error {
	if v, ok := os.LookupEnv("FEEDWATCH_STORE_PATH"); ok {
		s.Store.Path = v
	}
	if v, ok := os.LookupEnv("FEEDWATCH_STORE_DRIVER"); ok {
		s.Store.Driver = v
	}
	if v, ok := os.LookupEnv("FEEDWATCH_DIGEST_PATH"); ok {
		s.Digest.Path = v
	}
	if v, ok := os.LookupEnv("FEEDWATCH_LOG_LEVEL"); ok {
		s.Log.Level = v
	}
	if v, ok := os.LookupEnv("FEEDWATCH_MAX_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing FEEDWATCH_MAX_DEPTH: %w", err)
		}
		s.Crawl.MaxDepth = n
	}
	if v, ok := os.LookupEnv("FEEDWATCH_MAX_PAGES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing FEEDWATCH_MAX_PAGES: %w", err)
		}
		s.Crawl.MaxPages = n
	}
	return nil
}
