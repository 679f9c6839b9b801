// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DirName is the per-user and per-directory config folder name.
const DirName = "slotbook"

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL    string `json:"base_url"`
	APIPrefix  string `json:"api_prefix"`
	BusinessID string `json:"business_id"`

	// Profile settings (named environment bundles)
	Profiles       map[string]*ProfileConfig `json:"profiles,omitempty"`
	DefaultProfile string                    `json:"default_profile,omitempty"`
	ActiveProfile  string                    `json:"-"` // Set at runtime, not persisted

	// Presentation
	Timezone string `json:"timezone"`
	Locale   string `json:"locale,omitempty"`
	Currency string `json:"currency,omitempty"`
	Format   string `json:"format"`

	// Session state (cookies fallback file, refresh lock, session marker)
	StateDir string `json:"state_dir"`

	// Transport
	RateLimit    float64       `json:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `json:"rate_burst"`
	Timeout      time.Duration `json:"-"`
	ReplayPolicy string        `json:"replay_policy,omitempty"`

	// Behavior preferences (persisted via config set, overridable by flags)
	Hints   *bool `json:"hints,omitempty"`
	Stats   *bool `json:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// ProfileConfig holds configuration for a named profile.
type ProfileConfig struct {
	BaseURL    string `json:"base_url"`
	APIPrefix  string `json:"api_prefix,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceRepo    Source = "repo"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourceProfile Source = "profile"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Business string
	Profile  string
	StateDir string
	Format   string
	Timezone string
}

// Default returns the default configuration.
func Default() *Config {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, _ := os.UserHomeDir()
		stateDir = filepath.Join(home, ".local", "state")
	}

	return &Config{
		BaseURL:   "https://api.slotbook.app",
		APIPrefix: "/api",
		Timezone:  "Local",
		Format:    "auto",
		StateDir:  filepath.Join(stateDir, DirName),
		RateLimit: 10,
		RateBurst: 5,
		Timeout:   30 * time.Second,
		Sources:   make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > repo > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)

	repoPath := repoConfigPath()
	if repoPath != "" {
		loadFromFile(cfg, repoPath, SourceRepo)
	}

	// Closer local configs override parents
	for _, path := range localConfigPaths(repoPath) {
		loadFromFile(cfg, path, SourceLocal)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

// authorityKeys control where session cookies are sent. Local and repo config
// must not set them: a config file in a cloned repo could otherwise redirect
// authenticated traffic.
var authorityKeys = map[string]bool{
	"base_url":        true,
	"api_prefix":      true,
	"default_profile": true,
	"profiles":        true,
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	untrusted := source == SourceLocal || source == SourceRepo
	for key := range fileCfg {
		if untrusted && authorityKeys[key] {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s from %s config at %s (authority keys are not trusted from local/repo config)\n", key, source, path)
			delete(fileCfg, key)
		}
	}

	for _, f := range fileFields {
		if v, ok := fileCfg[f.key]; ok && f.apply(cfg, v) {
			cfg.Sources[f.key] = string(source)
		}
	}
}

// fileField decodes one JSON key onto Config. apply reports whether the
// value was accepted; rejected values leave the lower layer in place.
type fileField struct {
	key   string
	apply func(cfg *Config, v any) bool
}

// stringField assigns a non-empty string; allowEmpty also accepts "".
func stringField(key string, dst func(*Config) *string, allowEmpty bool) fileField {
	return fileField{key, func(cfg *Config, v any) bool {
		s, ok := v.(string)
		if !ok || (s == "" && !allowEmpty) {
			return false
		}
		*dst(cfg) = s
		return true
	}}
}

func boolField(key string, dst func(*Config) **bool) fileField {
	return fileField{key, func(cfg *Config, v any) bool {
		b, ok := v.(bool)
		if ok {
			*dst(cfg) = &b
		}
		return ok
	}}
}

// wholeNumber reports v as an int when it is a JSON number in [lo, hi].
func wholeNumber(v any, lo, hi int) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) || int(f) < lo || int(f) > hi {
		return 0, false
	}
	return int(f), true
}

var fileFields = []fileField{
	stringField("base_url", func(c *Config) *string { return &c.BaseURL }, false),
	stringField("api_prefix", func(c *Config) *string { return &c.APIPrefix }, true),
	{"business_id", func(cfg *Config, v any) bool {
		id := stringOrNumber(v)
		if id != "" {
			cfg.BusinessID = id
		}
		return id != ""
	}},
	stringField("timezone", func(c *Config) *string { return &c.Timezone }, false),
	stringField("locale", func(c *Config) *string { return &c.Locale }, false),
	stringField("currency", func(c *Config) *string { return &c.Currency }, false),
	stringField("format", func(c *Config) *string { return &c.Format }, false),
	stringField("state_dir", func(c *Config) *string { return &c.StateDir }, false),
	{"rate_limit", func(cfg *Config, v any) bool {
		f, ok := v.(float64)
		if ok && f >= 0 {
			cfg.RateLimit = f
			return true
		}
		return false
	}},
	{"rate_burst", func(cfg *Config, v any) bool {
		n, ok := wholeNumber(v, 1, math.MaxInt32)
		if ok {
			cfg.RateBurst = n
		}
		return ok
	}},
	{"timeout", func(cfg *Config, v any) bool {
		d, ok := parseTimeout(v)
		if ok {
			cfg.Timeout = d
		}
		return ok
	}},
	stringField("replay_policy", func(c *Config) *string { return &c.ReplayPolicy }, false),
	boolField("hints", func(c *Config) **bool { return &c.Hints }),
	boolField("stats", func(c *Config) **bool { return &c.Stats }),
	{"verbose", func(cfg *Config, v any) bool {
		n, ok := wholeNumber(v, 0, 2)
		if ok {
			cfg.Verbose = &n
		}
		return ok
	}},
	stringField("default_profile", func(c *Config) *string { return &c.DefaultProfile }, false),
	{"profiles", func(cfg *Config, v any) bool {
		raw, ok := v.(map[string]any)
		if !ok {
			return false
		}
		if cfg.Profiles == nil {
			cfg.Profiles = map[string]*ProfileConfig{}
		}
		for name, entry := range raw {
			m, _ := entry.(map[string]any)
			baseURL, _ := m["base_url"].(string)
			if baseURL == "" {
				continue
			}
			p := &ProfileConfig{BaseURL: baseURL, BusinessID: stringOrNumber(m["business_id"])}
			p.APIPrefix, _ = m["api_prefix"].(string)
			p.Timezone, _ = m["timezone"].(string)
			cfg.Profiles[name] = p
		}
		return true
	}},
}

// parseTimeout accepts a Go duration string ("45s") or a number of seconds.
func parseTimeout(v any) (time.Duration, bool) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		return d, err == nil && d > 0
	case float64:
		if t > 0 {
			return time.Duration(t * float64(time.Second)), true
		}
	}
	return 0, false
}

// LoadFromEnv loads configuration from SLOTBOOK_* environment variables.
// Exported so the root command can re-apply after profile overlay.
func LoadFromEnv(cfg *Config) {
	str := func(env, key string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceEnv)
		}
	}
	str("SLOTBOOK_BASE_URL", "base_url", &cfg.BaseURL)
	str("SLOTBOOK_API_PREFIX", "api_prefix", &cfg.APIPrefix)
	str("SLOTBOOK_BUSINESS_ID", "business_id", &cfg.BusinessID)
	str("SLOTBOOK_TIMEZONE", "timezone", &cfg.Timezone)
	str("SLOTBOOK_CURRENCY", "currency", &cfg.Currency)
	str("SLOTBOOK_FORMAT", "format", &cfg.Format)
	str("SLOTBOOK_STATE_DIR", "state_dir", &cfg.StateDir)
	str("SLOTBOOK_REPLAY_POLICY", "replay_policy", &cfg.ReplayPolicy)

	if v := os.Getenv("SLOTBOOK_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimit = f
			cfg.Sources["rate_limit"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SLOTBOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SLOTBOOK_HINTS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Hints = &b
			cfg.Sources["hints"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SLOTBOOK_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values are ignored to preserve three-state pointer semantics.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// stringOrNumber accepts IDs written either as JSON strings or numbers.
func stringOrNumber(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Business != "" {
		cfg.BusinessID = o.Business
		cfg.Sources["business_id"] = string(SourceFlag)
	}
	if o.StateDir != "" {
		cfg.StateDir = o.StateDir
		cfg.Sources["state_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Timezone != "" {
		cfg.Timezone = o.Timezone
		cfg.Sources["timezone"] = string(SourceFlag)
	}
}

// ApplyProfile overlays profile values onto the config.
//
// This is the first pass of a two-pass precedence system: profile values
// overwrite config fields here, then the caller re-applies LoadFromEnv and
// ApplyOverrides so env vars and flags keep final precedence.
func (cfg *Config) ApplyProfile(name string) error {
	if cfg.Profiles == nil {
		return fmt.Errorf("no profiles configured")
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}

	cfg.ActiveProfile = name

	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
		cfg.Sources["base_url"] = string(SourceProfile)
	}
	if p.APIPrefix != "" {
		cfg.APIPrefix = p.APIPrefix
		cfg.Sources["api_prefix"] = string(SourceProfile)
	}
	if p.BusinessID != "" {
		cfg.BusinessID = p.BusinessID
		cfg.Sources["business_id"] = string(SourceProfile)
	}
	if p.Timezone != "" {
		cfg.Timezone = p.Timezone
		cfg.Sources["timezone"] = string(SourceProfile)
	}
	return nil
}

// Location resolves the configured time zone. "Local" and "" mean the
// machine's zone.
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Timezone == "" || cfg.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return loc, nil
}

// Origin is the normalized base URL used to key stored sessions.
func (cfg *Config) Origin() string {
	return NormalizeBaseURL(cfg.BaseURL)
}

// Path helpers

func systemConfigPath() string {
	return filepath.Join("/etc", DirName, "config.json")
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return globalConfigPath()
}

// LocalConfigPath returns the config file path in the current directory.
func LocalConfigPath() string {
	return filepath.Join("."+DirName, "config.json")
}

func repoConfigPath() string {
	// Walk up to find .git, then look for .slotbook/config.json.
	// Bounded by $HOME: if CWD is outside $HOME no repo config is trusted.
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	dir = resolved
	home, _ := os.UserHomeDir()
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}

	if home != "" && !isInsideDir(dir, home) {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			cfgPath := filepath.Join(dir, "."+DirName, "config.json")
			if _, err := os.Stat(cfgPath); err == nil {
				return cfgPath
			}
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && dir == home) {
			return ""
		}
		dir = parent
	}
}

// isInsideDir reports whether child is the same as or a subdirectory of parent.
func isInsideDir(child, parent string) bool {
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// localConfigPaths returns .slotbook/config.json paths within the trust
// boundary, furthest ancestor first, excluding the repo config.
//
// Inside a git repo the boundary is the repo root; outside, only the current
// directory is considered.
func localConfigPaths(repoConfigPath string) []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil
	}
	dir = resolved

	boundary := dir
	if repoConfigPath != "" {
		boundary = filepath.Dir(filepath.Dir(repoConfigPath))
	}
	if resolved, err := filepath.EvalSymlinks(boundary); err == nil {
		boundary = resolved
	}

	var paths []string
	for {
		cfgPath := filepath.Join(dir, "."+DirName, "config.json")
		if _, err := os.Stat(cfgPath); err == nil && cfgPath != repoConfigPath {
			paths = append(paths, cfgPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir || dir == boundary {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, DirName)
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
