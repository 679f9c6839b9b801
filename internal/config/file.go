package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// keyKinds lists the keys accepted by SetValue and how their values parse.
var keyKinds = map[string]string{
	"base_url":        "string",
	"api_prefix":      "string",
	"business_id":     "string",
	"timezone":        "timezone",
	"locale":          "string",
	"currency":        "string",
	"format":          "format",
	"state_dir":       "string",
	"rate_limit":      "float",
	"rate_burst":      "int",
	"timeout":         "duration",
	"replay_policy":   "replay",
	"default_profile": "string",
	"hints":           "bool",
	"stats":           "bool",
	"verbose":         "verbose",
}

// ValidKeys returns the settable keys in sorted order.
func ValidKeys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseValue validates raw for key and converts it to its JSON form.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("invalid config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}

	switch kind {
	case "bool":
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return nil, fmt.Errorf("%s must be true/false (or 1/0)", key)
	case "verbose":
		level, err := strconv.Atoi(raw)
		if err != nil || level < 0 || level > 2 {
			return nil, fmt.Errorf("verbose must be 0, 1, or 2")
		}
		return level, nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("%s must be a non-negative number", key)
		}
		return f, nil
	case "int":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return n, nil
	case "duration":
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a duration like 30s", key)
		}
		return d.String(), nil
	case "timezone":
		if raw != "Local" {
			if _, err := time.LoadLocation(raw); err != nil {
				return nil, fmt.Errorf("unknown timezone %q", raw)
			}
		}
		return raw, nil
	case "format":
		switch raw {
		case "auto", "json", "styled", "markdown", "quiet":
			return raw, nil
		}
		return nil, fmt.Errorf("format must be one of auto, json, styled, markdown, quiet")
	case "replay":
		switch raw {
		case "always", "if-authenticated":
			return raw, nil
		}
		return nil, fmt.Errorf("replay_policy must be always or if-authenticated")
	}
	return raw, nil
}

// ReadFile loads a config file as a generic map. A missing file is empty.
func ReadFile(path string) (map[string]any, error) {
	data := make(map[string]any)
	raw, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return data, nil
}

// SetValue validates and writes key into the config file at path.
func SetValue(path, key, raw string) (any, error) {
	value, err := ParseValue(key, raw)
	if err != nil {
		return nil, err
	}
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	if key == "default_profile" {
		if profiles, _ := data["profiles"].(map[string]any); len(profiles) > 0 {
			if _, ok := profiles[raw]; !ok {
				return nil, fmt.Errorf("profile %q not found", raw)
			}
		}
	}

	data[key] = value
	return value, writeFile(path, data)
}

// UnsetValue removes key from the config file at path. It reports whether
// the key was present.
func UnsetValue(path, key string) (bool, error) {
	data, err := ReadFile(path)
	if err != nil {
		return false, err
	}
	if _, ok := data[key]; !ok {
		return false, nil
	}
	delete(data, key)
	return true, writeFile(path, data)
}

func writeFile(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return atomicWriteFile(path, append(out, '\n'))
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows: rename fails when the destination exists.
	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(path)
			return os.Rename(tmpPath, path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
