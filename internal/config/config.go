package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Languages supported by the terminal presenter.
var Languages = []string{"en", "fr"}

// Config holds application configuration.
type Config struct {
	// SavesDir is the directory holding tree snapshots.
	// Defaults to <base>/saves. It should contain only snapshot files;
	// anything else is ignored when picking the latest snapshot.
	SavesDir string `json:"saves_dir,omitempty"`

	// ExportsDir is the default destination for `uas export`.
	ExportsDir string `json:"exports_dir,omitempty"`

	// SnapshotExt is the snapshot file extension, without the dot.
	SnapshotExt string `json:"snapshot_ext,omitempty"`

	// TimestampLayout names snapshots. It must render as a fixed-width
	// run of digits so numeric and chronological order coincide.
	TimestampLayout string `json:"timestamp_layout,omitempty"`

	// PositiveAnswers and NegativeAnswers are matched case-insensitively.
	PositiveAnswers []string `json:"positive_answers,omitempty"`
	NegativeAnswers []string `json:"negative_answers,omitempty"`

	// MaxInvalidInputs is the number of consecutive invalid answers that
	// ends a session non-gracefully.
	MaxInvalidInputs int `json:"max_invalid_inputs,omitempty"`

	// Language selects the message catalog: "en" or "fr".
	Language string `json:"language,omitempty"`

	// FinishDelaySeconds pauses on the closing notice before the next
	// session starts or the process exits.
	FinishDelaySeconds int `json:"finish_delay_seconds,omitempty"`

	// DisableJournal turns off the SQLite session journal.
	DisableJournal bool `json:"disable_journal,omitempty"`
}

// DefaultConfig returns the default configuration for baseDir.
func DefaultConfig(baseDir string) *Config {
	return &Config{
		SavesDir:         filepath.Join(baseDir, "saves"),
		ExportsDir:       filepath.Join(baseDir, "exports"),
		SnapshotExt:      "UAS",
		TimestampLayout:  "20060102150405",
		PositiveAnswers:  []string{"y", "yes", "o", "oui"},
		NegativeAnswers:  []string{"n", "no", "non"},
		MaxInvalidInputs: 3,
		Language:         "en",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.uas.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg = Merge(DefaultConfig(baseDir), cfg)
	cfg.SavesDir = resolve(baseDir, cfg.SavesDir)
	cfg.ExportsDir = resolve(baseDir, cfg.ExportsDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// resolve makes relative directories relative to baseDir.
func resolve(baseDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

// Merge combines base and overlay configs.
// Overlay values take precedence when set. Answer vocabularies are
// replaced, not merged, so a config can narrow the accepted tokens.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.SavesDir = firstNonEmpty(overlay.SavesDir, base.SavesDir)
	result.ExportsDir = firstNonEmpty(overlay.ExportsDir, base.ExportsDir)
	result.SnapshotExt = strings.TrimPrefix(firstNonEmpty(overlay.SnapshotExt, base.SnapshotExt), ".")
	result.TimestampLayout = firstNonEmpty(overlay.TimestampLayout, base.TimestampLayout)
	result.Language = strings.ToLower(firstNonEmpty(overlay.Language, base.Language))

	result.MaxInvalidInputs = overlay.MaxInvalidInputs
	if result.MaxInvalidInputs == 0 {
		result.MaxInvalidInputs = base.MaxInvalidInputs
	}

	result.FinishDelaySeconds = overlay.FinishDelaySeconds
	if result.FinishDelaySeconds == 0 {
		result.FinishDelaySeconds = base.FinishDelaySeconds
	}

	// Booleans: overlay wins if true, else base
	result.DisableJournal = base.DisableJournal || overlay.DisableJournal

	result.PositiveAnswers = normalizeTokens(overlay.PositiveAnswers)
	if len(result.PositiveAnswers) == 0 {
		result.PositiveAnswers = normalizeTokens(base.PositiveAnswers)
	}
	result.NegativeAnswers = normalizeTokens(overlay.NegativeAnswers)
	if len(result.NegativeAnswers) == 0 {
		result.NegativeAnswers = normalizeTokens(base.NegativeAnswers)
	}

	return result
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.SavesDir == "" {
		return fmt.Errorf("saves_dir must not be empty")
	}
	if c.SnapshotExt == "" || strings.ContainsAny(c.SnapshotExt, `./\`) {
		return fmt.Errorf("snapshot_ext %q is not a valid extension", c.SnapshotExt)
	}
	sample := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC).Format(c.TimestampLayout)
	if sample == "" || strings.Trim(sample, "0123456789") != "" {
		return fmt.Errorf("timestamp_layout %q must format as digits only", c.TimestampLayout)
	}
	// Unpadded fields would make later names sort below earlier ones.
	wide := time.Date(2006, 12, 31, 23, 59, 59, 0, time.UTC).Format(c.TimestampLayout)
	if len(wide) != len(sample) {
		return fmt.Errorf("timestamp_layout %q must format at a fixed width", c.TimestampLayout)
	}
	if len(c.PositiveAnswers) == 0 || len(c.NegativeAnswers) == 0 {
		return fmt.Errorf("positive_answers and negative_answers must not be empty")
	}
	neg := make(map[string]bool, len(c.NegativeAnswers))
	for _, n := range c.NegativeAnswers {
		neg[n] = true
	}
	for _, p := range c.PositiveAnswers {
		if neg[p] {
			return fmt.Errorf("answer %q is both positive and negative", p)
		}
	}
	if c.MaxInvalidInputs < 1 {
		return fmt.Errorf("max_invalid_inputs must be at least 1")
	}
	if c.FinishDelaySeconds < 0 {
		return fmt.Errorf("finish_delay_seconds must not be negative")
	}
	for _, l := range Languages {
		if c.Language == l {
			return nil
		}
	}
	return fmt.Errorf("language %q is not supported (want one of %v)", c.Language, Languages)
}

// FinishDelay returns FinishDelaySeconds as a duration.
func (c *Config) FinishDelay() time.Duration {
	return time.Duration(c.FinishDelaySeconds) * time.Second
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// normalizeTokens lowercases, trims, and deduplicates answer tokens.
func normalizeTokens(tokens []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(tokens))

	for _, s := range tokens {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
