package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/shallow"
)

// Config is the top-level configuration for cpp-shallow
type Config struct {
	// Dialects maps file extensions to "c" or "cpp"
	Dialects map[string]string `json:"dialects,omitempty"`

	// Sources lists the glob patterns of the files to parse
	Sources SourcesConfig `json:"sources,omitempty"`

	// Files is an explicit list of files with optional dialect overrides
	Files []FileEntry `json:"files,omitempty"`

	// PseudoKeywords are identifiers dropped before matching (calling
	// conventions, export macros)
	PseudoKeywords []string `json:"pseudoKeywords,omitempty"`

	Preprocessor PreprocessorConfig `json:"preprocessor,omitempty"`

	// GrammarCheck runs the tree-sitter cross-check on every file
	GrammarCheck bool `json:"grammarCheck,omitempty"`

	Limits LimitsConfig `json:"limits,omitempty"`

	// Policy contains rule configuration for the rego checks
	Policy PolicyConfig `json:"policy,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty"`
}

// SourcesConfig selects the files of a project
type SourcesConfig struct {
	// Include is a list of glob patterns, ** matches any directory depth
	Include []string `json:"include"`

	// Exclude is a list of glob patterns removed from Include
	Exclude []string `json:"exclude,omitempty"`
}

// FileEntry is an explicit file entry with optional dialect metadata
type FileEntry struct {
	File         string `json:"file"`
	Dialect      string `json:"dialect,omitempty"`
	IsThirdParty bool   `json:"isThirdParty,omitempty"`
}

// PreprocessorConfig controls how conditional branches are read
type PreprocessorConfig struct {
	// FirstBranchOnly reads only the first branch of #if/#elif/#else
	FirstBranchOnly *bool `json:"firstBranchOnly,omitempty"`
}

// LimitsConfig bounds the work spent on one file
type LimitsConfig struct {
	// MaxFileBytes rejects larger files (0 = no limit)
	MaxFileBytes int `json:"maxFileBytes,omitempty"`

	// Timeout is a Go duration string, "10s"
	Timeout string `json:"timeout,omitempty"`
}

// PolicyConfig contains rule configuration
type PolicyConfig struct {
	// Rules maps rule names to severity: "off", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// Modules lists extra rego files loaded next to the built-in rules
	Modules []string `json:"modules,omitempty"`

	// IgnorePatterns is a list of file patterns to skip entirely
	IgnorePatterns []string `json:"ignorePatterns,omitempty"`
}

// CacheConfig controls the parse cache
type CacheConfig struct {
	// Enabled turns on cache usage
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`

	// Cache controls the parse cache
	Cache CacheConfig `json:"cache,omitempty"`
}

const (
	defaultCacheDir     = ".cpp_shallow_cache"
	defaultMaxFileBytes = 8 << 20
	defaultTimeout      = "10s"
)

var defaultSources = []string{
	"**/*.c", "**/*.h", "**/*.cc", "**/*.cpp", "**/*.cxx", "**/*.c++",
	"**/*.hh", "**/*.hpp", "**/*.hxx", "**/*.h++", "**/*.inl", "**/*.ipp", "**/*.tpp",
}

func defaultDialects() map[string]string {
	m := map[string]string{".c": "c"}
	for _, ext := range []string{".h", ".hh", ".hpp", ".hxx", ".h++", ".cc", ".cpp", ".cxx", ".c++", ".inl", ".ipp", ".tpp"} {
		m[ext] = "cpp"
	}
	return m
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Dialects:       defaultDialects(),
		Sources:        SourcesConfig{Include: append([]string(nil), defaultSources...), Exclude: []string{}},
		PseudoKeywords: append([]string(nil), region.DefaultPseudoKeywords...),
		Preprocessor:   PreprocessorConfig{FirstBranchOnly: boolPtr(true)},
		Limits: LimitsConfig{
			MaxFileBytes: defaultMaxFileBytes,
			Timeout:      defaultTimeout,
		},
		Policy: PolicyConfig{
			Rules:          map[string]string{},
			IgnorePatterns: []string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     defaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./cpp_shallow.json (current working directory)
//  2. ./.cpp_shallow.json (current working directory)
//  3. <rootPath>/cpp_shallow.json (if different from cwd)
//  4. ~/.config/cpp_shallow/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "cpp_shallow.json"),
		filepath.Join(cwd, ".cpp_shallow.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "cpp_shallow.json"),
				filepath.Join(rootPath, ".cpp_shallow.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "cpp_shallow", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Dialects == nil {
		c.Dialects = defaultDialects()
	}
	if len(c.Sources.Include) == 0 && len(c.Files) == 0 {
		c.Sources.Include = append([]string(nil), defaultSources...)
	}
	if c.PseudoKeywords == nil {
		c.PseudoKeywords = append([]string(nil), region.DefaultPseudoKeywords...)
	}
	if c.Preprocessor.FirstBranchOnly == nil {
		c.Preprocessor.FirstBranchOnly = boolPtr(true)
	}
	if c.Limits.MaxFileBytes == 0 {
		c.Limits.MaxFileBytes = defaultMaxFileBytes
	}
	if c.Limits.Timeout == "" {
		c.Limits.Timeout = defaultTimeout
	}
	if c.Policy.Rules == nil {
		c.Policy.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = defaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}
}

// check rejects values that would only fail later
func (c *Config) check() error {
	for ext, d := range c.Dialects {
		if _, ok := lexer.ParseDialect(d); !ok {
			return fmt.Errorf("dialect %q for %s: want c or cpp", d, ext)
		}
	}
	for _, f := range c.Files {
		if f.Dialect == "" {
			continue
		}
		if _, ok := lexer.ParseDialect(f.Dialect); !ok {
			return fmt.Errorf("dialect %q for %s: want c or cpp", f.Dialect, f.File)
		}
	}
	if _, err := time.ParseDuration(c.Limits.Timeout); err != nil {
		return fmt.Errorf("limits.timeout: %w", err)
	}
	for rule, severity := range c.Policy.Rules {
		switch severity {
		case "off", "warning", "error", "info":
		default:
			return fmt.Errorf("rule %s: unknown severity %q", rule, severity)
		}
	}
	return nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the parse cache is on
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled == nil || *c.Analysis.Cache.Enabled
}

// CacheDir returns the cache directory resolved against rootPath
func (c *Config) CacheDir(rootPath string) string {
	dir := c.Analysis.Cache.Dir
	if dir == "" {
		dir = defaultCacheDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(rootPath, dir)
}

// DialectFor returns the dialect of a file: an explicit file entry wins,
// then the extension table
func (c *Config) DialectFor(filePath string) lexer.Dialect {
	if entry, ok := c.fileEntry(filePath); ok && entry.Dialect != "" {
		if d, ok := lexer.ParseDialect(entry.Dialect); ok {
			return d
		}
	}
	return shallow.DialectFor(filePath, c.dialectTable())
}

func (c *Config) dialectTable() map[string]lexer.Dialect {
	out := make(map[string]lexer.Dialect, len(c.Dialects))
	for ext, name := range c.Dialects {
		if d, ok := lexer.ParseDialect(name); ok {
			out[strings.ToLower(ext)] = d
		}
	}
	return out
}

// ParseOptions converts the configuration to parser options
func (c *Config) ParseOptions() (shallow.Options, error) {
	opts := shallow.Options{
		Region: region.Options{
			PseudoKeywords: c.PseudoKeywords,
			AllBranches:    c.Preprocessor.FirstBranchOnly != nil && !*c.Preprocessor.FirstBranchOnly,
		},
		Dialects: c.dialectTable(),
		MaxBytes: c.Limits.MaxFileBytes,
		Grammar:  c.GrammarCheck,
	}
	if c.Limits.Timeout != "" {
		d, err := time.ParseDuration(c.Limits.Timeout)
		if err != nil {
			return opts, fmt.Errorf("limits.timeout: %w", err)
		}
		opts.Timeout = d
	}
	return opts, nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

func (c *Config) fileEntry(filePath string) (FileEntry, bool) {
	for _, entry := range c.Files {
		if entry.File == "" {
			continue
		}
		if matched, _ := filepath.Match(entry.File, filePath); matched {
			return entry, true
		}
		if matched, _ := filepath.Match(entry.File, filepath.Base(filePath)); matched {
			return entry, true
		}
	}
	return FileEntry{}, false
}

// IsThirdPartyFile checks if a file is marked third-party
func (c *Config) IsThirdPartyFile(filePath string) bool {
	entry, ok := c.fileEntry(filePath)
	return ok && entry.IsThirdParty
}

// ShouldIgnoreFile checks if a file should be skipped entirely
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Policy.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
