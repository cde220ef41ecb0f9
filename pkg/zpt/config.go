package zpt

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/metal"
)

// Config contains all configuration options for the ZPT engine
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `yaml:"log_level"`
	// CacheMaxSize is the maximum number of prepared documents to cache. 0 disables caching.
	CacheMaxSize int `yaml:"cache_max_size"`
	// CacheTTL is the time-to-live for cached documents. 0 means no expiration.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// MaxMacroDepth bounds macro extension chains and nested macro usage.
	MaxMacroDepth int `yaml:"max_macro_depth"`
	// StrictMode makes unresolvable paths an error instead of nothing.
	StrictMode bool `yaml:"strict_mode"`
	// DocumentType is "html" or "xml". Empty means guess from the file name.
	DocumentType string `yaml:"document_type"`
	// OmitXMLDeclaration drops the <?xml ...?> declaration from XML output.
	OmitXMLDeclaration bool `yaml:"omit_xml_declaration"`
	// KeywordOptions are exposed to templates as the "options" builtin.
	KeywordOptions map[string]any `yaml:"keyword_options"`
	// Watch invalidates cached documents when their files change.
	Watch bool `yaml:"watch"`
	// BulkWorkers is the number of documents rendered concurrently by a bulk render.
	BulkWorkers int `yaml:"bulk_workers"`
	// SourceAnnotation adds comments naming the source of the root element,
	// spliced macros, macro definitions and slots to the output.
	SourceAnnotation bool `yaml:"source_annotation"`
}

var (
	globalConfig      = ConfigFromEnvironment()
	globalConfigMutex sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		CacheMaxSize:   100,
		CacheTTL:       0,
		MaxMacroDepth:  metal.DefaultMaxDepth,
		StrictMode:     false,
		KeywordOptions: map[string]any{},
		BulkWorkers:    runtime.NumCPU(),
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	config.ApplyEnvironment()
	return config
}

// LoadConfigFile reads a YAML configuration file over the defaults.
// Keys missing from the file keep their default values.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if config.KeywordOptions == nil {
		config.KeywordOptions = map[string]any{}
	}
	return config, nil
}

// ApplyEnvironment overrides fields from ZPT_* environment variables.
// Values that fail to parse are ignored.
func (c *Config) ApplyEnvironment() {
	// ZPT_LOG_LEVEL
	if val := os.Getenv("ZPT_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}

	// ZPT_CACHE_MAX_SIZE
	if val := os.Getenv("ZPT_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.CacheMaxSize = size
		}
	}

	// ZPT_CACHE_TTL
	if val := os.Getenv("ZPT_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.CacheTTL = duration
		}
	}

	// ZPT_MAX_MACRO_DEPTH
	if val := os.Getenv("ZPT_MAX_MACRO_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			c.MaxMacroDepth = depth
		}
	}

	// ZPT_STRICT_MODE
	if val := os.Getenv("ZPT_STRICT_MODE"); val != "" {
		c.StrictMode = parseBool(val)
	}

	// ZPT_DOCUMENT_TYPE
	if val := os.Getenv("ZPT_DOCUMENT_TYPE"); val != "" {
		c.DocumentType = val
	}

	// ZPT_OMIT_XML_DECLARATION
	if val := os.Getenv("ZPT_OMIT_XML_DECLARATION"); val != "" {
		c.OmitXMLDeclaration = parseBool(val)
	}

	// ZPT_WATCH
	if val := os.Getenv("ZPT_WATCH"); val != "" {
		c.Watch = parseBool(val)
	}

	// ZPT_SOURCE_ANNOTATION
	if val := os.Getenv("ZPT_SOURCE_ANNOTATION"); val != "" {
		c.SourceAnnotation = parseBool(val)
	}

	// ZPT_BULK_WORKERS
	if val := os.Getenv("ZPT_BULK_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.BulkWorkers = n
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.MaxMacroDepth <= 0 {
		return errors.New("max macro depth must be positive")
	}

	if c.DocumentType != "" {
		if _, err := dom.ParseDocumentType(c.DocumentType); err != nil {
			return err
		}
	}

	if c.BulkWorkers <= 0 {
		return errors.New("bulk workers must be positive")
	}

	return nil
}

// Clone returns a copy of the configuration that shares nothing with c.
func (c *Config) Clone() *Config {
	out := *c
	out.KeywordOptions = make(map[string]any, len(c.KeywordOptions))
	for k, v := range c.KeywordOptions {
		out.KeywordOptions[k] = v
	}
	return &out
}

// documentTypeFor picks the backend for a file: the configured type, or a
// guess from the file name.
func (c *Config) documentTypeFor(name string) dom.DocumentType {
	if c.DocumentType != "" {
		if t, err := dom.ParseDocumentType(c.DocumentType); err == nil {
			return t
		}
	}
	return dom.DocumentTypeForFile(name)
}

// GetGlobalConfig returns a copy of the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}
	return globalConfig.Clone()
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config.Clone()
	globalConfigMutex.Unlock()

	// outside the lock: the logger reads the config back
	UpdateLoggerFromConfig()
}

// ParseKeywordOption splits a "key=value" pair as given on the command line.
func ParseKeywordOption(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid keyword option %q, want key=value", s)
	}
	return key, value, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
