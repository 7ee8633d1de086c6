package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Field types understood by the extractor and the record schema.
const (
	FieldTypeString = "string"
	FieldTypeNumber = "number"
	FieldTypeList   = "list"
	FieldTypeDates  = "dates"
)

// Config holds all application configuration
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadMB     int           `yaml:"max_upload_mb"`
}

// GRPCConfig holds the health-check listener; an empty address disables it.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // gemini | openai | ollama
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig holds the model-reply cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// ArchiveConfig holds the S3-compatible bucket used to keep uploaded PDFs.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// PipelineConfig holds chunking, concurrency and profile selection.
type PipelineConfig struct {
	Profile        string                   `yaml:"profile"`
	ChunkSize      int                      `yaml:"chunk_size"`
	ChunkOverlap   int                      `yaml:"chunk_overlap"`
	Parallelism    int                      `yaml:"parallelism"`
	ProcessTimeout time.Duration            `yaml:"process_timeout"`
	Async          bool                     `yaml:"async"`
	Workers        int                      `yaml:"workers"`
	QueueSize      int                      `yaml:"queue_size"`
	Profiles       map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is one extraction variant: field schema plus prompt templates.
type ProfileConfig struct {
	Description string      `yaml:"description"`
	CleanText   bool        `yaml:"clean_text"`
	SampleSize  int         `yaml:"sample_size"`
	Fields      []FieldSpec `yaml:"fields"`
	Prompts     PromptSet   `yaml:"prompts"`
}

// FieldSpec describes one field the model is asked to produce.
type FieldSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// PromptSet holds the text/template sources for each AI step.
type PromptSet struct {
	Clean   string `yaml:"clean"`
	Extract string `yaml:"extract"`
	Names   string `yaml:"names"`
	Value   string `yaml:"value"`
	Date    string `yaml:"date"`
}

// IngestConfig holds the drop-folder watcher. Files found there go through the async queue.
type IngestConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Dirs        []string      `yaml:"dirs"`
	Profile     string        `yaml:"profile"`
	InitialScan bool          `yaml:"initial_scan"`
	SkipHidden  bool          `yaml:"skip_hidden"`
	Debounce    time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads config/<env>.yaml, expands ${VAR:-default} references, merges the
// built-in profiles, applies env overrides and defaults, and validates.
func Load(env string) (*Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.mergeBuiltinProfiles(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	return getEnv("ENV", "local")
}

func (c *Config) mergeBuiltinProfiles() error {
	var builtin map[string]ProfileConfig
	if err := yaml.Unmarshal(builtinProfiles, &builtin); err != nil {
		return fmt.Errorf("parse built-in profiles: %w", err)
	}
	if c.Pipeline.Profiles == nil {
		c.Pipeline.Profiles = make(map[string]ProfileConfig, len(builtin))
	}
	for name, p := range builtin {
		if _, overridden := c.Pipeline.Profiles[name]; !overridden {
			c.Pipeline.Profiles[name] = p
		}
	}
	return nil
}

// applyEnvOverrides lets deployment secrets win over file values.
func (c *Config) applyEnvOverrides() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.HTTP.Port = getEnvAsInt("HTTP_PORT", c.HTTP.Port)
	c.Pipeline.ProcessTimeout = getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", c.Pipeline.ProcessTimeout)
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 30 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 10 * time.Minute
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 25
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 20
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 2
	}
	if c.Database.MaxConnLifetime <= 0 {
		c.Database.MaxConnLifetime = 30 * time.Minute
	}
	if c.Database.MaxConnIdleTime <= 0 {
		c.Database.MaxConnIdleTime = 5 * time.Minute
	}
	if c.Database.DialTimeout <= 0 {
		c.Database.DialTimeout = 3 * time.Second
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.Model = "gpt-4o-mini"
		case "ollama":
			c.LLM.Model = "llama3"
		default:
			c.LLM.Model = "gemini-1.5-flash"
		}
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 90 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 7 * 24 * time.Hour
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "deeds:llm:"
	}
	if c.Archive.Region == "" {
		c.Archive.Region = "auto"
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "uploads"
	}
	if c.Pipeline.Profile == "" {
		c.Pipeline.Profile = "registry"
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 8000
	}
	if c.Pipeline.ChunkOverlap < 0 {
		c.Pipeline.ChunkOverlap = 0
	}
	if c.Pipeline.Parallelism <= 0 {
		c.Pipeline.Parallelism = 1
	}
	if c.Pipeline.ProcessTimeout <= 0 {
		c.Pipeline.ProcessTimeout = 10 * time.Minute
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 2
	}
	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = 64
	}
	if c.Ingest.Debounce <= 0 {
		c.Ingest.Debounce = 2 * time.Second
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return configError(fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return configError(fmt.Sprintf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return configError("database.dsn (or DB_URL) is required")
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
		if c.LLM.APIKey == "" {
			return configError("llm.api_key (or LLM_API_KEY) is required for provider " + c.LLM.Provider)
		}
	case "ollama":
	default:
		return configError(fmt.Sprintf("llm.provider must be gemini, openai or ollama, got %q", c.LLM.Provider))
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return configError("cache.addrs is required when cache is enabled")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return configError("archive.bucket is required when archive is enabled")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return configError(fmt.Sprintf("pipeline.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize))
	}
	if _, ok := c.Pipeline.Profiles[c.Pipeline.Profile]; !ok {
		return configError(fmt.Sprintf("pipeline.profile %q is not defined", c.Pipeline.Profile))
	}
	if c.Ingest.Enabled {
		if len(c.Ingest.Dirs) == 0 {
			return configError("ingest.dirs is required when ingest is enabled")
		}
		if _, ok := c.Profile(c.Ingest.Profile); !ok {
			return configError(fmt.Sprintf("ingest.profile %q is not defined", c.Ingest.Profile))
		}
	}
	for name, p := range c.Pipeline.Profiles {
		if err := p.validate(); err != nil {
			return configError(fmt.Sprintf("pipeline.profiles.%s: %v", name, err))
		}
	}
	return nil
}

// Profile returns the named profile, falling back to the configured default for "".
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	if strings.TrimSpace(name) == "" {
		name = c.Pipeline.Profile
	}
	p, ok := c.Pipeline.Profiles[name]
	return p, ok
}

func (p ProfileConfig) validate() error {
	if len(p.Fields) == 0 {
		return fmt.Errorf("fields must not be empty")
	}
	for _, f := range p.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name must not be empty")
		}
		switch f.Type {
		case FieldTypeString, FieldTypeNumber, FieldTypeList, FieldTypeDates:
		default:
			return fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
		}
	}
	if strings.TrimSpace(p.Prompts.Extract) == "" {
		return fmt.Errorf("prompts.extract is required")
	}
	if p.CleanText && strings.TrimSpace(p.Prompts.Clean) == "" {
		return fmt.Errorf("prompts.clean is required when clean_text is set")
	}
	return nil
}

func configError(msg string) error {
	return NewAppError("CONFIG_ERROR", msg, ErrInvalidInput)
}

// findConfigPath locates config/<env>.yaml relative to the working dir or the module root.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/common -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
