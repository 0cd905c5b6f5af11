// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Correction CorrectionConfig `mapstructure:"correction" yaml:"correction"`
	Generator  GeneratorConfig  `mapstructure:"generator" yaml:"generator"`
	Selector   SelectorConfig   `mapstructure:"selector" yaml:"selector"`
	Pattern    PatternConfig    `mapstructure:"pattern" yaml:"pattern"`
	Matcher    MatcherConfig    `mapstructure:"matcher" yaml:"matcher"`
	LLM        LLMRouterConfig  `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
}

// CorrectionConfig bounds the orchestrator's fixed-point loop.
type CorrectionConfig struct {
	MaxIterations      int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	GenerationParallel int           `mapstructure:"generation_parallel" yaml:"generation_parallel"`
}

// GeneratorConfig tunes candidate generation.
type GeneratorConfig struct {
	MaxSolutionsPerError int           `mapstructure:"max_solutions_per_error" yaml:"max_solutions_per_error"`
	ConfidenceThreshold  float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	TimeoutPerSolution   time.Duration `mapstructure:"timeout_per_solution" yaml:"timeout_per_solution"`
	// ConfidenceTieBand is the width within which two confidences are
	// considered tied during ranking.
	ConfidenceTieBand float64 `mapstructure:"confidence_tie_band" yaml:"confidence_tie_band"`
	// KnownModules is the allowlist the contextual strategy consults before
	// proposing an import addition.
	KnownModules []string `mapstructure:"known_modules" yaml:"known_modules"`
	// UseLLM toggles the alternative-approach strategy; when false the
	// rule-based fallback table answers instead.
	UseLLM bool `mapstructure:"use_llm" yaml:"use_llm"`
}

// SelectionMode picks the selector's scoring algorithm.
type SelectionMode string

const (
	SelectWeighted SelectionMode = "weighted"
	SelectPattern  SelectionMode = "pattern"
	SelectHybrid   SelectionMode = "hybrid"
)

// SelectorConfig holds the multi-criteria weights for final selection.
type SelectorConfig struct {
	Mode             SelectionMode `mapstructure:"mode" yaml:"mode"`
	ConfidenceWeight float64       `mapstructure:"confidence_weight" yaml:"confidence_weight"`
	ImpactWeight     float64       `mapstructure:"impact_weight" yaml:"impact_weight"`
	ValidationWeight float64       `mapstructure:"validation_weight" yaml:"validation_weight"`
	ContextWeight    float64       `mapstructure:"context_weight" yaml:"context_weight"`
}

// PatternConfig tunes the learning store.
type PatternConfig struct {
	LearningRate               float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	DecayRate                  float64 `mapstructure:"decay_rate" yaml:"decay_rate"`
	MinimumOccurrences         int     `mapstructure:"minimum_occurrences" yaml:"minimum_occurrences"`
	MaxPatternsPerErrorType    int     `mapstructure:"max_patterns_per_error_type" yaml:"max_patterns_per_error_type"`
	PatternExtractionThreshold float64 `mapstructure:"pattern_extraction_threshold" yaml:"pattern_extraction_threshold"`
	// NoMatchDampening scales a candidate's confidence when no learned
	// pattern matches the defect at all.
	NoMatchDampening float64 `mapstructure:"no_match_dampening" yaml:"no_match_dampening"`
}

// MatcherConfig weights the four similarity dimensions. Weights must be
// non-negative; they need not sum to 1 because the combined score is clamped.
type MatcherConfig struct {
	SyntacticWeight  float64 `mapstructure:"syntactic_weight" yaml:"syntactic_weight"`
	SemanticWeight   float64 `mapstructure:"semantic_weight" yaml:"semantic_weight"`
	StructuralWeight float64 `mapstructure:"structural_weight" yaml:"structural_weight"`
	ContextualWeight float64 `mapstructure:"contextual_weight" yaml:"contextual_weight"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the model routing logic. APIKey is the shared
// default for models that do not set their own.
type LLMRouterConfig struct {
	APIKey               string                    `mapstructure:"api_key" yaml:"-"`
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults, but fail loudly if it ever does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "remend")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Correction loop --
	v.SetDefault("correction.max_iterations", 5)
	v.SetDefault("correction.timeout", "2m")
	v.SetDefault("correction.generation_parallel", 4)

	// -- Generator --
	v.SetDefault("generator.max_solutions_per_error", 5)
	v.SetDefault("generator.confidence_threshold", 0.3)
	v.SetDefault("generator.timeout_per_solution", "30s")
	v.SetDefault("generator.confidence_tie_band", 0.1)
	v.SetDefault("generator.known_modules", []string{
		"math", "os", "sys", "re", "json", "time", "random", "collections",
		"itertools", "functools", "typing", "pathlib", "datetime",
	})
	v.SetDefault("generator.use_llm", false)

	// -- Selector --
	v.SetDefault("selector.mode", string(SelectHybrid))
	v.SetDefault("selector.confidence_weight", 0.4)
	v.SetDefault("selector.impact_weight", 0.3)
	v.SetDefault("selector.validation_weight", 0.2)
	v.SetDefault("selector.context_weight", 0.1)

	// -- Pattern learning --
	v.SetDefault("pattern.learning_rate", 0.1)
	v.SetDefault("pattern.decay_rate", 0.95)
	v.SetDefault("pattern.minimum_occurrences", 2)
	v.SetDefault("pattern.max_patterns_per_error_type", 50)
	v.SetDefault("pattern.pattern_extraction_threshold", 0.7)
	v.SetDefault("pattern.no_match_dampening", 0.5)

	// -- Matcher --
	v.SetDefault("matcher.syntactic_weight", 0.3)
	v.SetDefault("matcher.semantic_weight", 0.3)
	v.SetDefault("matcher.structural_weight", 0.2)
	v.SetDefault("matcher.contextual_weight", 0.2)

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "REMEND_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Correction.MaxIterations <= 0 {
		return fmt.Errorf("correction.max_iterations must be a positive integer")
	}
	if c.Correction.GenerationParallel <= 0 {
		return fmt.Errorf("correction.generation_parallel must be a positive integer")
	}
	if c.Generator.MaxSolutionsPerError <= 0 {
		return fmt.Errorf("generator.max_solutions_per_error must be a positive integer")
	}
	if c.Generator.ConfidenceThreshold < 0.0 || c.Generator.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("generator.confidence_threshold must be between 0.0 and 1.0")
	}
	if err := c.Matcher.Validate(); err != nil {
		return fmt.Errorf("matcher configuration invalid: %w", err)
	}
	if err := c.Pattern.Validate(); err != nil {
		return fmt.Errorf("pattern configuration invalid: %w", err)
	}
	switch c.Selector.Mode {
	case SelectWeighted, SelectPattern, SelectHybrid:
	default:
		return fmt.Errorf("selector.mode must be one of weighted, pattern, hybrid")
	}
	return nil
}

// Validate checks the matcher weights.
func (m *MatcherConfig) Validate() error {
	if m.SyntacticWeight < 0 || m.SemanticWeight < 0 || m.StructuralWeight < 0 || m.ContextualWeight < 0 {
		return fmt.Errorf("similarity weights must be non-negative")
	}
	return nil
}

// Validate checks the pattern learning settings.
func (p *PatternConfig) Validate() error {
	if p.LearningRate <= 0.0 || p.LearningRate > 1.0 {
		return fmt.Errorf("learning_rate must be in (0.0, 1.0]")
	}
	if p.MaxPatternsPerErrorType <= 0 {
		return fmt.Errorf("max_patterns_per_error_type must be a positive integer")
	}
	if p.PatternExtractionThreshold < 0.0 || p.PatternExtractionThreshold > 1.0 {
		return fmt.Errorf("pattern_extraction_threshold must be between 0.0 and 1.0")
	}
	if p.NoMatchDampening < 0.0 || p.NoMatchDampening > 1.0 {
		return fmt.Errorf("no_match_dampening must be between 0.0 and 1.0")
	}
	return nil
}
