package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/termbridge/ai"
	"github.com/poiesic/termbridge/feed"
	"github.com/poiesic/termbridge/mapping"
	"github.com/poiesic/termbridge/similarity"
	"github.com/poiesic/termbridge/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TERMBRIDGE"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// MappingConfig tunes the mapping service.
type MappingConfig struct {
	Workers           int `mapstructure:"workers"`
	FeedbackThreshold int `mapstructure:"feedback_threshold"`
}

// EmbeddingConfig tunes index builds.
type EmbeddingConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// SnowstormConfig configures the SNOMED CT feed.
type SnowstormConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Branch  string        `mapstructure:"branch"`
	Pacing  time.Duration `mapstructure:"pacing"`
	IDs     []string      `mapstructure:"ids"`
}

// FeedConfig selects the concept feeds used by refresh.
type FeedConfig struct {
	// Dir holds CodeSystem and records files.
	Dir string `mapstructure:"dir"`

	// Seed adds the built-in demonstration concepts.
	Seed bool `mapstructure:"seed"`

	Snowstorm SnowstormConfig `mapstructure:"snowstorm"`
}

// WatchConfig configures the feed directory watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config is the complete termbridge configuration.
type Config struct {
	DataDir    string            `mapstructure:"data_dir"`
	LogLevel   string            `mapstructure:"log_level"`
	AI         ai.Config         `mapstructure:"ai"`
	Similarity similarity.Config `mapstructure:"similarity"`
	Mapping    MappingConfig     `mapstructure:"mapping"`
	Embedding  EmbeddingConfig   `mapstructure:"embedding"`
	Feeds      FeedConfig        `mapstructure:"feeds"`
	Watch      WatchConfig       `mapstructure:"watch"`
}

// Default returns the built-in configuration. Dense embeddings default to
// the lexical backend so nothing outside the process is required.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	aiCfg.Backend = ai.BackendLexical
	return &Config{
		DataDir:    "./termbridge-data",
		LogLevel:   "info",
		AI:         *aiCfg,
		Similarity: similarity.DefaultConfig(),
		Mapping: MappingConfig{
			Workers:           runtime.NumCPU(),
			FeedbackThreshold: mapping.DefaultFeedbackThreshold,
		},
		Embedding: EmbeddingConfig{
			BatchSize:     storage.MaxBatchSize,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Feeds: FeedConfig{
			Seed: true,
			Snowstorm: SnowstormConfig{
				URL:    feed.DefaultSnowstormURL,
				Branch: feed.DefaultBranch,
				Pacing: feed.DefaultPacing,
				IDs:    append([]string(nil), feed.DefaultSnowstormIDs...),
			},
		},
		Watch: WatchConfig{Debounce: 2 * time.Second},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("ai.backend", d.AI.Backend)
	v.SetDefault("ai.embedding_host", d.AI.EmbeddingHost)
	v.SetDefault("ai.embedding_model", d.AI.EmbeddingModel)
	v.SetDefault("ai.model_path", d.AI.ModelPath)
	v.SetDefault("ai.tokenizer_path", d.AI.TokenizerPath)
	v.SetDefault("ai.ort_library", d.AI.OrtLibrary)
	v.SetDefault("ai.max_seq_len", d.AI.MaxSeqLen)

	s := d.Similarity
	v.SetDefault("similarity.semantic_weight", s.SemanticWeight)
	v.SetDefault("similarity.lexical_weight", s.LexicalWeight)
	v.SetDefault("similarity.structural_weight", s.StructuralWeight)
	v.SetDefault("similarity.exact_above", s.ExactAbove)
	v.SetDefault("similarity.equivalent_above", s.EquivalentAbove)
	v.SetDefault("similarity.related_above", s.RelatedAbove)
	v.SetDefault("similarity.narrower_above", s.NarrowerAbove)
	v.SetDefault("similarity.semantic_explain_above", s.SemanticExplainAbove)
	v.SetDefault("similarity.lexical_explain_above", s.LexicalExplainAbove)
	v.SetDefault("similarity.structural_explain_above", s.StructuralExplainAbove)
	v.SetDefault("similarity.min_confidence", s.MinConfidence)
	v.SetDefault("similarity.max_candidates", s.MaxCandidates)
	v.SetDefault("similarity.neutral_structural", s.NeutralStructural)
	v.SetDefault("similarity.semantic_model", s.SemanticModel)

	v.SetDefault("mapping.workers", d.Mapping.Workers)
	v.SetDefault("mapping.feedback_threshold", d.Mapping.FeedbackThreshold)

	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.retry_attempts", d.Embedding.RetryAttempts)
	v.SetDefault("embedding.retry_delay", d.Embedding.RetryDelay)

	v.SetDefault("feeds.dir", d.Feeds.Dir)
	v.SetDefault("feeds.seed", d.Feeds.Seed)
	v.SetDefault("feeds.snowstorm.enabled", d.Feeds.Snowstorm.Enabled)
	v.SetDefault("feeds.snowstorm.url", d.Feeds.Snowstorm.URL)
	v.SetDefault("feeds.snowstorm.branch", d.Feeds.Snowstorm.Branch)
	v.SetDefault("feeds.snowstorm.pacing", d.Feeds.Snowstorm.Pacing)
	v.SetDefault("feeds.snowstorm.ids", d.Feeds.Snowstorm.IDs)

	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Load reads path (YAML, or any format viper recognizes by extension) over
// the defaults, then applies TERMBRIDGE_* environment variables. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Similarity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Mapping.Workers < 1 {
		return fmt.Errorf("%w: mapping.workers must be positive", ErrInvalidConfig)
	}
	if c.Mapping.FeedbackThreshold < 1 {
		return fmt.Errorf("%w: mapping.feedback_threshold must be positive", ErrInvalidConfig)
	}
	if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > storage.MaxBatchSize {
		return fmt.Errorf("%w: embedding.batch_size must be between 1 and %d", ErrInvalidConfig, storage.MaxBatchSize)
	}
	if c.Embedding.RetryAttempts < 1 {
		return fmt.Errorf("%w: embedding.retry_attempts must be positive", ErrInvalidConfig)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalidConfig)
	}
	return nil
}
