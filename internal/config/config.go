package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/poller"
	"github.com/caiga/companion/internal/tips"
)

// ErrInvalid marks a configuration that cannot start the service.
var ErrInvalid = errors.New("config: invalid")

// #region config

// Config is the full service configuration. Durations are whole seconds, as in the
// environment variables that override them.
type Config struct {
	PollIntervalSeconds   int     `yaml:"poll_interval_seconds"`
	PollBackoffBase       float64 `yaml:"poll_backoff_base"`
	ConfThreshold         float64 `yaml:"conf_threshold"`
	MaxSpoilerLevel       int     `yaml:"max_spoiler_level"`
	GlobalCooldownSeconds int     `yaml:"global_cooldown_seconds"`
	LabelCooldownSeconds  int     `yaml:"label_cooldown_seconds"`
	TipCooldownSeconds    int     `yaml:"tip_cooldown_seconds"`

	StateURL   string `yaml:"state_url"`
	PostTipURL string `yaml:"post_tip_url"`

	ModelAddr          string `yaml:"model_addr"`
	FeatureColumnsPath string `yaml:"feature_columns_path"`

	LogsDir string `yaml:"logs_dir"`
	DataDir string `yaml:"data_dir"`

	TipsDatasetURL     string `yaml:"tips_dataset_url"`
	TipsRefreshSeconds int    `yaml:"tips_refresh_seconds"`

	RAGEnabled    bool   `yaml:"rag_enabled"`
	KnowledgePath string `yaml:"knowledge_path"`

	LLMEnabled bool   `yaml:"llm_enabled"`
	LLMAPIKey  string `yaml:"llm_api_key"`
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMModel   string `yaml:"llm_model"`

	Port         int    `yaml:"port"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		PollIntervalSeconds:   15,
		PollBackoffBase:       1.5,
		ConfThreshold:         0.6,
		MaxSpoilerLevel:       1,
		GlobalCooldownSeconds: 15,
		LabelCooldownSeconds:  30,
		TipCooldownSeconds:    180,
		StateURL:              "http://localhost:8080/state",
		PostTipURL:            "http://localhost:8080/tip",
		FeatureColumnsPath:    "models/feature_columns.json",
		LogsDir:               "logs",
		DataDir:               "data",
		TipsRefreshSeconds:    3600,
		Port:                  5000,
	}
}

// #endregion config

// #region load

// Load applies defaults, then the optional YAML file at path, then environment overrides,
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"POLL_INTERVAL_SECONDS":   &c.PollIntervalSeconds,
		"MAX_SPOILER_LEVEL":       &c.MaxSpoilerLevel,
		"GLOBAL_COOLDOWN_SECONDS": &c.GlobalCooldownSeconds,
		"LABEL_COOLDOWN_SECONDS":  &c.LabelCooldownSeconds,
		"TIP_COOLDOWN_SECONDS":    &c.TipCooldownSeconds,
		"TIPS_REFRESH_SECONDS":    &c.TipsRefreshSeconds,
		"COMPANION_PORT":          &c.Port,
	}
	floats := map[string]*float64{
		"POLL_BACKOFF_BASE": &c.PollBackoffBase,
		"CONF_THRESHOLD":    &c.ConfThreshold,
	}
	bools := map[string]*bool{
		"RAG_ENABLED": &c.RAGEnabled,
		"LLM_ENABLED": &c.LLMEnabled,
	}
	strs := map[string]*string{
		"STATE_URL":                   &c.StateURL,
		"POST_TIP_URL":                &c.PostTipURL,
		"MODEL_ADDR":                  &c.ModelAddr,
		"FEATURE_COLUMNS_PATH":        &c.FeatureColumnsPath,
		"LOGS_DIR":                    &c.LogsDir,
		"DATA_DIR":                    &c.DataDir,
		"TIPS_DATASET_URL":            &c.TipsDatasetURL,
		"KNOWLEDGE_PATH":              &c.KnowledgePath,
		"LLM_API_KEY":                 &c.LLMAPIKey,
		"LLM_BASE_URL":                &c.LLMBaseURL,
		"LLM_MODEL":                   &c.LLMModel,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &c.OTLPEndpoint,
	}

	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
			}
			*dst = n
		}
	}
	for key, dst := range floats {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v)
			}
			*dst = f
		}
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	return nil
}

// #endregion load

// #region validate

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var problems []string
	if c.PollIntervalSeconds <= 0 {
		problems = append(problems, "poll interval must be positive")
	}
	if c.PollBackoffBase <= 1 {
		problems = append(problems, "poll backoff base must be > 1")
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		problems = append(problems, "confidence threshold must be in [0,1]")
	}
	if c.MaxSpoilerLevel < 0 {
		problems = append(problems, "max spoiler level must be >= 0")
	}
	if c.GlobalCooldownSeconds < 0 || c.LabelCooldownSeconds < 0 || c.TipCooldownSeconds < 0 {
		problems = append(problems, "cooldowns must be >= 0")
	}
	if c.TipsRefreshSeconds <= 0 {
		problems = append(problems, "tips refresh interval must be positive")
	}
	if c.StateURL == "" || c.PostTipURL == "" {
		problems = append(problems, "state and post-tip URLs are required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.LLMEnabled && c.LLMAPIKey == "" {
		problems = append(problems, "LLM_ENABLED requires LLM_API_KEY")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// #endregion validate

// #region derived

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Engine returns the decision engine thresholds.
func (c Config) Engine() engine.Config {
	return engine.Config{
		ConfThreshold:    c.ConfThreshold,
		MaxSpoilerLevel:  c.MaxSpoilerLevel,
		GlobalCooldown:   seconds(c.GlobalCooldownSeconds),
		LabelCooldown:    seconds(c.LabelCooldownSeconds),
		TipCooldown:      seconds(c.TipCooldownSeconds),
		DispatchTimeout:  5 * time.Second,
		PollInterval:     seconds(c.PollIntervalSeconds),
		RetrievalEnabled: c.RAGEnabled,
	}
}

// Poller returns the poll cadence.
func (c Config) Poller() poller.Config {
	p := poller.DefaultConfig()
	p.Interval = seconds(c.PollIntervalSeconds)
	p.BackoffBase = c.PollBackoffBase
	return p
}

// Tips returns the tip bank provider settings.
func (c Config) Tips() tips.ProviderConfig {
	p := tips.DefaultProviderConfig()
	p.URL = c.TipsDatasetURL
	p.CachePath = filepath.Join(c.DataDir, "tips_cache.json")
	p.RefreshInterval = seconds(c.TipsRefreshSeconds)
	return p
}

// DBPath is the SQLite file holding engine state and journals.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "companion.db") }

// LogPath is the file log written alongside stderr.
func (c Config) LogPath() string { return filepath.Join(c.LogsDir, "companion.log") }

// Addr is the HTTP listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// #endregion derived
