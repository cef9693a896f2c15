package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/retry"
	"gopkg.in/yaml.v3"
)

const defaultModel = "gemini-2.5-flash"

// Error reports a configuration problem found before any run starts.
type Error struct {
	Var string
	Msg string
}

func (e *Error) Error() string {
	if e == nil {
		return "configuration error"
	}
	if e.Var == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Var, e.Msg)
}

// Config is process-wide and read-only once Load returns.
type Config struct {
	APIKey         string
	ResearchModel  string
	SynthesisModel string
	BaseURL        string

	Port              string
	HeartbeatInterval time.Duration
	RateLimitRPS      float64

	// Batch defaults.
	Workers  int
	FailFast bool

	Pipeline pipeline.Options
}

// fileConfig is the optional YAML overlay named by PROFILER_CONFIG.
type fileConfig struct {
	Models struct {
		Research  string `yaml:"research"`
		Synthesis string `yaml:"synthesis"`
	} `yaml:"models"`
	RunTimeout        string  `yaml:"run_timeout"`
	ResearchMaxChars  int     `yaml:"research_max_chars"`
	RateLimitRPS      float64 `yaml:"rate_limit_rps"`
	HeartbeatInterval string  `yaml:"heartbeat_interval"`
	Retry             struct {
		Research  filePolicy `yaml:"research"`
		Synthesis filePolicy `yaml:"synthesis"`
	} `yaml:"retry"`
}

type filePolicy struct {
	Strategy    string `yaml:"strategy"`
	BaseDelay   string `yaml:"base_delay"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Default returns the built-in configuration without a credential.
func Default() Config {
	return Config{
		ResearchModel:     defaultModel,
		SynthesisModel:    defaultModel,
		Port:              "3000",
		HeartbeatInterval: 15 * time.Second,
		Workers:           4,
		Pipeline:          pipeline.DefaultOptions(),
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// PROFILER_CONFIG, then environment variables. A missing GEMINI_API_KEY is an
// *Error.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("PROFILER_CONFIG")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &Error{Var: "PROFILER_CONFIG", Msg: err.Error()}
		}
		if err := applyFile(&cfg, b); err != nil {
			return Config{}, &Error{Var: "PROFILER_CONFIG", Msg: err.Error()}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, &Error{Msg: err.Error()}
	}

	if cfg.APIKey == "" {
		return Config{}, &Error{Var: "GEMINI_API_KEY", Msg: "is required"}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Pipeline.ResearchRetry.Validate(); err != nil {
		return &Error{Var: "research retry", Msg: err.Error()}
	}
	if err := c.Pipeline.SynthesisRetry.Validate(); err != nil {
		return &Error{Var: "synthesis retry", Msg: err.Error()}
	}
	if c.Pipeline.RunTimeout <= 0 {
		return &Error{Var: "RUN_TIMEOUT", Msg: "must be > 0"}
	}
	if c.HeartbeatInterval <= 0 {
		return &Error{Var: "HEARTBEAT_INTERVAL", Msg: "must be > 0"}
	}
	if c.ResearchModel == "" || c.SynthesisModel == "" {
		return &Error{Var: "GEMINI_MODEL", Msg: "research and synthesis models are required"}
	}
	return nil
}

func applyFile(cfg *Config, b []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if fc.Models.Research != "" {
		cfg.ResearchModel = fc.Models.Research
	}
	if fc.Models.Synthesis != "" {
		cfg.SynthesisModel = fc.Models.Synthesis
	}
	if fc.RunTimeout != "" {
		d, err := time.ParseDuration(fc.RunTimeout)
		if err != nil {
			return fmt.Errorf("run_timeout: %w", err)
		}
		cfg.Pipeline.RunTimeout = d
	}
	if fc.HeartbeatInterval != "" {
		d, err := time.ParseDuration(fc.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if fc.ResearchMaxChars > 0 {
		cfg.Pipeline.ResearchMaxChars = fc.ResearchMaxChars
	}
	if fc.RateLimitRPS > 0 {
		cfg.RateLimitRPS = fc.RateLimitRPS
	}
	if err := fc.Retry.Research.apply(&cfg.Pipeline.ResearchRetry); err != nil {
		return fmt.Errorf("retry.research: %w", err)
	}
	if err := fc.Retry.Synthesis.apply(&cfg.Pipeline.SynthesisRetry); err != nil {
		return fmt.Errorf("retry.synthesis: %w", err)
	}
	return nil
}

func (fp filePolicy) apply(p *retry.Policy) error {
	if fp.Strategy != "" {
		s, err := retry.ParseStrategy(fp.Strategy)
		if err != nil {
			return err
		}
		p.Strategy = s
	}
	if fp.BaseDelay != "" {
		d, err := time.ParseDuration(fp.BaseDelay)
		if err != nil {
			return fmt.Errorf("base_delay: %w", err)
		}
		p.BaseDelay = d
	}
	if fp.MaxAttempts > 0 {
		p.MaxAttempts = fp.MaxAttempts
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	cfg.APIKey = envString("GEMINI_API_KEY", cfg.APIKey)
	model := envString("GEMINI_MODEL", "")
	if model != "" {
		cfg.ResearchModel = model
		cfg.SynthesisModel = model
	}
	cfg.ResearchModel = envString("GEMINI_RESEARCH_MODEL", cfg.ResearchModel)
	cfg.SynthesisModel = envString("GEMINI_SYNTHESIS_MODEL", cfg.SynthesisModel)
	cfg.BaseURL = envString("GEMINI_BASE_URL", cfg.BaseURL)
	cfg.Port = envString("PORT", cfg.Port)

	if cfg.Pipeline.RunTimeout, err = envDuration("RUN_TIMEOUT", cfg.Pipeline.RunTimeout); err != nil {
		return err
	}
	if cfg.Pipeline.ResearchMaxChars, err = envInt("RESEARCH_MAX_CHARS", cfg.Pipeline.ResearchMaxChars); err != nil {
		return err
	}
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return err
	}
	if cfg.HeartbeatInterval, err = envDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval); err != nil {
		return err
	}
	if cfg.Workers, err = envInt("WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.FailFast, err = envBool("FAIL_FAST", cfg.FailFast); err != nil {
		return err
	}
	if err := envPolicy("RESEARCH_RETRY", &cfg.Pipeline.ResearchRetry); err != nil {
		return err
	}
	return envPolicy("SYNTHESIS_RETRY", &cfg.Pipeline.SynthesisRetry)
}

func envPolicy(prefix string, p *retry.Policy) error {
	if v := envString(prefix+"_STRATEGY", ""); v != "" {
		s, err := retry.ParseStrategy(v)
		if err != nil {
			return fmt.Errorf("invalid %s_STRATEGY: %w", prefix, err)
		}
		p.Strategy = s
	}
	d, err := envDuration(prefix+"_BASE_DELAY", p.BaseDelay)
	if err != nil {
		return err
	}
	p.BaseDelay = d
	n, err := envInt(prefix+"_MAX_ATTEMPTS", p.MaxAttempts)
	if err != nil {
		return err
	}
	p.MaxAttempts = n
	return nil
}
