// Package config loads foreman configuration from YAML with defaults merged
// in for anything the file leaves out.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/foreman/internal/models"
)

// AgentConfig declares one worker agent registered at startup.
type AgentConfig struct {
	// ID is the unique agent identifier
	ID string `yaml:"id"`

	// Name is the human-readable agent name
	Name string `yaml:"name"`

	// Capabilities lists the task types this agent can execute
	Capabilities []string `yaml:"capabilities"`

	// PerformanceScore weights agent selection; higher wins (default 1.0)
	PerformanceScore float64 `yaml:"performance_score"`
}

// Config represents foreman configuration options
type Config struct {
	// ListenAddr is the HTTP API listen address
	ListenAddr string `yaml:"listen_addr"`

	// BridgeURL is the base URL of the tool bridge
	BridgeURL string `yaml:"bridge_url"`

	// BridgeTimeout bounds a single bridge call
	BridgeTimeout time.Duration `yaml:"bridge_timeout"`

	// TickInterval is the scheduler dispatch interval
	TickInterval time.Duration `yaml:"tick_interval"`

	// HeartbeatInterval is the agent heartbeat refresh interval
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// DataDir holds the audit database and the process lock
	DataDir string `yaml:"data_dir"`

	// Agents is the worker fleet registered at startup
	Agents []AgentConfig `yaml:"agents"`
}

// DefaultConfig returns a Config with sensible default values, including the
// stock three-agent fleet.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        "127.0.0.1:8080",
		BridgeURL:         "http://localhost:9000",
		BridgeTimeout:     60 * time.Second,
		TickInterval:      time.Second,
		HeartbeatInterval: 30 * time.Second,
		LogLevel:          "info",
		DataDir:           ".foreman",
		Agents: []AgentConfig{
			{
				ID:   "pr_agent",
				Name: "PR Agent",
				Capabilities: []string{
					string(models.TaskCreatePR),
					string(models.TaskMergePR),
					string(models.TaskListPRs),
				},
				PerformanceScore: 1.0,
			},
			{
				ID:               "report_agent",
				Name:             "Report Agent",
				Capabilities:     []string{string(models.TaskGenerateReport)},
				PerformanceScore: 1.0,
			},
			{
				ID:   "branch_agent",
				Name: "Branch Agent",
				Capabilities: []string{
					string(models.TaskCreateBranch),
					string(models.TaskPushBranch),
				},
				PerformanceScore: 1.0,
			},
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// A missing file returns defaults without error; a malformed file is an
// error. Values present in the file override defaults field by field.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are written as strings ("60s", "1m") so parse through a
	// shadow struct.
	type yamlConfig struct {
		ListenAddr        string        `yaml:"listen_addr"`
		BridgeURL         string        `yaml:"bridge_url"`
		BridgeTimeout     string        `yaml:"bridge_timeout"`
		TickInterval      string        `yaml:"tick_interval"`
		HeartbeatInterval string        `yaml:"heartbeat_interval"`
		LogLevel          string        `yaml:"log_level"`
		DataDir           string        `yaml:"data_dir"`
		Agents            []AgentConfig `yaml:"agents"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.ListenAddr != "" {
		cfg.ListenAddr = yamlCfg.ListenAddr
	}
	if yamlCfg.BridgeURL != "" {
		cfg.BridgeURL = yamlCfg.BridgeURL
	}
	if yamlCfg.BridgeTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.BridgeTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid bridge_timeout %q: %w", yamlCfg.BridgeTimeout, err)
		}
		cfg.BridgeTimeout = d
	}
	if yamlCfg.TickInterval != "" {
		d, err := time.ParseDuration(yamlCfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid tick_interval %q: %w", yamlCfg.TickInterval, err)
		}
		cfg.TickInterval = d
	}
	if yamlCfg.HeartbeatInterval != "" {
		d, err := time.ParseDuration(yamlCfg.HeartbeatInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid heartbeat_interval %q: %w", yamlCfg.HeartbeatInterval, err)
		}
		cfg.HeartbeatInterval = d
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.DataDir != "" {
		cfg.DataDir = yamlCfg.DataDir
	}
	if len(yamlCfg.Agents) > 0 {
		cfg.Agents = yamlCfg.Agents
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks agent declarations against the known task types.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if len(a.Capabilities) == 0 {
			return fmt.Errorf("agent %s: no capabilities", a.ID)
		}
		for _, capability := range a.Capabilities {
			if !models.TaskType(capability).Valid() {
				return fmt.Errorf("agent %s: unknown capability %q", a.ID, capability)
			}
		}
	}
	return nil
}

// Agent converts an AgentConfig into its registry model.
func (a AgentConfig) Agent() models.Agent {
	caps := make([]models.TaskType, len(a.Capabilities))
	for i, c := range a.Capabilities {
		caps[i] = models.TaskType(c)
	}
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return models.Agent{
		ID:               a.ID,
		Name:             name,
		Capabilities:     caps,
		PerformanceScore: a.PerformanceScore,
	}
}

// HistoryPath returns the location of the audit database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// LockPath returns the location of the data-dir lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "foreman.lock")
}
