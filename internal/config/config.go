package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mavleo96/tx-spam/internal/models"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a tx spam scenario run.
type Config struct {
	Scenario  string               `yaml:"scenario"`
	Inventory []models.ClientEntry `yaml:"inventory"`
	Impls     []string             `yaml:"impls"`
	Lifecycle LifecycleConfig      `yaml:"lifecycle"`
	DBDir     string               `yaml:"db_dir"`
	Params    ScenarioParams       `yaml:"params"`
}

// LifecycleConfig selects how client processes are started and stopped.
type LifecycleConfig struct {
	Kind         string `yaml:"kind"` // "command" or "none"
	StartCommand string `yaml:"start_command"`
	StopCommand  string `yaml:"stop_command"`
}

// ScenarioParams are the tunables of the scenario.
type ScenarioParams struct {
	MinConsensusRatio        float64  `yaml:"min_consensus_ratio"`
	MinedBlocksTarget        int64    `yaml:"mined_blocks_target"`
	TxsPerClient             int      `yaml:"txs_per_client"`
	MaxTimeToReachConsensus  Duration `yaml:"max_time_to_reach_consensus"`
	StopClientsAtScenarioEnd bool     `yaml:"stop_clients_at_scenario_end"`
	Value                    int64    `yaml:"value"`
	RPCPort                  int      `yaml:"rpc_port"`
	BlockTime                Duration `yaml:"blocktime"`
	PoolTimeout              Duration `yaml:"pool_timeout"`
	TxInterval               Duration `yaml:"tx_interval"`
	BaseOffset               Duration `yaml:"base_offset"`
	PollInterval             Duration `yaml:"poll_interval"`
}

// Default returns the configuration the scenario runs with when nothing is overridden.
func Default() *Config {
	return &Config{
		Scenario: "tx_spam",
		Impls:    []string{"go"},
		Lifecycle: LifecycleConfig{
			Kind: "none",
		},
		DBDir: "./data",
		Params: ScenarioParams{
			MinConsensusRatio:        0.90,
			MinedBlocksTarget:        5,
			TxsPerClient:             12,
			MaxTimeToReachConsensus:  Duration(30 * time.Second),
			StopClientsAtScenarioEnd: true,
			Value:                    100,
			RPCPort:                  8545,
			BlockTime:                Duration(12 * time.Second),
			PoolTimeout:              Duration(300 * time.Second),
			TxInterval:               Duration(time.Second),
			BaseOffset:               Duration(30 * time.Second),
			PollInterval:             Duration(2 * time.Second),
		},
	}
}

// ParseConfig reads the config file at cfgPath on top of the defaults.
// A .env file in the working directory is loaded first and TXSPAM_*
// variables take precedence over the file.
func ParseConfig(cfgPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("[Config] Could not load .env: %v", err)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return &Config{}, err
	}
	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return &Config{}, fmt.Errorf("failed to parse %s: %w", cfgPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return &Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return &Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for values the scenario cannot run with.
func (c *Config) Validate() error {
	if len(c.Inventory) < 2 {
		return fmt.Errorf("inventory needs at least 2 clients, got %d", len(c.Inventory))
	}
	seen := make(map[string]bool)
	for _, entry := range c.Inventory {
		if entry.ID == "" || entry.Host == "" {
			return fmt.Errorf("inventory entry %+v is missing id or host", entry)
		}
		if seen[entry.ID] {
			return fmt.Errorf("duplicate client id %s in inventory", entry.ID)
		}
		seen[entry.ID] = true
	}

	p := c.Params
	if p.TxsPerClient < 1 {
		return fmt.Errorf("txs_per_client must be at least 1, got %d", p.TxsPerClient)
	}
	if p.MinConsensusRatio <= 0 || p.MinConsensusRatio > 1 {
		return fmt.Errorf("min_consensus_ratio must be in (0, 1], got %v", p.MinConsensusRatio)
	}
	if p.Value <= 0 {
		return fmt.Errorf("value must be positive, got %d", p.Value)
	}
	if p.RPCPort <= 0 || p.RPCPort > 65535 {
		return fmt.Errorf("invalid rpc_port %d", p.RPCPort)
	}
	switch c.Lifecycle.Kind {
	case "none":
	case "command":
		if c.Lifecycle.StartCommand == "" || c.Lifecycle.StopCommand == "" {
			return errors.New("command lifecycle needs start_command and stop_command")
		}
	default:
		return fmt.Errorf("unknown lifecycle kind %q", c.Lifecycle.Kind)
	}
	return nil
}

// GetInventory builds the client inventory from the config.
func (c *Config) GetInventory() (*models.Inventory, error) {
	return models.NewInventory(c.Inventory, c.Params.RPCPort)
}
