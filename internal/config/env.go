package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "TXSPAM"

// envOverrides lists the settings that TXSPAM_* variables may override.
// Nil fields were not set in the environment.
type envOverrides struct {
	TxsPerClient      *int     `envconfig:"TXS_PER_CLIENT"`
	MinConsensusRatio *float64 `envconfig:"MIN_CONSENSUS_RATIO"`
	StopClients       *bool    `envconfig:"STOP_CLIENTS"`
	RPCPort           *int     `envconfig:"RPC_PORT"`
	DBDir             *string  `envconfig:"DB_DIR"`
}

// applyEnv overrides scalar settings from TXSPAM_* environment variables.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}

	if env.TxsPerClient != nil {
		c.Params.TxsPerClient = *env.TxsPerClient
	}
	if env.MinConsensusRatio != nil {
		c.Params.MinConsensusRatio = *env.MinConsensusRatio
	}
	if env.StopClients != nil {
		c.Params.StopClientsAtScenarioEnd = *env.StopClients
	}
	if env.RPCPort != nil {
		c.Params.RPCPort = *env.RPCPort
	}
	if env.DBDir != nil && *env.DBDir != "" {
		c.DBDir = *env.DBDir
	}
	return nil
}
