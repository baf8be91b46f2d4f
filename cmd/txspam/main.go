package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mavleo96/tx-spam/internal/config"
	"github.com/mavleo96/tx-spam/internal/scenario"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	var configPath, logLevel string
	command := &cobra.Command{
		Use:   "txspam",
		Short: "Spam blockchain clients with transactions and check propagation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		SilenceUsage: true,
	}
	command.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	command.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	open := func() (*scenario.Env, error) {
		cfg, err := config.ParseConfig(configPath)
		if err != nil {
			return nil, err
		}
		return scenario.Open(cfg)
	}
	addRunCmd(command, open)
	addCheckCmd(command, open)
	addHistoryCmd(command, open)
	addShowCmd(command, open)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := command.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
