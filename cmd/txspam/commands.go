package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/mavleo96/tx-spam/internal/database"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/mavleo96/tx-spam/internal/propagation"
	"github.com/mavleo96/tx-spam/internal/scenario"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type openFunc func() (*scenario.Env, error)

// addRunCmd runs the scenario and then asserts propagation.
func addRunCmd(command *cobra.Command, open openFunc) {
	var norun, keepClients, skipCheck bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tx spam scenario",
		Long:  "Start the clients, let them mine, spam them with transfers, wait for consensus and check propagation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open()
			if err != nil {
				return err
			}
			defer env.Close()

			if keepClients {
				env.Config.Params.StopClientsAtScenarioEnd = false
			}
			result, err := env.Driver.Run(cmd.Context(), !norun)
			if err != nil {
				return err
			}
			fmt.Printf("Total offset: %s\n", result.Offset)
			if skipCheck {
				return nil
			}

			agreeing := result.Agreeing
			if norun {
				// No agreement was recorded, ask the running clients.
				agreeing, err = env.Checker.TxPropagation(cmd.Context(), env.Inventory.Clients(), result.Offset)
				if err != nil {
					return err
				}
			}
			return reportPropagation(agreeing, env.Inventory.Len(), env.Config.Params.MinConsensusRatio)
		},
	}
	runCmd.Flags().BoolVar(&norun, "norun", false, "Do not start clients or send transactions")
	runCmd.Flags().BoolVar(&keepClients, "keep-clients", false, "Leave clients running at scenario end")
	runCmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Do not check propagation after the run")

	command.AddCommand(runCmd)
}

// addCheckCmd checks propagation for a stored run, the latest by default.
func addCheckCmd(command *cobra.Command, open openFunc) {
	var live bool

	checkCmd := &cobra.Command{
		Use:   "check [run-id]",
		Short: "Check transaction propagation of a stored run",
		Long:  "Assert the agreement recorded when the run's consensus window closed, or with --live ask the clients again for the run's transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open()
			if err != nil {
				return err
			}
			defer env.Close()

			record, err := lookupRun(env.DB, args)
			if err != nil {
				return err
			}
			clientCount := len(record.Clients)
			if !live {
				log.Infof("Checking run %s, %d (of %d) clients agreed", record.RunID, record.Agreeing, clientCount)
				return reportPropagation(record.Agreeing, clientCount, env.Config.Params.MinConsensusRatio)
			}

			clients := make([]*models.Client, 0, clientCount)
			for _, id := range record.Clients {
				client, ok := env.Inventory.Client(id)
				if !ok {
					log.Warnf("Client %s of run %s is no longer in the inventory", id, record.RunID)
					continue
				}
				clients = append(clients, client)
			}
			log.Infof("Asking %d clients for the %d transactions of run %s", len(clients), len(record.TxHashes), record.RunID)
			agreeing := propagation.RunPropagation(cmd.Context(), clients, record)
			return reportPropagation(agreeing, clientCount, env.Config.Params.MinConsensusRatio)
		},
	}
	checkCmd.Flags().BoolVar(&live, "live", false, "Query the running clients instead of the recorded agreement")

	command.AddCommand(checkCmd)
}

// addHistoryCmd lists stored runs.
func addHistoryCmd(command *cobra.Command, open openFunc) {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored scenario runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open()
			if err != nil {
				return err
			}
			defer env.Close()

			runs, err := env.DB.ListRuns()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTART\tCLIENTS\tSUCCESSFUL\tTRIED\tMAX\tOFFSET")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					run.RunID, run.Start.Format("2006-01-02 15:04:05"), len(run.Clients),
					run.Successful, run.TotalTxsTried, run.MaxTotalTxs, run.Offset)
			}
			return w.Flush()
		},
	}
	command.AddCommand(historyCmd)
}

// addShowCmd dumps a stored run.
func addShowCmd(command *cobra.Command, open openFunc) {
	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a stored scenario run, the latest by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open()
			if err != nil {
				return err
			}
			defer env.Close()

			record, err := lookupRun(env.DB, args)
			if err != nil {
				return err
			}
			spew.Dump(record)
			return nil
		},
	}
	command.AddCommand(showCmd)
}

func lookupRun(db *database.Database, args []string) (*database.RunRecord, error) {
	var record *database.RunRecord
	var err error
	if len(args) == 1 {
		record, err = db.GetRun(args[0])
	} else {
		record, err = db.LatestRun()
	}
	if errors.Is(err, database.ErrRunNotFound) {
		return nil, fmt.Errorf("no stored run found, run the scenario first: %w", err)
	}
	return record, err
}

// reportPropagation asserts that enough clients observed the transactions.
func reportPropagation(agreeing, clientCount int, ratio float64) error {
	if err := propagation.Assert(agreeing, clientCount, ratio); err != nil {
		return err
	}
	fmt.Printf("PASS: %d (of %d) clients received a transaction\n", agreeing, clientCount)
	return nil
}
