package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mavleo96/tx-spam/internal/config"
	"github.com/mavleo96/tx-spam/internal/database"
	"github.com/mavleo96/tx-spam/internal/events"
	"github.com/mavleo96/tx-spam/internal/lifecycle"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/mavleo96/tx-spam/internal/propagation"
	log "github.com/sirupsen/logrus"
)

// Env holds everything a scenario run and its propagation check need.
// The run database and event journal live under the config's db_dir.
type Env struct {
	Config    *config.Config
	Inventory *models.Inventory
	Journal   *events.Journal
	DB        *database.Database
	Driver    *Driver
	Checker   *propagation.Checker
}

// Open creates the db directory and opens the run database and event journal.
func Open(cfg *config.Config) (*Env, error) {
	inventory, err := cfg.GetInventory()
	if err != nil {
		return nil, err
	}
	controller, err := lifecycle.New(cfg.Lifecycle)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DBDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.DBDir, err)
	}
	db := &database.Database{}
	dbPath := filepath.Join(cfg.DBDir, "runs.db")
	if err := db.InitDB(dbPath); err != nil {
		return nil, err
	}
	journal, err := events.OpenJournal(filepath.Join(cfg.DBDir, "events"))
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("Database initialized at %s", cfg.DBDir)

	logger := events.NewLogger(cfg.Scenario, journal)
	return &Env{
		Config:    cfg,
		Inventory: inventory,
		Journal:   journal,
		DB:        db,
		Driver:    NewDriver(cfg, inventory, controller, logger, db),
		Checker:   propagation.NewChecker(journal, cfg.Scenario),
	}, nil
}

// Close closes the journal and the run database.
func (e *Env) Close() error {
	jErr := e.Journal.Close()
	dbErr := e.DB.Close()
	if jErr != nil {
		return jErr
	}
	return dbErr
}
