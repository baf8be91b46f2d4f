package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"text/template"

	"github.com/mavleo96/tx-spam/internal/config"
	"github.com/mavleo96/tx-spam/internal/crypto"
	"github.com/mavleo96/tx-spam/internal/models"
	log "github.com/sirupsen/logrus"
)

// Controller starts and stops client processes for a set of implementations.
type Controller interface {
	Start(ctx context.Context, clients []*models.Client, impls []string) error
	Stop(ctx context.Context, clients []*models.Client, impls []string) error
}

// New returns the controller selected by the lifecycle config.
func New(cfg config.LifecycleConfig) (Controller, error) {
	switch cfg.Kind {
	case "", "none":
		return NoopController{}, nil
	case "command":
		return NewCommandController(cfg.StartCommand, cfg.StopCommand)
	default:
		return nil, fmt.Errorf("unknown lifecycle kind %q", cfg.Kind)
	}
}

// NoopController is used when clients are managed outside the scenario.
type NoopController struct{}

func (NoopController) Start(ctx context.Context, clients []*models.Client, impls []string) error {
	log.Infof("[Lifecycle] Clients are managed externally, not starting %d clients", len(clients))
	return nil
}

func (NoopController) Stop(ctx context.Context, clients []*models.Client, impls []string) error {
	log.Infof("[Lifecycle] Clients are managed externally, not stopping %d clients", len(clients))
	return nil
}

// commandData is what start and stop command templates are rendered with.
// NodeID and Coinbase are derived from the client id the same way the workers
// derive recipients.
type commandData struct {
	ID       string
	Host     string
	Impl     string
	NodeID   string
	Coinbase string
}

func newCommandData(client *models.Client, impl string) (commandData, error) {
	nodeID, err := crypto.NodeID(client.ID)
	if err != nil {
		return commandData{}, err
	}
	coinbase, err := crypto.CoinbaseAddress(client.ID)
	if err != nil {
		return commandData{}, err
	}
	return commandData{
		ID:       client.ID,
		Host:     client.Host,
		Impl:     impl,
		NodeID:   nodeID,
		Coinbase: coinbase.Hex(),
	}, nil
}

// CommandController runs a shell command per client and implementation.
type CommandController struct {
	start *template.Template
	stop  *template.Template
	run   func(ctx context.Context, command string) ([]byte, error)
}

// NewCommandController parses the start and stop command templates.
// Templates can use {{.ID}}, {{.Host}}, {{.Impl}}, {{.NodeID}} and {{.Coinbase}}.
func NewCommandController(startCommand, stopCommand string) (*CommandController, error) {
	start, err := template.New("start").Option("missingkey=error").Parse(startCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid start_command: %w", err)
	}
	stop, err := template.New("stop").Option("missingkey=error").Parse(stopCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid stop_command: %w", err)
	}
	return &CommandController{start: start, stop: stop, run: runShell}, nil
}

// Start runs the start command for every client and implementation.
func (c *CommandController) Start(ctx context.Context, clients []*models.Client, impls []string) error {
	log.Infof("[Lifecycle] Starting %d clients for %v", len(clients), impls)
	return c.each(ctx, c.start, clients, impls)
}

// Stop runs the stop command for every client and implementation.
func (c *CommandController) Stop(ctx context.Context, clients []*models.Client, impls []string) error {
	log.Infof("[Lifecycle] Stopping %d clients for %v", len(clients), impls)
	return c.each(ctx, c.stop, clients, impls)
}

// each runs tmpl for every client. A failing client does not stop the others;
// all failures are returned together.
func (c *CommandController) each(ctx context.Context, tmpl *template.Template, clients []*models.Client, impls []string) error {
	var errs []error
	for _, client := range clients {
		for _, impl := range impls {
			data, err := newCommandData(client, impl)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", client.ID, err))
				continue
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				errs = append(errs, fmt.Errorf("%s: render %s command: %w", client.ID, tmpl.Name(), err))
				continue
			}
			command := buf.String()
			out, err := c.run(ctx, command)
			if err != nil {
				log.Warnf("[Lifecycle] %s %s failed: %v: %s", tmpl.Name(), client.ID, err, strings.TrimSpace(string(out)))
				errs = append(errs, fmt.Errorf("%s: %s: %w", client.ID, command, err))
				continue
			}
			log.Debugf("[Lifecycle] %s %s (%s): %s", tmpl.Name(), client.ID, impl, command)
		}
	}
	return errors.Join(errs...)
}

func runShell(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
}
