package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mavleo96/tx-spam/internal/config"
	"github.com/mavleo96/tx-spam/internal/crypto"
	"github.com/mavleo96/tx-spam/internal/models"
	"github.com/stretchr/testify/require"
)

func testClients() []*models.Client {
	return []*models.Client{
		models.NewClient("c1", "10.0.0.1", 8545),
		models.NewClient("c2", "10.0.0.2", 8545),
	}
}

func TestCommandControllerRendersPerClientAndImpl(t *testing.T) {
	c, err := NewCommandController("start {{.Impl}} {{.ID}}@{{.Host}}", "stop {{.ID}}")
	require.NoError(t, err)

	var ran []string
	c.run = func(ctx context.Context, command string) ([]byte, error) {
		ran = append(ran, command)
		return nil, nil
	}

	require.NoError(t, c.Start(context.Background(), testClients(), []string{"go", "py"}))
	require.Equal(t, []string{
		"start go c1@10.0.0.1",
		"start py c1@10.0.0.1",
		"start go c2@10.0.0.2",
		"start py c2@10.0.0.2",
	}, ran)

	ran = nil
	require.NoError(t, c.Stop(context.Background(), testClients(), []string{"go"}))
	require.Equal(t, []string{"stop c1", "stop c2"}, ran)
}

func TestCommandControllerContinuesAfterFailure(t *testing.T) {
	c, err := NewCommandController("start {{.ID}}", "stop {{.ID}}")
	require.NoError(t, err)

	var ran []string
	c.run = func(ctx context.Context, command string) ([]byte, error) {
		ran = append(ran, command)
		if strings.HasSuffix(command, "c1") {
			return []byte("boom"), errors.New("exit status 1")
		}
		return nil, nil
	}

	err = c.Start(context.Background(), testClients(), []string{"go"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "c1")
	require.Equal(t, []string{"start c1", "start c2"}, ran)
}

func TestCommandControllerRunsShell(t *testing.T) {
	c, err := NewCommandController("true", "false")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), testClients()[:1], []string{"go"}))
	require.Error(t, c.Stop(context.Background(), testClients()[:1], []string{"go"}))
}

func TestNewSelectsController(t *testing.T) {
	ctrl, err := New(config.LifecycleConfig{Kind: "none"})
	require.NoError(t, err)
	require.IsType(t, NoopController{}, ctrl)
	require.NoError(t, ctrl.Start(context.Background(), testClients(), nil))

	ctrl, err = New(config.LifecycleConfig{Kind: "command", StartCommand: "true", StopCommand: "true"})
	require.NoError(t, err)
	require.IsType(t, &CommandController{}, ctrl)

	_, err = New(config.LifecycleConfig{Kind: "docker"})
	require.Error(t, err)

	_, err = NewCommandController("{{.ID", "true")
	require.Error(t, err)
}

func TestCommandControllerRendersNodeIdentity(t *testing.T) {
	c, err := NewCommandController("start --node {{.NodeID}} --etherbase {{.Coinbase}}", "true")
	require.NoError(t, err)

	var ran []string
	c.run = func(ctx context.Context, command string) ([]byte, error) {
		ran = append(ran, command)
		return nil, nil
	}
	require.NoError(t, c.Start(context.Background(), testClients()[:1], []string{"go"}))

	nodeID, err := crypto.NodeID("c1")
	require.NoError(t, err)
	coinbase, err := crypto.CoinbaseAddress("c1")
	require.NoError(t, err)
	require.Equal(t, []string{"start --node " + nodeID + " --etherbase " + coinbase.Hex()}, ran)
}
