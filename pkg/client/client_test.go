package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/api"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/session"
	"github.com/drewrad8/strategos/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	t.Setenv(session.RuntimeDirEnv, t.TempDir())

	projectsBase := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectsBase, "proj"), 0o755))

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := registry.DefaultConfig()
	cfg.ProjectsBase = projectsBase
	cfg.DataDir = t.TempDir()
	cfg.HealthPollInterval = time.Hour
	cfg.SweepInterval = time.Hour
	cfg.AgentCommand = "sleep"
	cfg.AgentArgs = []string{"30"}

	reg := registry.New(cfg, store, broker, zerolog.Nop())
	require.NoError(t, reg.Rehydrate())

	router := api.NewDefaultRouter(reg, nil, api.Config{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

func TestSpawnAndGetWorker(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")
	ctx := context.Background()

	w, err := c.SpawnWorker(ctx, SpawnRequest{ProjectPath: "proj", Label: "TEST: spawn"})
	require.NoError(t, err)
	require.Equal(t, "TEST: spawn", w.Label)

	got, err := c.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, w.ID, got.ID)
}

func TestListWorkersEmptyByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")

	workers, err := c.ListWorkers(context.Background())
	require.NoError(t, err)
	require.Empty(t, workers)
}

func TestGetWorkerNotFoundSurfacesKind(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")

	_, err := c.GetWorker(context.Background(), "does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "NotFound")
}

func TestSendInputAndOutput(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")
	ctx := context.Background()

	w, err := c.SpawnWorker(ctx, SpawnRequest{ProjectPath: "proj", Label: "TEST: io"})
	require.NoError(t, err)

	require.NoError(t, c.SendInput(ctx, w.ID, "hello\n"))

	_, err = c.Output(ctx, w.ID)
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Contains(t, health, "status")
}

func TestCheckpointsEmptyByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, "")

	cps, err := c.Checkpoints(context.Background())
	require.NoError(t, err)
	require.Empty(t, cps)
}
