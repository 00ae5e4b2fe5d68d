package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/session"
	"github.com/drewrad8/strategos/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRegistry(t *testing.T) *registry.Registry {
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

	r := registry.New(cfg, store, broker, zerolog.Nop())
	require.NoError(t, r.Rehydrate())
	return r
}

func newTestRouter(t *testing.T) (*gin.Engine, *registry.Registry) {
	t.Helper()
	r := newTestRegistry(t)
	router := NewDefaultRouter(r, nil, Config{})
	return router, r
}
