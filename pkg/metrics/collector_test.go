package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/session"
	"github.com/drewrad8/strategos/pkg/storage"
)

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

	r := registry.New(cfg, store, broker, zerolog.Nop())
	require.NoError(t, r.Rehydrate())
	return r
}

func TestCollectorUpdatesWorkerGauges(t *testing.T) {
	r := newTestRegistry(t)
	_, aerr := r.Spawn(registry.SpawnSpec{Project: "proj", Label: "w1", Command: "sleep", Args: []string{"30"}})
	require.Nil(t, aerr)

	c := NewCollector(r, nil)
	c.collectWorkerMetrics()

	got := testutil.ToFloat64(WorkersTotal.WithLabelValues("running"))
	require.GreaterOrEqual(t, got, 1.0)
}

func TestCollectorUpdatesBreakerGauges(t *testing.T) {
	reg := breaker.NewRegistry(zerolog.Nop())
	b := reg.Get("test-breaker", breaker.DefaultConfig())
	_ = b

	c := NewCollector(nil, reg)
	c.collectBreakerMetrics()

	got := testutil.ToFloat64(BreakerState.WithLabelValues("test-breaker"))
	require.Equal(t, 0.0, got) // closed
}
