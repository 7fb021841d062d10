package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskMonitor/internal/config"
	"RiskMonitor/internal/logging"
	"RiskMonitor/internal/usecase"
)

const seedJSON = `[
  {"id":"t1","text":"calm","collected_at":"2025-03-01T09:00:00Z","user":{"username":"legacy"},"risk_analysis":{"risk_score":2}},
  {"id":"t2","text":"heated","collected_at":"2025-03-01T10:00:00Z","user_info":{"username":"bob"},"risk_analysis":{"risk_score":8,"reason":"insult"}},
  {"id":"t3","text":"edgy","collected_at":"2025-03-01T11:00:00Z","risk_score":5}
]`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	cfg := config.Default()
	cfg.Database.SeedFile = path
	cfg.Status.PollInterval = time.Second
	cfg.HTTP.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestApplicationServesSeededSession(t *testing.T) {
	application, err := New(context.Background(), testConfig(t), logging.Discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- application.Serve(ctx, ln) }()

	var vm usecase.ViewModel
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/view")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		vm = usecase.ViewModel{}
		return json.NewDecoder(resp.Body).Decode(&vm) == nil && !vm.Loading
	}, 3*time.Second, 20*time.Millisecond)

	require.Len(t, vm.Records, 3)
	assert.Equal(t, "t3", vm.Records[0].ID)
	assert.Equal(t, "bob", vm.Records[1].User.Username)
	assert.Equal(t, "legacy", vm.Records[2].User.Username)
	assert.Equal(t, 1, vm.HighRiskCount)

	resp, err := http.Post(base+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mongodb"

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, `"mongodb" is not supported`)
}

func TestNewRejectsMissingSeedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Database.SeedFile = filepath.Join(t.TempDir(), "absent.json")

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "read seed file")
}
