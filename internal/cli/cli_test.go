package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keksclan/swrgate/config"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123", "2026-01-02")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "swrgate v1.2.3 (commit abc123, built 2026-01-02)\n", out.String())
}

func TestServeCommand_RejectsMissingConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"serve", "--config", "/does/not/exist.yaml"})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Server: config.ServerConfig{Environment: "production"},
		Log:    config.LogConfig{Level: "warn"},
	}
	logger, err := newLogger(&buf, cfg)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "swrgate", line["service"])

	_, err = newLogger(&buf, config.Config{Log: config.LogConfig{Level: "loud"}})
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.GRPC.HealthPort = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop()) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_ReportsUnhealthyDuringDrainDelay(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Server.DrainDelay = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop()) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/health"
	status := func() int {
		resp, err := http.Get(url)
		if err != nil {
			return 0
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	require.Eventually(t, func() bool { return status() == http.StatusOK }, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return status() == http.StatusServiceUnavailable }, 400*time.Millisecond, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
