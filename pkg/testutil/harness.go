package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"energydash/internal/clock"
	"energydash/internal/gateway"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PollInterval is the poll interval of a TestEnv gateway
const PollInterval = time.Second

// TestEnv is a complete dashboard wired to a MockBackend. Polling runs on a
// MockClock, so tests step it with Poll instead of sleeping.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("secret", "")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	env.Backend.SetState(state)
//	env.Start()
type TestEnv struct {
	Backend *MockBackend
	Gateway *gateway.Gateway
	Clock   *clock.MockClock
	Server  *httptest.Server
	Logger  *zap.Logger

	configDir string
	cancel    context.CancelFunc
}

// NewTestEnv creates the mock backend and a gateway for it. configYAML is
// written as dashboard.yaml; empty uses the defaults.
func NewTestEnv(password, configYAML string) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	dir, err := os.MkdirTemp("", "energydash-test")
	if err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}
	if configYAML != "" {
		if err := os.WriteFile(dir+"/dashboard.yaml", []byte(configYAML), 0o644); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to write config: %w", err)
		}
	}

	backend := NewMockBackend(password)
	clk := clock.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	gw, err := gateway.New(gateway.Config{
		BackendURL:      backend.URL(),
		BackendPassword: password,
		ConfigDir:       dir,
		PollInterval:    PollInterval,
		Clock:           clk,
	}, logger)
	if err != nil {
		backend.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &TestEnv{
		Backend:   backend,
		Gateway:   gw,
		Clock:     clk,
		Server:    httptest.NewServer(gw.Handler()),
		Logger:    logger,
		configDir: dir,
	}, nil
}

// Start logs in and runs the first poll
func (e *TestEnv) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	return e.Gateway.Start(ctx)
}

// Poll advances the clock by one interval, running the next poll
func (e *TestEnv) Poll() {
	e.Clock.Advance(PollInterval)
}

// DialWS opens a websocket to the dashboard
func (e *TestEnv) DialWS() (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(e.Server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.cancel != nil {
		e.cancel()
	}
	e.Server.Close()
	e.Gateway.Stop()
	e.Backend.Close()
	os.RemoveAll(e.configDir)
}
