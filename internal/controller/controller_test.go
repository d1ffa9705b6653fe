package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"energydash/internal/backend"
	"energydash/internal/clock"
	"energydash/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDisplay struct {
	mu   sync.Mutex
	docs []snapshot.Doc
}

func (d *recordingDisplay) Show(doc snapshot.Doc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs = append(d.docs, doc)
}

func (d *recordingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.docs)
}

func (d *recordingDisplay) last() snapshot.Doc {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.docs) == 0 {
		return nil
	}
	return d.docs[len(d.docs)-1]
}

func setup(t *testing.T) (*Controller, *backend.MockClient, *clock.MockClock, *recordingDisplay) {
	t.Helper()
	mock := backend.NewMockClient()
	clk := clock.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	logger, _ := zap.NewDevelopment()
	c := New(mock, Config{}, clk, nil, logger)
	display := &recordingDisplay{}
	c.AddDisplay(display)
	return c, mock, clk, display
}

func autoState() snapshot.Doc {
	return snapshot.Doc{"ess": map[string]any{"mode": "auto"}}
}

func manualState() snapshot.Doc {
	return snapshot.Doc{"ess": map[string]any{"mode": "manual"}, "manual_auth": true}
}

func TestController_PollsEveryInterval(t *testing.T) {
	c, mock, clk, display := setup(t)
	mock.SetState(autoState())

	require.NoError(t, c.Start(context.Background()))
	assert.Len(t, mock.GetStateCalls(), 1, "first poll runs immediately")
	assert.Equal(t, 1, display.count())

	clk.Advance(500 * time.Millisecond)
	assert.Len(t, mock.GetStateCalls(), 1)

	clk.Advance(500 * time.Millisecond)
	assert.Len(t, mock.GetStateCalls(), 2)

	clk.Advance(3 * time.Second)
	assert.Len(t, mock.GetStateCalls(), 5)
	assert.Equal(t, 1, clk.Pending(), "exactly one poll scheduled at any time")

	c.Stop()
	assert.False(t, c.Running())
	clk.Advance(10 * time.Second)
	assert.Len(t, mock.GetStateCalls(), 5)
}

func TestController_StartTwice(t *testing.T) {
	c, _, _, _ := setup(t)
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
}

func TestController_FailureShowsNil(t *testing.T) {
	c, mock, clk, display := setup(t)
	mock.SetState(autoState())
	require.NoError(t, c.Start(context.Background()))
	require.NotNil(t, display.last())

	mock.SetStateError(errors.New("connection refused"))
	clk.Advance(time.Second)
	assert.Nil(t, display.last())
	assert.Nil(t, c.Last())

	// keeps polling after a failure
	mock.SetState(autoState())
	clk.Advance(time.Second)
	assert.NotNil(t, display.last())
}

func TestController_ManualPayload(t *testing.T) {
	c, mock, clk, _ := setup(t)

	mock.SetState(autoState())
	require.NoError(t, c.Start(context.Background()))
	calls := mock.GetStateCalls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].Manual, "no manual payload without a previous snapshot")

	// sliders are ignored without manual authority
	c.SetChargeSlider(800)
	clk.Advance(time.Second)
	assert.Nil(t, mock.GetStateCalls()[1].Manual)

	mock.SetState(manualState())
	clk.Advance(time.Second) // this poll grants authority
	c.RequestWakeup()
	clk.Advance(time.Second)

	calls = mock.GetStateCalls()
	require.Len(t, calls, 4)
	require.NotNil(t, calls[3].Manual)
	assert.Equal(t, 800.0, calls[3].Manual.ManualSetP)
	assert.Equal(t, backend.CmdWakeup, calls[3].Manual.ManualCmd)

	// the command is sent once
	c.SetFeedSlider(300)
	clk.Advance(time.Second)
	calls = mock.GetStateCalls()
	require.NotNil(t, calls[4].Manual)
	assert.Equal(t, -300.0, calls[4].Manual.ManualSetP)
	assert.Equal(t, "", calls[4].Manual.ManualCmd)
	assert.Equal(t, "", c.Pending())
}

func TestController_SlidersExclusive(t *testing.T) {
	c, _, _, _ := setup(t)

	c.SetChargeSlider(500)
	charge, feed := c.Sliders()
	assert.Equal(t, 500.0, charge)
	assert.Equal(t, 0.0, feed)

	c.SetFeedSlider(200)
	charge, feed = c.Sliders()
	assert.Equal(t, 0.0, charge)
	assert.Equal(t, 200.0, feed)

	c.SetChargeSlider(-10)
	charge, _ = c.Sliders()
	assert.Equal(t, 0.0, charge)
}

func TestController_LastCommandWins(t *testing.T) {
	c, _, _, _ := setup(t)
	c.RequestWakeup()
	c.RequestSleep()
	assert.Equal(t, backend.CmdSleep, c.Pending())

	assert.Error(t, c.RequestCommand("reboot"))
	assert.Equal(t, backend.CmdSleep, c.Pending())
}

func TestController_Commands(t *testing.T) {
	c, mock, _, display := setup(t)
	ctx := context.Background()

	mock.SetSetResponse(snapshot.Doc{"ess": map[string]any{"mode": "manual"}}, nil)
	require.NoError(t, c.SetMode(ctx, backend.ModeManual))
	assert.Equal(t, "manual", display.last().StringOr("", "ess", "mode"), "response refreshes the display")

	require.NoError(t, c.SetOption(ctx, 2))
	require.NoError(t, c.ResetError(ctx))

	calls := mock.GetSetCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, "mode=manual", calls[0].String())
	assert.Equal(t, "option=2", calls[1].String())
	assert.Equal(t, "reset_error", calls[2].String())

	err := c.SetMode(ctx, "turbo")
	assert.ErrorIs(t, err, backend.ErrInvalidMode)
	assert.Error(t, c.SetOption(ctx, -1))
	assert.Len(t, mock.GetSetCalls(), 3)
}

func TestController_FailedCommandKeepsDisplay(t *testing.T) {
	c, mock, _, display := setup(t)
	mock.SetState(autoState())
	require.NoError(t, c.Start(context.Background()))
	shown := display.count()

	mock.SetSetResponse(nil, errors.New("backend down"))
	assert.Error(t, c.ResetError(context.Background()))
	assert.Equal(t, shown, display.count())
	assert.NotNil(t, c.Last())
}

func TestController_SessionInvalidReloadsOnce(t *testing.T) {
	c, mock, clk, display := setup(t)

	reloads := 0
	c.OnReload(func() { reloads++ })

	mock.SetState(autoState())
	require.NoError(t, c.Start(context.Background()))

	mock.SetState(snapshot.Doc{"session_invalid": true})
	clk.Advance(time.Second)
	assert.True(t, display.last().SessionInvalid())
	assert.False(t, c.Running(), "polling stops on an invalid session")

	// a command response carrying the flag again does not schedule twice
	mock.SetSetResponse(snapshot.Doc{"session_invalid": true}, nil)
	require.NoError(t, c.ResetError(context.Background()))

	clk.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, reloads)

	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, reloads)

	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, reloads)
	assert.Len(t, mock.GetStateCalls(), 2)

	assert.Error(t, c.Start(context.Background()))
}

func TestController_Restart(t *testing.T) {
	c, mock, clk, _ := setup(t)

	mock.SetState(manualState())
	require.NoError(t, c.Start(context.Background()))
	c.SetChargeSlider(1000)
	c.RequestSleep()

	mock.SetState(snapshot.Doc{"session_invalid": true})
	clk.Advance(time.Second)
	require.False(t, c.Running())

	mock.SetState(autoState())
	require.NoError(t, c.Restart(context.Background()))
	assert.True(t, c.Running())

	charge, _ := c.Sliders()
	assert.Equal(t, 0.0, charge)
	assert.Equal(t, "", c.Pending())

	calls := mock.GetStateCalls()
	assert.Nil(t, calls[len(calls)-1].Manual)
}

// slowBackend holds the first State call until release is closed
type slowBackend struct {
	*backend.MockClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *slowBackend) State(ctx context.Context, manual *backend.ManualRequest) (snapshot.Doc, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.MockClient.State(ctx, manual)
}

func TestController_RestartDuringSlowPoll(t *testing.T) {
	mock := backend.NewMockClient()
	slow := &slowBackend{MockClient: mock, entered: make(chan struct{}), release: make(chan struct{})}
	clk := clock.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := New(slow, Config{}, clk, nil, zap.NewNop())
	display := &recordingDisplay{}
	c.AddDisplay(display)

	ctx := context.Background()
	c.OnReload(func() { require.NoError(t, c.Restart(ctx)) })
	mock.SetState(autoState())

	started := make(chan error, 1)
	go func() { started <- c.Start(ctx) }()
	<-slow.entered

	// a command response invalidates the session while the first poll hangs
	mock.SetSetResponse(snapshot.Doc{"session_invalid": true}, nil)
	require.NoError(t, c.SetMode(ctx, "auto"))
	require.False(t, c.Running())

	clk.Advance(2 * time.Second)
	require.True(t, c.Running(), "reload restarted polling")
	assert.Equal(t, 1, clk.Pending())

	close(slow.release)
	require.NoError(t, <-started)

	assert.Equal(t, 1, clk.Pending(), "the old poll loop must not reschedule")
	assert.False(t, display.last().SessionInvalid())

	calls := len(mock.GetStateCalls())
	clk.Advance(time.Second)
	assert.Len(t, mock.GetStateCalls(), calls+1, "one poll per interval")
}

func TestController_ContextCancelStopsPolling(t *testing.T) {
	c, mock, clk, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Start(ctx))
	cancel()
	clk.Advance(time.Second)
	assert.False(t, c.Running())

	clk.Advance(5 * time.Second)
	assert.Len(t, mock.GetStateCalls(), 1)
}

func TestDisplayFunc(t *testing.T) {
	var got snapshot.Doc
	DisplayFunc(func(doc snapshot.Doc) { got = doc }).Show(autoState())
	assert.Equal(t, "auto", got.StringOr("", "ess", "mode"))
}
