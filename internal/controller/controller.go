// Package controller runs the dashboard's poll loop against the energy
// backend and forwards operator commands.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energydash/internal/backend"
	"energydash/internal/clock"
	"energydash/internal/metrics"
	"energydash/internal/snapshot"

	"go.uber.org/zap"
)

const (
	DefaultInterval    = time.Second
	DefaultReloadDelay = 2 * time.Second
)

// Display receives every snapshot the controller obtains. A nil snapshot
// means the backend could not be reached.
type Display interface {
	Show(doc snapshot.Doc)
}

// DisplayFunc adapts a function to Display
type DisplayFunc func(doc snapshot.Doc)

// Show calls f(doc)
func (f DisplayFunc) Show(doc snapshot.Doc) { f(doc) }

// Config holds the controller timing
type Config struct {
	Interval    time.Duration
	ReloadDelay time.Duration
}

// Controller polls the backend on a self-rescheduling timer. The next poll
// is only scheduled once the current one completed, so polls never overlap.
type Controller struct {
	backend backend.Backend
	clock   clock.Clock
	metrics metrics.Collector
	logger  *zap.Logger

	interval    time.Duration
	reloadDelay time.Duration

	mu          sync.Mutex
	ctx         context.Context
	running     bool
	generation  uint64 // bumped by every Start; polls of an older run are discarded
	timer       clock.Timer
	last        snapshot.Doc
	pending     string
	charge      float64
	feed        float64
	invalidated bool
	displays    []Display
	onReload    func()
}

// New creates a controller. A nil clock uses the real clock and a nil
// collector discards metrics.
func New(b backend.Backend, cfg Config, clk clock.Clock, collector metrics.Collector, logger *zap.Logger) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if collector == nil {
		collector = metrics.Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		backend:     b,
		clock:       clk,
		metrics:     collector,
		logger:      logger,
		interval:    cfg.Interval,
		reloadDelay: cfg.ReloadDelay,
		ctx:         context.Background(),
	}
}

// AddDisplay registers a snapshot consumer. Displays are called in
// registration order.
func (c *Controller) AddDisplay(d Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displays = append(c.displays, d)
}

// OnReload sets the callback run once ReloadDelay after the backend first
// reports an invalid session
func (c *Controller) OnReload(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = f
}

// Start runs the first poll before returning and keeps polling until Stop
// or until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("controller already running")
	}
	if c.invalidated {
		c.mu.Unlock()
		return fmt.Errorf("session invalidated, restart required")
	}
	c.running = true
	c.ctx = ctx
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.logger.Info("Starting poller", zap.Duration("interval", c.interval))
	c.poll(gen)
	return nil
}

// Stop cancels the next scheduled poll. A poll in flight completes but does
// not reschedule.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Restart discards all per-session state and starts polling again. It is
// the equivalent of a fresh page load after an invalid session.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	c.stopLocked()
	c.last = nil
	c.pending = ""
	c.charge = 0
	c.feed = 0
	c.invalidated = false
	c.mu.Unlock()

	return c.Start(ctx)
}

// Running reports whether polling is active
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Last returns the most recently shown snapshot
func (c *Controller) Last() snapshot.Doc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// currentLocked reports whether gen is the active poll loop
func (c *Controller) currentLocked(gen uint64) bool {
	return c.running && c.generation == gen
}

func (c *Controller) poll(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	manual := c.manualRequestLocked()
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		c.logger.Info("Poller stopped", zap.Error(err))
		c.Stop()
		return
	}

	start := c.clock.Now()
	doc, err := c.backend.State(ctx, manual)
	c.metrics.ObservePoll(err, c.clock.Since(start))

	c.mu.Lock()
	stale := c.generation != gen
	c.mu.Unlock()
	if stale {
		// a Restart happened while the request was in flight
		c.logger.Debug("Discarding state from a previous poll loop")
		return
	}

	if err != nil {
		c.logger.Warn("Failed to poll state", zap.Error(err))
		c.show(nil)
	} else {
		c.show(doc)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentLocked(gen) {
		c.timer = c.clock.AfterFunc(c.interval, func() { c.poll(gen) })
	}
}

// manualRequestLocked builds the manual payload when the last snapshot
// granted manual authority. The pending command is sent once.
func (c *Controller) manualRequestLocked() *backend.ManualRequest {
	if !c.last.ManualAuth() {
		return nil
	}
	req := &backend.ManualRequest{
		ManualSetP: c.charge - c.feed,
		ManualCmd:  c.pending,
	}
	c.pending = ""
	c.logger.Debug("Sending manual setpoint",
		zap.Float64("set_p", req.ManualSetP),
		zap.String("cmd", req.ManualCmd))
	return req
}

// show stores doc as the last known state and hands it to every display.
// Whichever response arrives last wins.
func (c *Controller) show(doc snapshot.Doc) {
	c.mu.Lock()
	c.last = doc
	scheduleReload := doc.SessionInvalid() && !c.invalidated
	if scheduleReload {
		c.invalidated = true
		c.stopLocked()
	}
	displays := make([]Display, len(c.displays))
	copy(displays, c.displays)
	c.mu.Unlock()

	for _, d := range displays {
		d.Show(doc)
	}

	if scheduleReload {
		c.logger.Warn("Backend reported invalid session, scheduling reload",
			zap.Duration("delay", c.reloadDelay))
		c.clock.AfterFunc(c.reloadDelay, c.reload)
	}
}

func (c *Controller) reload() {
	c.metrics.IncReload()

	c.mu.Lock()
	f := c.onReload
	c.mu.Unlock()

	if f != nil {
		f()
	}
}

// SetMode switches the backend operating mode
func (c *Controller) SetMode(ctx context.Context, mode string) error {
	req, err := backend.SetMode(mode)
	if err != nil {
		return err
	}
	return c.send(ctx, "mode", req)
}

// SetOption selects a parameter set by index
func (c *Controller) SetOption(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("invalid option index %d", index)
	}
	return c.send(ctx, "option", backend.SetOption(index))
}

// ResetError clears the backend error state
func (c *Controller) ResetError(ctx context.Context) error {
	return c.send(ctx, "reset_error", backend.ResetError())
}

// send forwards a one-shot command. The response refreshes the displays; a
// failed command is logged and leaves the displays untouched.
func (c *Controller) send(ctx context.Context, name string, req backend.SetRequest) error {
	doc, err := c.backend.Set(ctx, req)
	c.metrics.IncCommand(name, err)
	if err != nil {
		c.logger.Error("Command failed", zap.String("command", req.String()), zap.Error(err))
		return fmt.Errorf("command %s failed: %w", name, err)
	}
	c.show(doc)
	return nil
}

// SetChargeSlider sets the manual charge power. The feed slider is reset.
func (c *Controller) SetChargeSlider(watts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charge = clampSlider(watts)
	c.feed = 0
}

// SetFeedSlider sets the manual feed power. The charge slider is reset.
func (c *Controller) SetFeedSlider(watts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = clampSlider(watts)
	c.charge = 0
}

// Sliders returns the current charge and feed slider values
func (c *Controller) Sliders() (charge, feed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charge, c.feed
}

// RequestCommand queues a wakeup or sleep for the next manual poll. A later
// request replaces an unsent one.
func (c *Controller) RequestCommand(cmd string) error {
	if !backend.ValidCommand(cmd) {
		return fmt.Errorf("%w: %q", backend.ErrInvalidCommand, cmd)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = cmd
	return nil
}

// RequestWakeup queues a wakeup command
func (c *Controller) RequestWakeup() {
	_ = c.RequestCommand(backend.CmdWakeup)
}

// RequestSleep queues a sleep command
func (c *Controller) RequestSleep() {
	_ = c.RequestCommand(backend.CmdSleep)
}

// Pending returns the queued manual command, "" if none
func (c *Controller) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func clampSlider(watts float64) float64 {
	if watts < 0 {
		return 0
	}
	return watts
}
