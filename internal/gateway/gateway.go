// Package gateway assembles the dashboard: backend client, poller,
// presenter, websocket hub, HTTP server and the optional MQTT mirror.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"energydash/internal/backend"
	"energydash/internal/clock"
	"energydash/internal/config"
	"energydash/internal/controller"
	"energydash/internal/dashboard"
	"energydash/internal/flow"
	"energydash/internal/metrics"
	"energydash/internal/mqtt"
	"energydash/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds the runtime settings of a gateway
type Config struct {
	BackendURL      string
	BackendPassword string
	// ListenPort of the HTTP server. 0 leaves serving to the caller via
	// Handler.
	ListenPort   int
	ConfigDir    string
	PollInterval time.Duration
	ReloadDelay  time.Duration
	MQTTBroker   string
	MQTTTopic    string
	Version      string
	// Clock drives polling; nil uses the wall clock
	Clock clock.Clock
}

// Gateway is one running dashboard instance
type Gateway struct {
	cfg    Config
	logger *zap.Logger

	dashboard  *config.DashboardConfig
	renderer   *flow.Renderer
	client     *backend.Client
	controller *controller.Controller
	presenter  *dashboard.Presenter
	hub        *web.Hub
	server     *web.Server
	registry   *prometheus.Registry

	mqttClient *mqtt.Client
	publisher  *mqtt.Publisher

	ctx context.Context
}

// New builds a gateway from cfg. Nothing is started.
func New(cfg Config, logger *zap.Logger) (*Gateway, error) {
	if cfg.BackendURL == "" {
		return nil, errors.New("backend URL must be set")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRealClock()
	}
	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = "energydash"
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = controller.DefaultReloadDelay
	}

	loader := config.NewLoader(cfg.ConfigDir, logger.Named("config"))
	if err := loader.LoadDashboardConfig(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard config: %w", err)
	}
	dashCfg := loader.GetDashboardConfig()

	flowCfg, err := dashCfg.FlowConfig()
	if err != nil {
		return nil, err
	}
	renderer, err := flow.NewRenderer(flowCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow renderer: %w", err)
	}

	client, err := backend.NewClient(cfg.BackendURL, backend.DefaultTimeout, logger.Named("backend"))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewPrometheusCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	g := &Gateway{
		cfg:       cfg,
		logger:    logger,
		dashboard: dashCfg,
		renderer:  renderer,
		client:    client,
		registry:  registry,
		ctx:       context.Background(),
	}

	g.presenter = dashboard.NewPresenter(renderer, dashCfg.DashboardOptions(), logger.Named("dashboard"))
	g.hub = web.NewHub(g.presenter.Latest, logger.Named("websocket"))
	g.presenter.AddSink(g.hub)

	g.controller = controller.New(client, controller.Config{
		Interval:    cfg.PollInterval,
		ReloadDelay: cfg.ReloadDelay,
	}, cfg.Clock, collector, logger.Named("controller"))
	g.controller.AddDisplay(g.presenter)
	g.controller.AddDisplay(metrics.NewRecorder(collector))
	g.controller.OnReload(g.reload)

	g.server = web.NewServer(g.controller, g.presenter, g.hub, web.PageOptions{
		Version:     cfg.Version,
		Settings:    dashCfg.Settings,
		BMSPacks:    dashCfg.BMSPacks,
		EnableCar:   dashCfg.EnableCar,
		EnableHeat:  dashCfg.EnableHeat,
		ReloadDelay: cfg.ReloadDelay,
	}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger.Named("http"), cfg.ListenPort)

	return g, nil
}

// Start logs in, connects the MQTT mirror when configured and begins
// polling. A failed login is logged; the backend then reports an invalid
// session and the reload path logs in again.
func (g *Gateway) Start(ctx context.Context) error {
	g.ctx = ctx
	g.login(ctx)

	if g.cfg.MQTTBroker != "" {
		client, err := mqtt.Connect(g.cfg.MQTTBroker, "energydash", g.logger.Named("mqtt"))
		if err != nil {
			return err
		}
		g.mqttClient = client
		g.publisher = mqtt.NewPublisher(client, g.cfg.MQTTTopic, g.logger.Named("mqtt"))
		g.publisher.Start()
		g.controller.AddDisplay(g.publisher)
	}

	g.hub.Start()

	if err := g.controller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	if g.cfg.ListenPort > 0 {
		if err := g.server.Start(); err != nil {
			return err
		}
	}

	g.logger.Info("Energy dashboard started",
		zap.String("backend", g.cfg.BackendURL),
		zap.Int("port", g.cfg.ListenPort),
		zap.Bool("mqtt", g.publisher != nil))
	return nil
}

// Stop shuts everything down in reverse order
func (g *Gateway) Stop() {
	if g.cfg.ListenPort > 0 {
		if err := g.server.Stop(); err != nil {
			g.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	g.controller.Stop()
	g.hub.Stop()
	if g.publisher != nil {
		g.publisher.Stop()
	}
	if g.mqttClient != nil {
		g.mqttClient.Close()
	}
}

// Handler returns the HTTP routes of the dashboard
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler()
}

// Controller returns the poller
func (g *Gateway) Controller() *controller.Controller {
	return g.controller
}

// Presenter returns the view builder
func (g *Gateway) Presenter() *dashboard.Presenter {
	return g.presenter
}

// Hub returns the websocket hub
func (g *Gateway) Hub() *web.Hub {
	return g.hub
}

// DashboardConfig returns the loaded dashboard.yaml
func (g *Gateway) DashboardConfig() *config.DashboardConfig {
	return g.dashboard
}

func (g *Gateway) login(ctx context.Context) {
	if g.cfg.BackendPassword == "" {
		return
	}
	if err := g.client.Login(ctx, g.cfg.BackendPassword); err != nil {
		g.logger.Error("Backend login failed", zap.Error(err))
	}
}

// reload is the fresh start after the backend dropped our session: log in
// again, poll with clean state and let every browser reload the page.
func (g *Gateway) reload() {
	g.logger.Warn("Reloading after invalid session")
	g.login(g.ctx)
	g.renderer.Reset()
	if err := g.controller.Restart(g.ctx); err != nil {
		g.logger.Error("Failed to restart poller", zap.Error(err))
	}
	g.hub.BroadcastReload(0)
}
