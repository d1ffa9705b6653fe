package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"energydash/internal/dashboard"
	"energydash/internal/flow"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileName is the dashboard configuration file inside the config directory
const FileName = "dashboard.yaml"

// ErrInvalidFlowConfig is returned when the flow layout does not validate
var ErrInvalidFlowConfig = errors.New("invalid flow config")

// DefaultSettings are the parameter set names of the reference installation
var DefaultSettings = []string{
	"Standard",
	"Maximal-Entladen (Sommer)",
	"Maximal-Laden (Winter)",
	"Nur Laden",
	"Max-Laden / 20% Reserve",
	"Full 100% Charge",
}

// DashboardConfig represents the dashboard.yaml structure
type DashboardConfig struct {
	// Flow replaces the built-in table and bar layout when set
	Flow       *flow.Config       `yaml:"flow"`
	EnableCar  bool               `yaml:"enable_car"`
	EnableHeat bool               `yaml:"enable_heat"`
	Settings   []string           `yaml:"settings"`
	BMSPacks   int                `yaml:"bms_packs"`
	PVLabels   dashboard.PVLabels `yaml:"pv_labels"`
}

// Default returns the configuration used when no file exists
func Default() *DashboardConfig {
	return &DashboardConfig{
		EnableCar:  true,
		EnableHeat: false,
		Settings:   append([]string(nil), DefaultSettings...),
		BMSPacks:   2,
		PVLabels:   dashboard.DefaultPVLabels(),
	}
}

// FlowConfig returns the flow layout. Without an explicit layout the default
// table is extended by a heat row and a car row with wallbox decoration,
// depending on the feature flags.
func (c *DashboardConfig) FlowConfig() (flow.Config, error) {
	var cfg flow.Config
	if c.Flow != nil {
		cfg = *c.Flow
	} else {
		cfg = flow.DefaultConfig()
		if c.EnableHeat {
			cfg.Nodes = append(cfg.Nodes, flow.Node{ID: "heat", Kind: flow.KindHeat, Sign: -1})
		}
		if c.EnableCar {
			cfg.Nodes = append(cfg.Nodes, flow.Node{ID: "car", Kind: flow.KindCar, Sign: -1, Wallbox: true})
		}
	}

	if err := cfg.Validate(); err != nil {
		return flow.Config{}, fmt.Errorf("%w: %w", ErrInvalidFlowConfig, err)
	}
	return cfg, nil
}

// DashboardOptions returns the presenter options derived from the file
func (c *DashboardConfig) DashboardOptions() dashboard.Options {
	return dashboard.Options{
		EnableCar:  c.EnableCar,
		EnableHeat: c.EnableHeat,
		Labels:     c.PVLabels,
	}
}

// Loader manages configuration file loading
type Loader struct {
	configDir string
	logger    *zap.Logger
	dashboard *DashboardConfig
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// LoadDashboardConfig loads dashboard.yaml. A missing file is not an
// error; the defaults are used instead.
func (l *Loader) LoadDashboardConfig() error {
	path := filepath.Join(l.configDir, FileName)
	l.logger.Debug("Loading dashboard config", zap.String("path", path))

	config := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("No dashboard config found, using defaults", zap.String("path", path))
		l.dashboard = config
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dashboard config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse dashboard config: %w", err)
	}
	if config.BMSPacks < 0 {
		return fmt.Errorf("bms_packs must not be negative, got %d", config.BMSPacks)
	}
	if config.PVLabels == (dashboard.PVLabels{}) {
		config.PVLabels = dashboard.DefaultPVLabels()
	}
	if _, err := config.FlowConfig(); err != nil {
		return err
	}

	l.dashboard = config
	l.logger.Info("Dashboard config loaded successfully",
		zap.Bool("enable_car", config.EnableCar),
		zap.Bool("enable_heat", config.EnableHeat),
		zap.Int("settings", len(config.Settings)),
		zap.Int("bms_packs", config.BMSPacks))
	return nil
}

// GetDashboardConfig returns the loaded configuration, nil before loading
func (l *Loader) GetDashboardConfig() *DashboardConfig {
	return l.dashboard
}
