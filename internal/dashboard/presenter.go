// Package dashboard turns backend state documents into what the dashboard
// page displays: flow renderer data, header values and the detail panel.
package dashboard

import (
	"sync"

	"energydash/internal/flow"
	"energydash/internal/snapshot"

	"go.uber.org/zap"
)

// DefaultModes are the operating modes offered by the mode selector
var DefaultModes = []string{"off", "auto", "manual"}

// Options configure the parts of the view that depend on the installation
type Options struct {
	EnableCar  bool
	EnableHeat bool
	Labels     PVLabels
	Modes      []string
}

// ViewSink receives every view the presenter builds. Implementations must
// not block.
type ViewSink interface {
	PublishView(View)
}

// Presenter builds views from snapshots and keeps the latest one
type Presenter struct {
	renderer *flow.Renderer
	options  Options
	logger   *zap.Logger

	mu     sync.Mutex
	latest View
	shown  bool
	sinks  []ViewSink
}

// NewPresenter creates a presenter around an already built flow renderer
func NewPresenter(renderer *flow.Renderer, options Options, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(options.Modes) == 0 {
		options.Modes = DefaultModes
	}
	if options.Labels == (PVLabels{}) {
		options.Labels = DefaultPVLabels()
	}
	return &Presenter{
		renderer: renderer,
		options:  options,
		logger:   logger,
	}
}

// AddSink registers a view consumer
func (p *Presenter) AddSink(sink ViewSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// Show renders doc and publishes the result. A nil doc renders the
// disconnected view.
func (p *Presenter) Show(doc snapshot.Doc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := p.build(doc)
	p.latest = view
	p.shown = true

	if doc == nil {
		p.logger.Debug("Showing disconnected view")
	}
	for _, sink := range p.sinks {
		sink.PublishView(view)
	}
}

// Latest returns the most recent view. ok is false before the first Show.
func (p *Presenter) Latest() (view View, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.shown
}

// Layout returns the static flow layout
func (p *Presenter) Layout() flow.Layout {
	return p.renderer.Layout()
}

// Options returns the presenter options after defaults were applied
func (p *Presenter) Options() Options {
	return p.options
}

func (p *Presenter) build(doc snapshot.Doc) View {
	view := View{
		SessionInvalid: doc.SessionInvalid(),
		Time:           DisconnectedText,
		Flow:           p.renderer.Update(FlowData(doc, p.options.Labels)),
		Mode:           doc.StringOr("", "ess", "mode"),
		Detail:         p.detail(doc),
	}

	if view.Mode == "manual" {
		view.Frame = FrameManual
		if doc.ManualAuth() {
			view.Frame = FrameManualAuth
		}
	}
	view.FrameColor = view.Frame.Color()

	if ts, ok := doc.String("ess", "time"); ok {
		if len(ts) > 11 {
			view.Time = ts[11:]
		} else {
			view.Time = ""
		}
	}

	if opt, ok := doc.Text("ess", "setting"); ok {
		view.Option = opt
	}
	return view
}

func (p *Presenter) detail(doc snapshot.Doc) Detail {
	ess := doc.Object("ess")
	meter := doc.Object("meterhub")
	mp := doc.Object("multiplus")
	bms := doc.Object("bms")

	mode, hasMode := ess.String("mode")
	modes := make([]ModeButton, 0, len(p.options.Modes))
	for _, m := range p.options.Modes {
		modes = append(modes, ModeButton{Mode: m, Active: hasMode && m == mode})
	}

	d := Detail{
		Modes: modes,
		Errors: TitleErrors{
			Meterhub:  meter.Truthy("error"),
			Multiplus: mp.Truthy("error"),
			BMS:       bms.Truthy("error"),
		},
		ShowReset: ess.StringOr("", "state") == "error",
		ESS: ESSValues{
			SetP:  FormatValue(ess.FloatPtr("set_p"), " W", 0),
			Mode:  ess.StringOr("?", "mode"),
			State: ess.StringOr("?", "state"),
		},
		Meter: MeterValues{
			PV:   FormatValue(meter.FloatPtr("pv_p"), " W", 0),
			Grid: FormatValue(meter.FloatPtr("grid_p"), " W", 0),
			Home: FormatValue(meter.FloatPtr("home_p"), " W", 0),
			Bat:  FormatValue(meter.FloatPtr("bat_p"), " W", 0),
		},
		Multiplus: MultiplusValues{
			State:  mp.StringOr("--", "state"),
			InvP:   FormatValue(mp.FloatPtr("inv_p"), " W", 0),
			BatP:   FormatValue(mp.FloatPtr("bat_p"), " W", 0),
			BatU:   FormatValue(mp.FloatPtr("bat_u"), " V", 1),
			BatI:   FormatValue(mp.FloatPtr("bat_i"), " A", 1),
			MainsU: FormatValue(mp.FloatPtr("mains_u"), " V", 1),
			MainsI: FormatValue(mp.FloatPtr("mains_i"), " A", 1),
		},
		Packs:      packs(bms),
		ShowManual: doc.ManualAuth(),
	}
	if p.options.EnableCar {
		d.Meter.Car = FormatValue(meter.FloatPtr("car_p"), " W", 0)
	}
	if p.options.EnableHeat {
		d.Meter.Heat = FormatValue(meter.FloatPtr("heat_p"), " W", 0)
	}
	return d
}

// packs builds one row per entry of bms.u_pack
func packs(bms snapshot.Doc) []PackValues {
	n := bms.Len("u_pack")
	rows := make([]PackValues, 0, n)
	at := func(key string, i int) *float64 {
		if v, ok := bms.FloatAt(i, key); ok {
			return &v
		}
		return nil
	}

	for i := 0; i < n; i++ {
		u := at("u_pack", i)
		c := at("i_pack", i)
		var power *float64
		if u != nil && c != nil {
			v := *u * *c
			power = &v
		}
		rows = append(rows, PackValues{
			SOC:   FormatValue(at("soc_pack", i), "%", 0),
			P:     FormatValue(power, "W", 0),
			U:     FormatValue(u, "V", 2),
			I:     FormatValue(c, "A", 1),
			T:     FormatValue(at("t_pack", i), "°C", 0),
			Cycle: FormatValue(at("cycle_pack", i), "x", 0),
		})
	}
	return rows
}
