package flow

import (
	"sync"

	"go.uber.org/zap"
)

// IconState is the visual status of a row icon. Exactly one applies.
type IconState string

const (
	IconEnabled  IconState = "enable"
	IconDisabled IconState = "disable"
	IconError    IconState = "error"
)

// Class returns the CSS class for the state
func (s IconState) Class() string {
	return "pft-fill-" + string(s)
}

// BadgeState is the style of the wallbox amperage badge
type BadgeState string

const (
	BadgeNone BadgeState = ""
	BadgeOn   BadgeState = "on"
	BadgeOff  BadgeState = "off"
)

// RowLayout is the static part of a table row
type RowLayout struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"type"`
	Icon    string `json:"icon"`
	Wallbox bool   `json:"wallbox"`
}

// SegmentLayout is the static part of a bar segment
type SegmentLayout struct {
	ID   string `json:"id"`
	Kind Kind   `json:"type"`
	Icon string `json:"icon"`
}

// BarLayout is the static part of a summary bar
type BarLayout struct {
	Group    BarGroup        `json:"group"`
	Segments []SegmentLayout `json:"segments"`
}

// Layout is the structure built once at construction time
type Layout struct {
	Rows []RowLayout `json:"rows"`
	Bars []BarLayout `json:"bars"`
}

// WallboxView is the decoration state of a wallbox row
type WallboxView struct {
	// PVReady selects sun (true) or cloud (false). nil means it has never
	// been reported and neither icon is forced.
	PVReady *bool      `json:"pv_ready"`
	Badge   BadgeState `json:"badge"`
	Amp     string     `json:"amp"`
}

// RowView is the dynamic state of a table row
type RowView struct {
	ID      string       `json:"id"`
	Arrow   ArrowView    `json:"arrow"`
	Power   string       `json:"power"`
	Info    string       `json:"info"`
	Subline string       `json:"subline"`
	Icon    IconState    `json:"icon"`
	Wallbox *WallboxView `json:"wallbox,omitempty"`
}

// SegmentView is the dynamic state of a bar segment
type SegmentView struct {
	ID    string `json:"id"`
	Width int    `json:"width"`
}

// BarView is the dynamic state of a summary bar
type BarView struct {
	Group    BarGroup      `json:"group"`
	Segments []SegmentView `json:"segments"`
}

// View is everything an update changes on screen
type View struct {
	Rows []RowView `json:"rows"`
	Bars []BarView `json:"bars"`
}

// Renderer turns data snapshots into views for a fixed configuration
type Renderer struct {
	config Config
	layout Layout
	logger *zap.Logger

	mu      sync.Mutex
	pvReady map[string]bool // last explicit wallbox_pvready per row
}

// NewRenderer validates the configuration and builds the static layout
func NewRenderer(config Config, logger *zap.Logger) (*Renderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Renderer{
		config:  config,
		logger:  logger.Named("flow"),
		pvReady: make(map[string]bool),
	}

	for _, n := range config.Nodes {
		r.layout.Rows = append(r.layout.Rows, RowLayout{
			ID:      n.ID,
			Kind:    n.Kind,
			Icon:    iconFor(n.Kind, n.Icon),
			Wallbox: n.Wallbox,
		})
	}

	for _, group := range BarGroups {
		entries, ok := config.Bars[group]
		if !ok {
			continue
		}
		bar := BarLayout{Group: group}
		for _, e := range entries {
			bar.Segments = append(bar.Segments, SegmentLayout{
				ID:   e.ID,
				Kind: e.Kind,
				Icon: iconFor(e.Kind, e.Icon),
			})
		}
		r.layout.Bars = append(r.layout.Bars, bar)
	}

	r.logger.Debug("Flow layout built",
		zap.Int("rows", len(r.layout.Rows)),
		zap.Int("bars", len(r.layout.Bars)))

	return r, nil
}

// Layout returns the static structure
func (r *Renderer) Layout() Layout {
	return r.layout
}

// Config returns the configuration the renderer was built with
func (r *Renderer) Config() Config {
	return r.config
}

// Update computes the view for a snapshot. A nil snapshot renders every row
// with placeholder text and no arrow.
func (r *Renderer) Update(data Data) View {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := View{Rows: make([]RowView, 0, len(r.config.Nodes))}

	for _, node := range r.config.Nodes {
		view.Rows = append(view.Rows, r.updateRow(node, data.Get(node.ID)))
	}

	for _, bar := range r.layout.Bars {
		widths := BarWidths(r.config.Bars[bar.Group], data)
		bv := BarView{Group: bar.Group, Segments: make([]SegmentView, len(bar.Segments))}
		for i, seg := range bar.Segments {
			bv.Segments[i] = SegmentView{ID: seg.ID, Width: widths[i]}
		}
		view.Bars = append(view.Bars, bv)
	}

	return view
}

// Reset forgets the sticky wallbox state, as a freshly loaded page would
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.pvReady)
}

func (r *Renderer) updateRow(node Node, d NodeData) RowView {
	row := RowView{
		ID:      node.ID,
		Arrow:   Arrow(d.power() * signOf(node.Sign)),
		Power:   d.powerText(),
		Info:    deref(d.Info),
		Subline: deref(d.Subline),
		Icon:    d.iconState(),
	}

	if !node.Wallbox {
		return row
	}

	if d.WallboxPVReady != nil {
		r.pvReady[node.ID] = *d.WallboxPVReady
	}
	wb := &WallboxView{Amp: deref(d.WallboxAmp)}
	if v, ok := r.pvReady[node.ID]; ok {
		wb.PVReady = Bool(v)
	}
	if d.WallboxStop != nil {
		if *d.WallboxStop {
			wb.Badge = BadgeOff
		} else {
			wb.Badge = BadgeOn
		}
	}
	row.Wallbox = wb

	return row
}
