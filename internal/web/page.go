package web

import (
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"energydash/internal/dashboard"
	"energydash/internal/flow"

	"github.com/chasefleming/elem-go"
	"github.com/chasefleming/elem-go/attrs"
)

//go:embed assets/style.css
var cssContent string

//go:embed assets/app.js
var jsContent string

// PageOptions are the installation specific parts of the page
type PageOptions struct {
	Title      string
	Version    string
	Settings   []string
	Modes      []string
	BMSPacks   int
	EnableCar  bool
	EnableHeat bool
	// MaxManualPower is the upper bound of both manual sliders in watt
	MaxManualPower int
	// ReloadDelay is how long the page shows the invalid session notice
	// before it reloads itself
	ReloadDelay time.Duration
}

const defaultReloadDelay = 2 * time.Second

// RenderPage builds the dashboard page. Only the static structure is
// rendered here; values arrive over the websocket.
func RenderPage(layout flow.Layout, opts PageOptions) string {
	if opts.Title == "" {
		opts.Title = "Energy"
	}
	if len(opts.Modes) == 0 {
		opts.Modes = dashboard.DefaultModes
	}
	if opts.MaxManualPower <= 0 {
		opts.MaxManualPower = 2500
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = defaultReloadDelay
	}

	page := elem.Html(attrs.Props{attrs.Lang: "de"},
		elem.Head(attrs.Props{},
			elem.Meta(attrs.Props{attrs.Charset: "utf-8"}),
			elem.Meta(attrs.Props{attrs.Name: "viewport", attrs.Content: "width=device-width, initial-scale=1"}),
			elem.Title(attrs.Props{}, elem.Text(opts.Title)),
			elem.Style(attrs.Props{}, elem.Text(cssContent)),
		),
		elem.Body(attrs.Props{},
			elem.Raw(iconSymbols),
			elem.Div(attrs.Props{attrs.ID: "container-main"},
				renderHeader(opts),
				elem.Div(attrs.Props{attrs.ID: "pflow-table"}, renderRows(layout.Rows)...),
				renderDetail(opts),
				elem.Div(attrs.Props{attrs.ID: "pflow-bar"}, renderBars(layout.Bars)...),
				elem.Div(attrs.Props{attrs.Class: "version"}, elem.Text(opts.Version)),
			),
			elem.Div(attrs.Props{
				attrs.ID:         "container-invalid",
				attrs.Style:      "display: none",
				"data-reload-ms": strconv.FormatInt(opts.ReloadDelay.Milliseconds(), 10),
			},
				elem.H2(attrs.Props{}, elem.Text("Invalid session")),
				elem.H2(attrs.Props{}, elem.Text("starting reload...")),
			),
			elem.Script(attrs.Props{}, elem.Raw(jsContent)),
		),
	)
	return "<!DOCTYPE html>" + page.Render()
}

func renderHeader(opts PageOptions) elem.Node {
	options := make([]elem.Node, 0, len(opts.Settings))
	for i, name := range opts.Settings {
		options = append(options, elem.Option(attrs.Props{attrs.Value: strconv.Itoa(i)}, elem.Text(name)))
	}

	return elem.Div(attrs.Props{attrs.Class: "header"},
		elem.Span(attrs.Props{attrs.ID: "time", attrs.Class: "time"}, elem.Text(dashboard.DisconnectedText)),
		elem.Select(attrs.Props{attrs.ID: "option-select", attrs.Class: "option-select"}, options...),
		elem.Button(attrs.Props{attrs.ID: "info-logo", attrs.Class: "info-logo", attrs.Type: "button"},
			elem.Raw(`<svg viewBox="0 0 100 100"><use href="#svg-info"/></svg>`),
		),
	)
}

func renderRows(rows []flow.RowLayout) []elem.Node {
	nodes := make([]elem.Node, 0, len(rows))
	for _, row := range rows {
		icon := []elem.Node{
			elem.Raw(fmt.Sprintf(`<svg data-id="icon" class="pft-fill-enable" viewBox="0 0 100 100"><use href="#%s"/></svg>`, row.Icon)),
		}
		if row.Wallbox {
			icon = append(icon,
				elem.Raw(`<svg data-id="wallbox-sun" class="pft-wallbox-icon" viewBox="0 0 100 100"><use href="#svg-sun"/></svg>`),
				elem.Raw(`<svg data-id="wallbox-cloud" class="pft-wallbox-icon" viewBox="0 0 100 100"><use href="#svg-cloud"/></svg>`),
				elem.Div(attrs.Props{"data-id": "wallbox-amp", attrs.Class: "pft-wallbox-amp"}),
			)
		}

		nodes = append(nodes, elem.Div(attrs.Props{"data-row": row.ID, "data-type": string(row.Kind), attrs.Class: "pft-row"},
			elem.Div(attrs.Props{attrs.Class: "pft-col-a"},
				elem.Raw(`<svg class="pft-arrow" viewBox="-50 -50 100 100"><path data-id="arrow" stroke-linecap="round" stroke-linejoin="round" fill="none"></path></svg>`),
			),
			elem.Div(attrs.Props{attrs.Class: "pft-col-b"},
				elem.Div(attrs.Props{attrs.Class: "pft-icon-container"}, icon...),
			),
			elem.Div(attrs.Props{attrs.Class: "pft-col-c"},
				elem.Span(attrs.Props{"data-id": "power", attrs.Class: "pft-power"}, elem.Text(flow.PowerPlaceholder)),
				elem.Span(attrs.Props{"data-id": "info", attrs.Class: "pft-info"}),
				elem.Div(attrs.Props{"data-id": "subline", attrs.Class: "pft-subline"}),
			),
		))
	}
	return nodes
}

func renderBars(bars []flow.BarLayout) []elem.Node {
	nodes := make([]elem.Node, 0, len(bars))
	for _, bar := range bars {
		segments := make([]elem.Node, 0, len(bar.Segments))
		for _, seg := range bar.Segments {
			segments = append(segments, elem.Div(
				attrs.Props{"data-id": seg.ID, "data-type": string(seg.Kind), attrs.Class: "pfb-progress-bar", attrs.Style: "width: 0%"},
				elem.Raw(fmt.Sprintf(`<svg viewBox="0 0 100 100"><use href="#%s"/></svg>`, seg.Icon)),
			))
		}
		nodes = append(nodes, elem.Div(attrs.Props{"data-bar": string(bar.Group), attrs.Class: "pfb-progress"}, segments...))
	}
	return nodes
}

// valueRow is a label and a cell bound to a field of the view's detail
func valueRow(label, field string) elem.Node {
	return elem.Tr(attrs.Props{},
		elem.Td(attrs.Props{}, elem.Text(label)),
		elem.Td(attrs.Props{"data-field": field, attrs.Class: "value"}),
	)
}

func renderDetail(opts PageOptions) elem.Node {
	modes := make([]elem.Node, 0, len(opts.Modes))
	for _, m := range opts.Modes {
		modes = append(modes, elem.Button(
			attrs.Props{"data-mode": m, attrs.Type: "button", attrs.Class: "btn btn-outline-primary"},
			elem.Text(m),
		))
	}

	meter := []elem.Node{
		valueRow("PV", "meter.pv"),
		valueRow("Grid", "meter.grid"),
		valueRow("Home", "meter.home"),
		valueRow("Battery", "meter.bat"),
	}
	if opts.EnableCar {
		meter = append(meter, valueRow("Car", "meter.car"))
	}
	if opts.EnableHeat {
		meter = append(meter, valueRow("Heat", "meter.heat"))
	}

	packHead := elem.Tr(attrs.Props{},
		elem.Th(attrs.Props{}, elem.Text("#")),
		elem.Th(attrs.Props{}, elem.Text("SOC")),
		elem.Th(attrs.Props{}, elem.Text("P")),
		elem.Th(attrs.Props{}, elem.Text("U")),
		elem.Th(attrs.Props{}, elem.Text("I")),
		elem.Th(attrs.Props{}, elem.Text("T")),
		elem.Th(attrs.Props{}, elem.Text("Cycles")),
	)
	packs := []elem.Node{packHead}
	for n := 0; n < opts.BMSPacks; n++ {
		cells := []elem.Node{elem.Td(attrs.Props{}, elem.Text(strconv.Itoa(n+1)))}
		for _, key := range []string{"soc", "p", "u", "i", "t", "cycle"} {
			cells = append(cells, elem.Td(attrs.Props{"data-field": fmt.Sprintf("packs.%d.%s", n, key), attrs.Class: "value"}))
		}
		packs = append(packs, elem.Tr(attrs.Props{}, cells...))
	}

	max := strconv.Itoa(opts.MaxManualPower)

	return elem.Div(attrs.Props{attrs.ID: "container-detail", attrs.Style: "display: none"},
		elem.Div(attrs.Props{attrs.Class: "modes"}, modes...),
		elem.Button(attrs.Props{attrs.ID: "btn-error-reset", attrs.Type: "button", attrs.Class: "btn btn-danger", attrs.Style: "display: none"},
			elem.Text("Reset error"),
		),
		elem.Div(attrs.Props{attrs.ID: "container-manual", attrs.Style: "display: none"},
			elem.Label(attrs.Props{attrs.For: "manual-charge-slider"},
				elem.Text("Charge "), elem.Span(attrs.Props{attrs.ID: "manual-charge-info"}, elem.Text("0")), elem.Text(" W"),
			),
			elem.Input(attrs.Props{attrs.ID: "manual-charge-slider", attrs.Type: "range", "min": "0", "max": max, "step": "50", attrs.Value: "0"}),
			elem.Label(attrs.Props{attrs.For: "manual-feed-slider"},
				elem.Text("Feed "), elem.Span(attrs.Props{attrs.ID: "manual-feed-info"}, elem.Text("0")), elem.Text(" W"),
			),
			elem.Input(attrs.Props{attrs.ID: "manual-feed-slider", attrs.Type: "range", "min": "0", "max": max, "step": "50", attrs.Value: "0"}),
			elem.Button(attrs.Props{attrs.ID: "btn-manual-wakeup", attrs.Type: "button", attrs.Class: "btn"}, elem.Text("Wakeup")),
			elem.Button(attrs.Props{attrs.ID: "btn-manual-sleep", attrs.Type: "button", attrs.Class: "btn"}, elem.Text("Sleep")),
		),
		elem.Div(attrs.Props{attrs.ID: "ess-title", attrs.Class: "title"}, elem.Text("ESS")),
		elem.Table(attrs.Props{},
			valueRow("Setpoint", "ess.set_p"),
			valueRow("Mode", "ess.mode"),
			valueRow("State", "ess.state"),
		),
		elem.Div(attrs.Props{attrs.ID: "meterhub-title", attrs.Class: "title", "data-error": "meterhub"}, elem.Text("Meter")),
		elem.Table(attrs.Props{}, meter...),
		elem.Div(attrs.Props{attrs.ID: "mp2-title", attrs.Class: "title", "data-error": "multiplus"}, elem.Text("Multiplus")),
		elem.Table(attrs.Props{},
			valueRow("State", "multiplus.state"),
			valueRow("Inverter", "multiplus.inv_p"),
			valueRow("Battery", "multiplus.bat_p"),
			valueRow("Battery U", "multiplus.bat_u"),
			valueRow("Battery I", "multiplus.bat_i"),
			valueRow("Mains U", "multiplus.mains_u"),
			valueRow("Mains I", "multiplus.mains_i"),
		),
		elem.Div(attrs.Props{attrs.ID: "bms-title", attrs.Class: "title", "data-error": "bms"}, elem.Text("BMS")),
		elem.Table(attrs.Props{attrs.Class: "bms"}, packs...),
	)
}
