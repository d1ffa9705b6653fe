package dashboard

import (
	"energydash/internal/flow"
	"energydash/internal/snapshot"

	"github.com/shopspring/decimal"
)

// PVLabels name the two PV strings shown in the pv subline
type PVLabels struct {
	First  string `yaml:"first"`
	Second string `yaml:"second"`
}

// DefaultPVLabels are the string names of the reference installation
func DefaultPVLabels() PVLabels {
	return PVLabels{First: "Süd", Second: "Nord"}
}

// FlowData maps a backend state document onto the flow renderer's node
// data. A nil document yields nodes with no values, except for the fields
// whose fallback text is itself meaningful (pv subline, soc placeholder,
// wallbox amperage placeholder).
func FlowData(doc snapshot.Doc, labels PVLabels) flow.Data {
	meter := doc.Object("meterhub")

	return flow.Data{
		"pv": {
			Power:   meter.FloatPtr("pv_p"),
			Subline: flow.String(pvSubline(meter, labels)),
		},
		"home": {Power: meter.FloatPtr("home_p")},
		"bat": {
			Power:   meter.FloatPtr("bat_p"),
			Error:   flow.Bool(doc.StringOr("", "ess", "state") == "error"),
			Info:    flow.String(socText(doc)),
			Subline: doc.StringPtr("ess", "info"),
		},
		"car": {
			Power:          meter.FloatPtr("car_p"),
			Disable:        flow.Bool(!meter.Truthy("car_plug")),
			Info:           flow.String(energyText(meter)),
			Subline:        meter.StringPtr("car_info"),
			WallboxPVReady: meter.BoolPtr("car_pv_ready"),
			WallboxStop:    meter.BoolPtr("car_stop"),
			WallboxAmp:     flow.String(ampText(meter)),
		},
		"heat": {Power: meter.FloatPtr("heat_p")},
		"grid": {Power: meter.FloatPtr("grid_p")},
	}
}

func pvSubline(meter snapshot.Doc, labels PVLabels) string {
	text := func(key string) string {
		if s, ok := meter.Text(key); ok {
			return s
		}
		return "---"
	}
	return labels.First + ": " + text("pv1_p") + " W  " + labels.Second + ": " + text("pv2_p") + " W"
}

func socText(doc snapshot.Doc) string {
	if !doc.Truthy("bms", "soc") {
		return "-- %"
	}
	soc, _ := doc.Text("bms", "soc")
	return soc + " %"
}

// energyText prints the energy charged in the current session in kWh
func energyText(meter snapshot.Doc) string {
	wh, ok := meter.Float("car_e_cycle")
	if !ok || wh <= 0 {
		return ""
	}
	return decimal.NewFromFloat(wh).Div(decimal.NewFromInt(1000)).StringFixed(1) + " kWh"
}

func ampText(meter snapshot.Doc) string {
	if !meter.Truthy("car_phase") || !meter.Truthy("car_amp") {
		return "xxx"
	}
	phase, _ := meter.Text("car_phase")
	amp, _ := meter.Text("car_amp")
	return phase + "x" + amp + "A"
}
