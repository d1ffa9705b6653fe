package dashboard

import "energydash/internal/flow"

// Frame marks the manual-mode border around the dashboard
type Frame string

const (
	FrameNone       Frame = ""
	FrameManual     Frame = "manual"      // manual mode held by another client
	FrameManualAuth Frame = "manual-auth" // manual mode held by this client
)

// Color returns the border color of the frame, "" for none
func (f Frame) Color() string {
	switch f {
	case FrameManualAuth:
		return "#ec3030"
	case FrameManual:
		return "#fda042"
	default:
		return ""
	}
}

// DisconnectedText replaces the clock when no snapshot is available
const DisconnectedText = "DISCONNECTED"

// View is everything the page shows for one snapshot
type View struct {
	SessionInvalid bool      `json:"session_invalid"`
	Frame          Frame     `json:"frame"`
	FrameColor     string    `json:"frame_color"`
	Time           string    `json:"time"`
	Flow           flow.View `json:"flow"`
	Option         string    `json:"option"`
	Mode           string    `json:"mode"`
	Detail         Detail    `json:"detail"`
}

// ModeButton is one entry of the mode selector
type ModeButton struct {
	Mode   string `json:"mode"`
	Active bool   `json:"active"`
}

// TitleErrors flags subsystems that report an error
type TitleErrors struct {
	Meterhub  bool `json:"meterhub"`
	Multiplus bool `json:"multiplus"`
	BMS       bool `json:"bms"`
}

type ESSValues struct {
	SetP  string `json:"set_p"`
	Mode  string `json:"mode"`
	State string `json:"state"`
}

// MeterValues are the meter readings. Car and Heat stay empty when the
// respective feature is disabled.
type MeterValues struct {
	PV   string `json:"pv"`
	Grid string `json:"grid"`
	Home string `json:"home"`
	Bat  string `json:"bat"`
	Car  string `json:"car,omitempty"`
	Heat string `json:"heat,omitempty"`
}

type MultiplusValues struct {
	State  string `json:"state"`
	InvP   string `json:"inv_p"`
	BatP   string `json:"bat_p"`
	BatU   string `json:"bat_u"`
	BatI   string `json:"bat_i"`
	MainsU string `json:"mains_u"`
	MainsI string `json:"mains_i"`
}

// PackValues is one battery pack row
type PackValues struct {
	SOC   string `json:"soc"`
	P     string `json:"p"`
	U     string `json:"u"`
	I     string `json:"i"`
	T     string `json:"t"`
	Cycle string `json:"cycle"`
}

// Detail is the detail panel
type Detail struct {
	Modes      []ModeButton    `json:"modes"`
	Errors     TitleErrors     `json:"errors"`
	ShowReset  bool            `json:"show_reset"`
	ESS        ESSValues       `json:"ess"`
	Meter      MeterValues     `json:"meter"`
	Multiplus  MultiplusValues `json:"multiplus"`
	Packs      []PackValues    `json:"packs"`
	ShowManual bool            `json:"show_manual"`
}
