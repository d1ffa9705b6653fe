package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMode is returned for modes the backend does not accept
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidCommand is returned for manual commands other than wakeup/sleep
	ErrInvalidCommand = errors.New("invalid manual command")
	// ErrLoginFailed is returned when the backend rejects the password
	ErrLoginFailed = errors.New("login failed")
)

// Operating modes accepted by the backend
const (
	ModeOff    = "off"
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Manual commands for the inverter
const (
	CmdWakeup = "wakeup"
	CmdSleep  = "sleep"
)

// SessionCookie is the cookie the backend uses to identify a client
const SessionCookie = "session"

// ValidMode reports whether mode is one of off, auto or manual
func ValidMode(mode string) bool {
	switch mode {
	case ModeOff, ModeAuto, ModeManual:
		return true
	}
	return false
}

// ValidCommand reports whether cmd is a known manual command
func ValidCommand(cmd string) bool {
	return cmd == CmdWakeup || cmd == CmdSleep
}

// ManualRequest is the body of a state poll while this client holds manual
// authority. Positive power charges the battery, negative feeds.
type ManualRequest struct {
	ManualSetP float64 `json:"manual_set_p"`
	ManualCmd  string  `json:"manual_cmd,omitempty"`
}

// SetRequest is a one-shot command. Exactly one field is set; use the
// constructors.
type SetRequest struct {
	Option     *int    `json:"option,omitempty"`
	Mode       *string `json:"mode,omitempty"`
	ResetError *bool   `json:"reset_error,omitempty"`
}

// SetOption selects the parameter set with the given index
func SetOption(index int) SetRequest {
	return SetRequest{Option: &index}
}

// SetMode switches the operating mode
func SetMode(mode string) (SetRequest, error) {
	if !ValidMode(mode) {
		return SetRequest{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return SetRequest{Mode: &mode}, nil
}

// ResetError clears the controller error state
func ResetError() SetRequest {
	t := true
	return SetRequest{ResetError: &t}
}

// String describes the request for logging
func (r SetRequest) String() string {
	switch {
	case r.Option != nil:
		return fmt.Sprintf("option=%d", *r.Option)
	case r.Mode != nil:
		return "mode=" + *r.Mode
	case r.ResetError != nil:
		return "reset_error"
	default:
		return "empty"
	}
}

func (r SetRequest) validate() error {
	n := 0
	if r.Option != nil {
		n++
	}
	if r.Mode != nil {
		if !ValidMode(*r.Mode) {
			return fmt.Errorf("%w: %q", ErrInvalidMode, *r.Mode)
		}
		n++
	}
	if r.ResetError != nil {
		if !*r.ResetError {
			return fmt.Errorf("reset_error must be true")
		}
		n++
	}
	if n != 1 {
		return fmt.Errorf("set request needs exactly one field, got %d", n)
	}
	return nil
}
