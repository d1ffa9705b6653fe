// Package console is an interactive operator prompt for running the
// dashboard headless: it sends the same commands as the page buttons and
// prints the latest view.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"energydash/internal/dashboard"

	"github.com/chzyer/readline"
	"go.uber.org/zap"
)

// Commander is the part of the controller the console drives
type Commander interface {
	SetMode(ctx context.Context, mode string) error
	SetOption(ctx context.Context, index int) error
	ResetError(ctx context.Context) error
	SetChargeSlider(watts float64)
	SetFeedSlider(watts float64)
	RequestCommand(cmd string) error
}

// ViewSource provides the latest view
type ViewSource interface {
	Latest() (dashboard.View, bool)
}

// ErrUnknownCommand is returned for input the console does not understand
var ErrUnknownCommand = errors.New("unknown command")

// Console executes operator commands
type Console struct {
	commander Commander
	views     ViewSource
	logger    *zap.Logger
	out       io.Writer
}

// New creates a console writing its output to out
func New(commander Commander, views ViewSource, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		commander: commander,
		views:     views,
		logger:    logger,
		out:       out,
	}
}

// Execute runs a single command line
func (c *Console) Execute(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "mode":
		if len(parts) != 2 {
			return fmt.Errorf("usage: mode <off|auto|manual>")
		}
		return c.commander.SetMode(ctx, parts[1])

	case "option":
		if len(parts) != 2 {
			return fmt.Errorf("usage: option <index>")
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("option index must be a number: %w", err)
		}
		return c.commander.SetOption(ctx, index)

	case "reset":
		return c.commander.ResetError(ctx)

	case "charge", "feed":
		if len(parts) != 2 {
			return fmt.Errorf("usage: %s <watts>", parts[0])
		}
		watts, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("power must be a number: %w", err)
		}
		if parts[0] == "charge" {
			c.commander.SetChargeSlider(watts)
		} else {
			c.commander.SetFeedSlider(watts)
		}
		return nil

	case "wakeup", "sleep":
		return c.commander.RequestCommand(parts[0])

	case "show":
		c.show()
		return nil

	case "help":
		c.help()
		return nil

	default:
		return fmt.Errorf("%w: %s (try 'help')", ErrUnknownCommand, parts[0])
	}
}

func (c *Console) show() {
	view, ok := c.views.Latest()
	if !ok {
		fmt.Fprintln(c.out, "No state received yet")
		return
	}

	fmt.Fprintf(c.out, "%s  mode=%s option=%s", view.Time, view.Mode, view.Option)
	if view.Frame != dashboard.FrameNone {
		fmt.Fprintf(c.out, " [%s]", view.Frame)
	}
	fmt.Fprintln(c.out)

	for _, row := range view.Flow.Rows {
		fmt.Fprintf(c.out, "  %-6s %10s  %s", row.ID, row.Power, row.Info)
		if row.Subline != "" {
			fmt.Fprintf(c.out, "  (%s)", row.Subline)
		}
		fmt.Fprintln(c.out)
	}

	errs := view.Detail.Errors
	if errs.Meterhub || errs.Multiplus || errs.BMS {
		fmt.Fprintf(c.out, "  errors: meterhub=%t multiplus=%t bms=%t\n", errs.Meterhub, errs.Multiplus, errs.BMS)
	}
}

func (c *Console) help() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  mode <off|auto|manual>  - Switch the operating mode")
	fmt.Fprintln(c.out, "  option <index>          - Select a setting by index")
	fmt.Fprintln(c.out, "  reset                   - Reset the error state")
	fmt.Fprintln(c.out, "  charge <watts>          - Manual charge power (clears feed)")
	fmt.Fprintln(c.out, "  feed <watts>            - Manual feed power (clears charge)")
	fmt.Fprintln(c.out, "  wakeup | sleep          - Queue a manual command for the next poll")
	fmt.Fprintln(c.out, "  show                    - Print the latest view")
	fmt.Fprintln(c.out, "  help                    - Show this help")
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("mode",
		readline.PcItem("off"),
		readline.PcItem("auto"),
		readline.PcItem("manual"),
	),
	readline.PcItem("option"),
	readline.PcItem("reset"),
	readline.PcItem("charge"),
	readline.PcItem("feed"),
	readline.PcItem("wakeup"),
	readline.PcItem("sleep"),
	readline.PcItem("show"),
	readline.PcItem("help"),
)

// Run reads commands until ctx is done or input ends. Ctrl+C calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "energy> ",
		HistoryFile:  historyFile(),
		AutoComplete: completer,
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.logger.Info("Console started (type 'help' for commands)")

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel()
			return nil
		}
		if err != nil {
			return nil // EOF or closed
		}

		if err := c.Execute(ctx, line); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// historyFile returns the console history path, or "" when there is no
// usable cache directory
func historyFile() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "energydash")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return ""
	}
	return filepath.Join(dir, "console_history")
}
