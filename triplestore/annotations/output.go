package annotations

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter, enabling color when w is a terminal.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements Handler - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case StoreOpened:
		return fmt.Sprintf("%s %s Store opened at %v", latency, f.colorize("===", color.FgGreen), event.Data["path"])

	case StoreClosed:
		return fmt.Sprintf("%s %s Store closed", latency, f.colorize("===", color.FgGreen))

	case DatabaseCreated:
		return fmt.Sprintf("%s Created database %s", latency, f.colorize(fmt.Sprint(event.Data["database"]), color.FgCyan))

	case DatabaseDeleted:
		return fmt.Sprintf("%s Deleted database %s", latency, f.colorize(fmt.Sprint(event.Data["database"]), color.FgCyan))

	case LayerCommitted:
		return fmt.Sprintf("%s Committed layer %s (+%v -%v, %v new terms)",
			latency,
			f.colorize(fmt.Sprint(event.Data["layer"]), color.FgBlue),
			event.Data["additions"],
			event.Data["removals"],
			event.Data["terms"])

	case LayerLoaded:
		return fmt.Sprintf("%s Loaded layer %s", latency, f.colorize(fmt.Sprint(event.Data["layer"]), color.FgBlue))

	case HeadAdvanced:
		return fmt.Sprintf("%s %s %s → %s (version %v)",
			latency,
			f.colorize("head", color.FgGreen),
			event.Data["database"],
			f.colorize(fmt.Sprint(event.Data["layer"]), color.FgBlue),
			event.Data["version"])

	case HeadRejected:
		return fmt.Sprintf("%s %s %s rejected %s (head moved)",
			latency,
			f.colorize("⚠️", color.FgYellow),
			event.Data["database"],
			f.colorize(fmt.Sprint(event.Data["layer"]), color.FgBlue))

	case ErrorBackend:
		return fmt.Sprintf("%s %s %v: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["op"],
			event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}
