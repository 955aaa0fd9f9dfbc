// Package dispatcher routes decoded OSC commands to their effects: host
// callbacks (title, clipboard, notifications), color state with query
// replies, the per-screen graphics stores, and the session history
// recorder. It runs on the terminal's input loop; nothing here blocks.
package dispatcher

import (
	"encoding/base64"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/twistedxcom/termina/internal/graphics"
	"github.com/twistedxcom/termina/internal/history"
	"github.com/twistedxcom/termina/internal/logging"
	"github.com/twistedxcom/termina/internal/osc"
)

var dispatchLog = logging.ForComponent(logging.CompDispatch)

// Callbacks are the host-side effects of OSC commands. Any callback may be
// nil; the command is then decoded and dropped.
type Callbacks struct {
	SetTitle      func(title string)
	SetIcon       func(icon string)
	SetPwd        func(path string)
	SetMouseShape func(shape string)

	// ClipboardSet receives decoded clipboard bytes. ClipboardGet answers
	// an OSC 52 query; returning false suppresses the reply.
	ClipboardSet func(kind byte, data []byte)
	ClipboardGet func(kind byte) ([]byte, bool)

	// Notify shows a desktop notification.
	Notify func(title, body string)

	// Reply writes a response sequence back to the client pty.
	Reply func(seq []byte)
}

// ShellState is where the session is in the prompt/command cycle, per the
// semantic prompt markers.
type ShellState int

const (
	ShellUnknown ShellState = iota
	ShellPrompt             // 133;A seen
	ShellInput              // 133;B seen
	ShellRunning            // 133;C seen
	ShellDone               // 133;D seen
)

// Config assembles a Dispatcher.
type Config struct {
	Callbacks Callbacks

	// Primary and Alternate are the graphics stores for the two screens.
	Primary   *graphics.Store
	Alternate *graphics.Store

	// Recorder persists titles and directories; nil disables history.
	Recorder *history.Recorder

	// NotifyRate limits desktop notifications so a misbehaving program
	// cannot flood the host notifier. Zero means one every two seconds.
	NotifyRate  rate.Limit
	NotifyBurst int
}

// Dispatcher routes commands. Not safe for concurrent use.
type Dispatcher struct {
	cb        Callbacks
	primary   *graphics.Store
	alternate *graphics.Store
	alt       bool

	colors   *colorState
	recorder *history.Recorder
	limiter  *rate.Limiter

	shell    ShellState
	exitCode uint8
	hasExit  bool
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	limit := cfg.NotifyRate
	if limit == 0 {
		limit = rate.Every(2 * time.Second)
	}
	burst := cfg.NotifyBurst
	if burst <= 0 {
		burst = 3
	}
	return &Dispatcher{
		cb:        cfg.Callbacks,
		primary:   cfg.Primary,
		alternate: cfg.Alternate,
		colors:    newColorState(),
		recorder:  cfg.Recorder,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// ActiveStore returns the graphics store for the screen currently shown.
func (d *Dispatcher) ActiveStore() *graphics.Store {
	if d.alt && d.alternate != nil {
		return d.alternate
	}
	return d.primary
}

// SetAlternateScreen switches which store ActiveStore returns.
func (d *Dispatcher) SetAlternateScreen(on bool) { d.alt = on }

// ShellState returns the semantic-prompt position of the session.
func (d *Dispatcher) ShellState() ShellState { return d.shell }

// LastExitCode returns the exit code from the most recent 133;D carrying
// one.
func (d *Dispatcher) LastExitCode() (uint8, bool) { return d.exitCode, d.hasExit }

// Color returns the current value of a palette or dynamic color.
func (d *Dispatcher) Color(t osc.ColorTarget) RGB { return d.colors.get(t) }

// Dispatch applies one decoded command. Command data aliases the parser
// that produced it, so everything kept past this call is copied here.
func (d *Dispatcher) Dispatch(cmd osc.Command) {
	switch c := cmd.(type) {
	case *osc.WindowTitle:
		title := string(c.Title)
		if d.cb.SetTitle != nil {
			d.cb.SetTitle(title)
		}
		if d.recorder != nil {
			d.recorder.Title(title)
		}

	case *osc.WindowIcon:
		if d.cb.SetIcon != nil {
			d.cb.SetIcon(string(c.Icon))
		}

	case *osc.ReportPwd:
		d.reportPwd(c.Value)

	case *osc.MouseShape:
		if d.cb.SetMouseShape != nil {
			d.cb.SetMouseShape(string(c.Value))
		}

	case *osc.ClipboardContents:
		d.clipboard(c)

	case *osc.SetColor:
		rgb, ok := ParseColor(c.Value)
		if !ok {
			dispatchLog.Debug("unparseable color spec", slog.String("spec", string(c.Value)))
			return
		}
		d.colors.set(c.Target, rgb)

	case *osc.QueryColor:
		if d.cb.Reply != nil {
			d.cb.Reply(formatReport(c.Target, d.colors.get(c.Target), c.Terminator))
		}

	case *osc.ResetColor:
		d.resetColor(c)

	case *osc.Notification:
		if !d.limiter.Allow() {
			dispatchLog.Debug("notification rate limited", slog.String("title", string(c.Title)))
			return
		}
		if d.cb.Notify != nil {
			d.cb.Notify(string(c.Title), string(c.Body))
		}

	case *osc.PromptStart:
		d.shell = ShellPrompt
	case *osc.PromptEnd:
		d.shell = ShellInput
	case *osc.EndOfInput:
		d.shell = ShellRunning
	case *osc.EndOfCommand:
		d.shell = ShellDone
		d.exitCode, d.hasExit = c.ExitCode, c.HasExitCode
	}
}

// reportPwd decodes the OSC 7 file URL. Bare paths are accepted too since
// some tools skip the URL form.
func (d *Dispatcher) reportPwd(value []byte) {
	path := string(value)
	if u, err := url.Parse(path); err == nil && u.Scheme == "file" && u.Path != "" {
		path = u.Path
	}
	if !strings.HasPrefix(path, "/") {
		dispatchLog.Debug("ignoring non-absolute pwd report", slog.String("value", string(value)))
		return
	}
	if d.cb.SetPwd != nil {
		d.cb.SetPwd(path)
	}
	if d.recorder != nil {
		d.recorder.Dir(path)
	}
}

func (d *Dispatcher) clipboard(c *osc.ClipboardContents) {
	if len(c.Data) == 1 && c.Data[0] == '?' {
		if d.cb.ClipboardGet == nil || d.cb.Reply == nil {
			return
		}
		data, ok := d.cb.ClipboardGet(c.Kind)
		if !ok {
			return
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		reply := make([]byte, 0, len(encoded)+8)
		reply = append(reply, "\x1b]52;"...)
		reply = append(reply, c.Kind, ';')
		reply = append(reply, encoded...)
		reply = append(reply, "\x1b\\"...)
		d.cb.Reply(reply)
		return
	}

	decoded, err := base64.StdEncoding.AppendDecode(nil, c.Data)
	if err != nil {
		dispatchLog.Debug("clipboard payload is not base64", slog.Int("len", len(c.Data)))
		return
	}
	if d.cb.ClipboardSet != nil {
		d.cb.ClipboardSet(c.Kind, decoded)
	}
}

// resetColor handles 104/110/111/112. For the palette form the value is
// the raw semicolon-separated index list; empty resets every entry.
func (d *Dispatcher) resetColor(c *osc.ResetColor) {
	if c.Kind != osc.ColorPalette {
		d.colors.reset(osc.ColorTarget{Kind: c.Kind})
		return
	}
	if len(c.Value) == 0 {
		for i := 0; i < 256; i++ {
			d.colors.reset(osc.ColorTarget{Kind: osc.ColorPalette, Index: uint8(i)})
		}
		return
	}
	for _, tok := range strings.Split(string(c.Value), ";") {
		n, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			dispatchLog.Debug("bad palette reset index", slog.String("index", tok))
			continue
		}
		d.colors.reset(osc.ColorTarget{Kind: osc.ColorPalette, Index: uint8(n)})
	}
}
