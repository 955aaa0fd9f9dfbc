// Command oscinspect is an interactive decoder console. Type an OSC
// payload (the part between ESC ] and the terminator, \e and \xNN escapes
// accepted), press enter, and see what the parser makes of it. Color
// commands render a swatch so palette specs can be eyeballed.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/twistedxcom/termina/internal/dispatcher"
	"github.com/twistedxcom/termina/internal/osc"
)

const historyLimit = 20

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	kindStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	fieldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// entry is one decoded (or rejected) payload shown in the scrollback.
type entry struct {
	input    string
	rendered string
}

type model struct {
	input   textinput.Model
	history []entry
	width   int
	output  *termenv.Output
}

func newModel() model {
	ti := textinput.New()
	ti.Placeholder = `0;window title  or  4;17;rgb:aa/bb/cc`
	ti.Prompt = promptStyle.Render("osc> ")
	ti.CharLimit = 512
	ti.Width = 60
	ti.Focus()

	return model{
		input:  ti,
		width:  80,
		output: termenv.NewOutput(os.Stdout),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			m.history = append(m.history, entry{
				input:    raw,
				rendered: m.decode(raw),
			})
			if len(m.history) > historyLimit {
				m.history = m.history[len(m.history)-historyLimit:]
			}
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// decode runs one payload through a fresh parser and renders the result.
func (m model) decode(raw string) string {
	payload, err := unescape(raw)
	if err != nil {
		return errorStyle.Render(err.Error())
	}

	// A trailing BEL or ESC \ in the input picks the terminator; the
	// payload fed to the parser stops before it.
	terminator := osc.TerminatorBEL
	if n := len(payload); n >= 2 && payload[n-2] == 0x1b && payload[n-1] == '\\' {
		terminator = osc.TerminatorST
		payload = payload[:n-2]
	} else if n >= 1 && payload[n-1] == 0x07 {
		payload = payload[:n-1]
	}

	var p osc.Parser
	for _, b := range payload {
		p.Next(b)
	}
	cmd, ok := p.End(byte(terminator))
	if !ok {
		return errorStyle.Render("rejected: not a recognized OSC sequence")
	}
	return m.render(cmd)
}

func (m model) render(cmd osc.Command) string {
	switch c := cmd.(type) {
	case *osc.WindowTitle:
		return line("WindowTitle", "title", string(c.Title))
	case *osc.WindowIcon:
		return line("WindowIcon", "icon", string(c.Icon))
	case *osc.PromptStart:
		fields := []string{field("kind", promptKind(c.Kind))}
		if len(c.AID) > 0 {
			fields = append(fields, field("aid", string(c.AID)))
		}
		if c.Redraw {
			fields = append(fields, field("redraw", "true"))
		}
		return kindStyle.Render("PromptStart") + " " + strings.Join(fields, " ")
	case *osc.PromptEnd:
		return kindStyle.Render("PromptEnd")
	case *osc.EndOfInput:
		return kindStyle.Render("EndOfInput")
	case *osc.EndOfCommand:
		if c.HasExitCode {
			return line("EndOfCommand", "exit", fmt.Sprintf("%d", c.ExitCode))
		}
		return kindStyle.Render("EndOfCommand")
	case *osc.ClipboardContents:
		return kindStyle.Render("ClipboardContents") + " " +
			field("kind", string(c.Kind)) + " " +
			field("base64", string(c.Data))
	case *osc.ReportPwd:
		return line("ReportPwd", "value", string(c.Value))
	case *osc.MouseShape:
		return line("MouseShape", "shape", string(c.Value))
	case *osc.SetColor:
		return kindStyle.Render("SetColor") + " " +
			field("target", targetName(c.Target)) + " " +
			field("value", string(c.Value)) + " " +
			m.swatch(c.Value)
	case *osc.QueryColor:
		return kindStyle.Render("QueryColor") + " " +
			field("target", targetName(c.Target)) + " " +
			field("terminator", c.Terminator.String())
	case *osc.ResetColor:
		out := kindStyle.Render("ResetColor") + " " + field("kind", kindName(c.Kind))
		if len(c.Value) > 0 {
			out += " " + field("indices", string(c.Value))
		}
		return out
	case *osc.Notification:
		return kindStyle.Render("Notification") + " " +
			field("title", string(c.Title)) + " " +
			field("body", string(c.Body))
	default:
		return kindStyle.Render(fmt.Sprintf("%T", cmd))
	}
}

// swatch renders a colored block for a parseable color spec.
func (m model) swatch(spec []byte) string {
	rgb, ok := dispatcher.ParseColor(spec)
	if !ok {
		return errorStyle.Render("(unparseable)")
	}
	hex := fmt.Sprintf("#%02x%02x%02x", rgb.R, rgb.G, rgb.B)
	block := m.output.String("      ").Background(termenv.RGBColor(hex)).String()
	return block + " " + fieldStyle.Render(hex)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("oscinspect"))
	b.WriteString(helpStyle.Render("  enter decodes, esc quits"))
	b.WriteString("\n\n")

	for _, e := range m.history {
		in := runewidth.Truncate(e.input, m.width-4, "…")
		b.WriteString(fieldStyle.Render("» " + in))
		b.WriteString("\n  ")
		b.WriteString(e.rendered)
		b.WriteString("\n")
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}

func line(kind, name, value string) string {
	return kindStyle.Render(kind) + " " + field(name, value)
}

func field(name, value string) string {
	v := runewidth.Truncate(value, 48, "…")
	return fieldStyle.Render(name+"=") + v
}

func promptKind(k osc.PromptKind) string {
	switch k {
	case osc.PromptInitial:
		return "initial"
	case osc.PromptRight:
		return "right"
	case osc.PromptContinuation:
		return "continuation"
	default:
		return "primary"
	}
}

func targetName(t osc.ColorTarget) string {
	if t.Kind == osc.ColorPalette {
		return fmt.Sprintf("palette[%d]", t.Index)
	}
	return kindName(t.Kind)
}

func kindName(k osc.ColorKind) string {
	switch k {
	case osc.ColorForeground:
		return "foreground"
	case osc.ColorBackground:
		return "background"
	case osc.ColorCursor:
		return "cursor"
	default:
		return "palette"
	}
}

// unescape expands \e, \a, \\, \xNN and \0NN so terminator bytes and
// control characters can be typed.
func unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'e':
			out = append(out, 0x1b)
		case 'a':
			out = append(out, 0x07)
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("oscinspect: truncated \\x escape")
			}
			hi, okH := hexVal(s[i+1])
			lo, okL := hexVal(s[i+2])
			if !okH || !okL {
				return nil, fmt.Errorf("oscinspect: bad \\x escape %q", s[i+1:i+3])
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, fmt.Errorf("oscinspect: unknown escape \\%c", s[i])
		}
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func main() {
	flag.Parse()
	p := tea.NewProgram(newModel())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "oscinspect:", err)
		os.Exit(1)
	}
}
