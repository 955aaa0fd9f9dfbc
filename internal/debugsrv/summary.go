package debugsrv

import (
	"fmt"

	"github.com/twistedxcom/termina/internal/osc"
)

// detailCap keeps oversized payloads (clipboard transfers, mostly) from
// ballooning the event stream.
const detailCap = 128

// Summarize renders a decoded command as a stream event. It copies what it
// needs, so the event stays valid after the parser is reset.
func Summarize(cmd osc.Command) Event {
	switch c := cmd.(type) {
	case *osc.WindowTitle:
		return Event{Kind: "window_title", Detail: clip(c.Title)}
	case *osc.WindowIcon:
		return Event{Kind: "window_icon", Detail: clip(c.Icon)}
	case *osc.PromptStart:
		return Event{Kind: "prompt_start", Detail: clip(c.AID)}
	case *osc.PromptEnd:
		return Event{Kind: "prompt_end"}
	case *osc.EndOfInput:
		return Event{Kind: "end_of_input"}
	case *osc.EndOfCommand:
		if c.HasExitCode {
			return Event{Kind: "end_of_command", Detail: fmt.Sprintf("exit=%d", c.ExitCode)}
		}
		return Event{Kind: "end_of_command"}
	case *osc.ClipboardContents:
		return Event{Kind: "clipboard", Detail: fmt.Sprintf("kind=%c len=%d", c.Kind, len(c.Data))}
	case *osc.ReportPwd:
		return Event{Kind: "report_pwd", Detail: clip(c.Value)}
	case *osc.MouseShape:
		return Event{Kind: "mouse_shape", Detail: clip(c.Value)}
	case *osc.SetColor:
		return Event{Kind: "set_color", Detail: fmt.Sprintf("%s %s", targetName(c.Target), clip(c.Value))}
	case *osc.QueryColor:
		return Event{Kind: "query_color", Detail: targetName(c.Target)}
	case *osc.ResetColor:
		return Event{Kind: "reset_color", Detail: targetName(osc.ColorTarget{Kind: c.Kind})}
	case *osc.Notification:
		return Event{Kind: "notification", Detail: clip(c.Title)}
	default:
		return Event{Kind: "unknown"}
	}
}

func targetName(t osc.ColorTarget) string {
	switch t.Kind {
	case osc.ColorForeground:
		return "foreground"
	case osc.ColorBackground:
		return "background"
	case osc.ColorCursor:
		return "cursor"
	default:
		return fmt.Sprintf("palette[%d]", t.Index)
	}
}

func clip(b []byte) string {
	if len(b) > detailCap {
		return string(b[:detailCap]) + "..."
	}
	return string(b)
}
