package osc

// Command is a fully decoded OSC sequence. The set of implementations is
// closed: a Command is always one of the concrete types in this file.
//
// String and []byte fields on a Command alias the parser's internal capture
// buffer. They are valid only until the next call to Next or Reset on the
// parser that produced them; callers that need the data longer must copy it
// out (see the Clone methods).
type Command interface {
	command()
}

// Terminator is the byte sequence that ended an OSC string. Color queries
// echo it back so the reply matches what the client sent.
type Terminator byte

const (
	// TerminatorST is ESC \ (0x1b 0x5c).
	TerminatorST Terminator = 0x5c
	// TerminatorBEL is a lone 0x07.
	TerminatorBEL Terminator = 0x07
)

// terminatorFor maps the byte passed to End to a Terminator. Anything that
// is not BEL is treated as the final byte of ST.
func terminatorFor(b byte) Terminator {
	if b == 0x07 {
		return TerminatorBEL
	}
	return TerminatorST
}

// String returns the raw bytes to append to a reply.
func (t Terminator) String() string {
	if t == TerminatorBEL {
		return "\a"
	}
	return "\x1b\\"
}

// WindowTitle is OSC 0 and OSC 2: change the window title.
type WindowTitle struct {
	Title []byte
}

// WindowIcon is OSC 1: change the window icon label.
type WindowIcon struct {
	Icon []byte
}

// PromptKind classifies a semantic prompt (OSC 133;A k= option).
type PromptKind byte

const (
	PromptPrimary      PromptKind = 0
	PromptInitial      PromptKind = 'i'
	PromptRight        PromptKind = 'r'
	PromptContinuation PromptKind = 'c'
)

// PromptStart is OSC 133;A: the shell is about to print a prompt.
type PromptStart struct {
	// AID is the application identifier from the aid= option, or nil.
	AID []byte
	// Kind is the prompt kind from the k= option.
	Kind PromptKind
	// Redraw is false when the shell asked the terminal not to redraw the
	// prompt on resize (redraw=0). Defaults to true.
	Redraw bool
}

// PromptEnd is OSC 133;B: the prompt is done, user input begins.
type PromptEnd struct{}

// EndOfInput is OSC 133;C: user input is done, command output begins.
type EndOfInput struct{}

// EndOfCommand is OSC 133;D: the command finished.
type EndOfCommand struct {
	// ExitCode is the command's exit status, saturated to 255.
	// Valid only when HasExitCode is true; OSC 133;D without a code is legal.
	ExitCode    uint8
	HasExitCode bool
}

// ClipboardContents is OSC 52: set the clipboard, or query it when Data
// is the single byte '?'.
type ClipboardContents struct {
	// Kind selects the clipboard: 'c' (default), 'p', 's', ...
	Kind byte
	// Data is the base64 payload, or "?" for a query. Unlike every other
	// capture this one may exceed the fixed buffer; the parser spills it
	// into a growable buffer.
	Data []byte
}

// ReportPwd is OSC 7: the shell reports its working directory as a file URL.
type ReportPwd struct {
	Value []byte
}

// MouseShape is OSC 22: change the mouse pointer shape.
type MouseShape struct {
	Value []byte
}

// ColorKind identifies which color an OSC 4/10/11/12 (and the matching
// 104/110/111/112 resets) operation addresses.
type ColorKind byte

const (
	ColorPalette ColorKind = iota
	ColorForeground
	ColorBackground
	ColorCursor
)

// ColorTarget is a ColorKind plus the palette index when Kind is ColorPalette.
type ColorTarget struct {
	Kind  ColorKind
	Index uint8
}

// SetColor sets a palette entry or a dynamic color to a color spec such as
// "rgb:aa/bb/cc" or "#aabbcc". The spec is passed through undecoded.
type SetColor struct {
	Target ColorTarget
	Value  []byte
}

// QueryColor asks the terminal to report a color. The reply must be
// terminated the same way the query was.
type QueryColor struct {
	Target     ColorTarget
	Terminator Terminator
}

// ResetColor restores a color to its default. For ColorPalette, Value holds
// the raw semicolon-separated index list; empty means the whole palette.
type ResetColor struct {
	Kind  ColorKind
	Value []byte
}

// Notification is OSC 9 (body only) or OSC 777;notify;title;body: show a
// desktop notification.
type Notification struct {
	Title []byte
	Body  []byte
}

func (WindowTitle) command()       {}
func (WindowIcon) command()        {}
func (PromptStart) command()       {}
func (PromptEnd) command()         {}
func (EndOfInput) command()        {}
func (EndOfCommand) command()      {}
func (ClipboardContents) command() {}
func (ReportPwd) command()         {}
func (MouseShape) command()        {}
func (SetColor) command()          {}
func (QueryColor) command()        {}
func (ResetColor) command()        {}
func (Notification) command()      {}

// Clone returns a copy whose Title no longer aliases the parser buffer.
func (c WindowTitle) Clone() WindowTitle {
	return WindowTitle{Title: append([]byte(nil), c.Title...)}
}

// Clone returns a copy whose Icon no longer aliases the parser buffer.
func (c WindowIcon) Clone() WindowIcon {
	return WindowIcon{Icon: append([]byte(nil), c.Icon...)}
}

// Clone returns a copy whose AID no longer aliases the parser buffer.
func (c PromptStart) Clone() PromptStart {
	c.AID = append([]byte(nil), c.AID...)
	return c
}

// Clone returns a copy whose Data no longer aliases the parser buffer.
func (c ClipboardContents) Clone() ClipboardContents {
	c.Data = append([]byte(nil), c.Data...)
	return c
}

// Clone returns a copy whose Value no longer aliases the parser buffer.
func (c ReportPwd) Clone() ReportPwd {
	return ReportPwd{Value: append([]byte(nil), c.Value...)}
}

// Clone returns a copy whose Value no longer aliases the parser buffer.
func (c MouseShape) Clone() MouseShape {
	return MouseShape{Value: append([]byte(nil), c.Value...)}
}

// Clone returns a copy whose Value no longer aliases the parser buffer.
func (c SetColor) Clone() SetColor {
	c.Value = append([]byte(nil), c.Value...)
	return c
}

// Clone returns a copy whose Value no longer aliases the parser buffer.
func (c ResetColor) Clone() ResetColor {
	c.Value = append([]byte(nil), c.Value...)
	return c
}

// Clone returns a copy whose fields no longer alias the parser buffer.
func (c Notification) Clone() Notification {
	return Notification{
		Title: append([]byte(nil), c.Title...),
		Body:  append([]byte(nil), c.Body...),
	}
}
