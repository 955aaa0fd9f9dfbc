// Package osc decodes Operating System Command escape sequences, the
// `ESC ] <code>;... <ST|BEL>` family that programs use to set window titles,
// report working directories, mark shell prompts, exchange clipboard data
// and query colors.
//
// The parser is a byte-at-a-time state machine. Feed it payload bytes (the
// part between `ESC ]` and the terminator) with Next, then call End with the
// terminator byte. It never panics, whatever the input: a malformed sequence
// makes End return nothing and log the raw bytes for diagnosis.
package osc

import (
	"bytes"
	"log/slog"

	"github.com/twistedxcom/termina/internal/logging"
)

var oscLog = logging.ForComponent(logging.CompOSC)

const (
	// bufCap is the fixed capture buffer. Everything except clipboard
	// payloads must fit here; a sequence that does not fit is invalid.
	bufCap = 2048

	// overflowCap bounds the growable buffer used for clipboard payloads
	// so a hostile program cannot grow memory without limit.
	overflowCap = 8 << 20

	// keyCap bounds a semantic-prompt option key. Longer keys are not
	// recognized; their values are parsed and discarded.
	keyCap = 16
)

type state uint8

const (
	stateEmpty state = iota
	stateInvalid

	// Numeric prefix dispatch. Each state is the literal digits seen so far.
	statePrefix0
	statePrefix1
	statePrefix10
	statePrefix104
	statePrefix11
	statePrefix110
	statePrefix111
	statePrefix112
	statePrefix12
	statePrefix13
	statePrefix133
	statePrefix2
	statePrefix22
	statePrefix4
	statePrefix5
	statePrefix52
	statePrefix7
	statePrefix77
	statePrefix777
	statePrefix9

	// stateString captures into the fixed buffer until the sequence ends.
	stateString
	// stateAllocString is stateString with overflow into a growable buffer
	// (clipboard payloads, which may legitimately exceed bufCap).
	stateAllocString

	statePaletteIndex    // OSC 4: accumulating the palette index
	stateColorValue      // first byte decides query ('?') vs set
	stateColorQueryDone  // query seen; anything further is invalid
	stateClipboardKind   // OSC 52: clipboard selection byte(s)
	stateNotifyExt       // OSC 777: extension name, only "notify" is known
	stateNotifyTitle     // OSC 777;notify: title until ';'
	stateSemanticMarker  // OSC 133: A/B/C/D
	stateSemanticA       // after 133;A, expecting ';' then options
	stateSemanticDone    // after 133;B or 133;C, nothing may follow
	stateSemanticD       // after 133;D, expecting ';' then the exit code
	stateSemanticExit    // after 133;D;, accumulating the exit code
	stateOptionKey       // semantic prompt option key
	stateOptionValue     // semantic prompt option value
)

// Parser decodes a single OSC sequence. It is reused across sequences via
// Reset and is not safe for concurrent use; the terminal's input loop owns it.
//
// The zero value is ready to use.
type Parser struct {
	state state
	cmd   Command // pointer to the command under construction, nil until known

	// buf holds every byte fed so far. Decoded string fields are slices of
	// it, which is what ties command lifetimes to the parser (see Command).
	buf    [bufCap]byte
	bufLen int
	start  int // index where the current capture began

	// overflow is non-nil once a clipboard capture spilled past bufCap.
	overflow []byte

	// target is the command field that receives the current capture.
	target *[]byte

	colorTarget ColorTarget

	num   uint16 // saturating numeric accumulator
	numOK bool   // at least one digit seen

	keyBuf [keyCap]byte
	keyLen int
	keyOK  bool

	// complete is the sole authority on whether End yields a Command.
	complete bool

	// dropped counts bytes absorbed after the sequence went invalid.
	dropped int
}

// Reset returns the parser to its initial state and releases any buffer
// grown for an oversized capture.
func (p *Parser) Reset() {
	*p = Parser{}
}

// Next feeds one payload byte. It is infallible: bad input moves the parser
// to an invalid trap state that only Reset clears, and further bytes are
// absorbed so End can report how much was discarded.
func (p *Parser) Next(b byte) {
	if p.state == stateInvalid {
		p.dropped++
		return
	}

	// Clipboard capture that has already spilled appends straight to the
	// growable buffer.
	if p.state == stateAllocString && p.overflow != nil {
		if len(p.overflow) >= overflowCap {
			p.toInvalid()
			return
		}
		p.overflow = append(p.overflow, b)
		return
	}

	if p.bufLen >= bufCap {
		if p.state == stateAllocString {
			// Move the capture so far into a growable buffer and keep going.
			p.overflow = append(make([]byte, 0, p.bufLen-p.start+64), p.buf[p.start:p.bufLen]...)
			p.overflow = append(p.overflow, b)
			return
		}
		// Bounded capture overflowed: the sequence is invalid rather than
		// silently truncated.
		p.toInvalid()
		return
	}
	p.buf[p.bufLen] = b
	p.bufLen++

	switch p.state {
	case stateEmpty:
		switch b {
		case '0':
			p.state = statePrefix0
		case '1':
			p.state = statePrefix1
		case '2':
			p.state = statePrefix2
		case '4':
			p.state = statePrefix4
		case '5':
			p.state = statePrefix5
		case '7':
			p.state = statePrefix7
		case '9':
			p.state = statePrefix9
		default:
			p.toInvalid()
		}

	case statePrefix0:
		// OSC 0 historically sets both title and icon; we surface it as a
		// title change, matching what modern emulators do.
		if b == ';' {
			cmd := &WindowTitle{}
			p.cmd = cmd
			p.beginCapture(&cmd.Title)
		} else {
			p.toInvalid()
		}

	case statePrefix1:
		switch b {
		case ';':
			cmd := &WindowIcon{}
			p.cmd = cmd
			p.beginCapture(&cmd.Icon)
		case '0':
			p.state = statePrefix10
		case '1':
			p.state = statePrefix11
		case '2':
			p.state = statePrefix12
		case '3':
			p.state = statePrefix13
		default:
			p.toInvalid()
		}

	case statePrefix10:
		switch b {
		case ';':
			p.colorTarget = ColorTarget{Kind: ColorForeground}
			p.state = stateColorValue
		case '4':
			cmd := &ResetColor{Kind: ColorPalette}
			p.cmd = cmd
			p.complete = true
			p.state = statePrefix104
		default:
			p.toInvalid()
		}

	case statePrefix104:
		if b == ';' {
			cmd := p.cmd.(*ResetColor)
			p.beginCapture(&cmd.Value)
		} else {
			p.toInvalid()
		}

	case statePrefix11:
		switch b {
		case ';':
			p.colorTarget = ColorTarget{Kind: ColorBackground}
			p.state = stateColorValue
		case '0':
			p.resetColorPrefix(ColorForeground, statePrefix110)
		case '1':
			p.resetColorPrefix(ColorBackground, statePrefix111)
		case '2':
			p.resetColorPrefix(ColorCursor, statePrefix112)
		default:
			p.toInvalid()
		}

	case statePrefix110, statePrefix111, statePrefix112:
		if b == ';' {
			cmd := p.cmd.(*ResetColor)
			p.beginCapture(&cmd.Value)
		} else {
			p.toInvalid()
		}

	case statePrefix12:
		if b == ';' {
			p.colorTarget = ColorTarget{Kind: ColorCursor}
			p.state = stateColorValue
		} else {
			p.toInvalid()
		}

	case statePrefix13:
		if b == '3' {
			p.state = statePrefix133
		} else {
			p.toInvalid()
		}

	case statePrefix133:
		if b == ';' {
			p.state = stateSemanticMarker
		} else {
			p.toInvalid()
		}

	case statePrefix2:
		switch b {
		case ';':
			cmd := &WindowTitle{}
			p.cmd = cmd
			p.beginCapture(&cmd.Title)
		case '2':
			p.state = statePrefix22
		default:
			p.toInvalid()
		}

	case statePrefix22:
		if b == ';' {
			cmd := &MouseShape{}
			p.cmd = cmd
			p.beginCapture(&cmd.Value)
		} else {
			p.toInvalid()
		}

	case statePrefix4:
		if b == ';' {
			p.num = 0
			p.numOK = false
			p.state = statePaletteIndex
		} else {
			p.toInvalid()
		}

	case statePaletteIndex:
		switch {
		case b >= '0' && b <= '9':
			p.num = satAccumulate(p.num, b)
			p.numOK = true
		case b == ';' && p.numOK:
			p.colorTarget = ColorTarget{Kind: ColorPalette, Index: uint8(p.num)}
			p.state = stateColorValue
		default:
			p.toInvalid()
		}

	case stateColorValue:
		if b == '?' {
			p.cmd = &QueryColor{Target: p.colorTarget}
			p.complete = true
			p.state = stateColorQueryDone
		} else {
			cmd := &SetColor{Target: p.colorTarget}
			p.cmd = cmd
			p.beginCapture(&cmd.Value)
			p.start = p.bufLen - 1 // current byte opens the value
		}

	case stateColorQueryDone:
		p.toInvalid()

	case statePrefix5:
		if b == '2' {
			p.state = statePrefix52
		} else {
			p.toInvalid()
		}

	case statePrefix52:
		if b == ';' {
			p.cmd = &ClipboardContents{Kind: 'c'}
			p.start = p.bufLen
			p.state = stateClipboardKind
		} else {
			p.toInvalid()
		}

	case stateClipboardKind:
		if b == ';' {
			cmd := p.cmd.(*ClipboardContents)
			if seg := p.buf[p.start : p.bufLen-1]; len(seg) > 0 {
				cmd.Kind = seg[0]
			}
			p.beginCapture(&cmd.Data)
			p.state = stateAllocString
		}
		// Otherwise keep accumulating selection bytes; only the first one
		// is significant.

	case statePrefix7:
		switch b {
		case ';':
			cmd := &ReportPwd{}
			p.cmd = cmd
			p.beginCapture(&cmd.Value)
		case '7':
			p.state = statePrefix77
		default:
			p.toInvalid()
		}

	case statePrefix77:
		if b == '7' {
			p.state = statePrefix777
		} else {
			p.toInvalid()
		}

	case statePrefix777:
		if b == ';' {
			p.start = p.bufLen
			p.state = stateNotifyExt
		} else {
			p.toInvalid()
		}

	case stateNotifyExt:
		if b == ';' {
			// Only the literal "notify" sub-extension is recognized.
			if !bytes.Equal(p.buf[p.start:p.bufLen-1], []byte("notify")) {
				p.toInvalid()
				return
			}
			cmd := &Notification{}
			p.cmd = cmd
			p.beginCapture(&cmd.Title)
			p.state = stateNotifyTitle
		}

	case stateNotifyTitle:
		if b == ';' {
			cmd := p.cmd.(*Notification)
			cmd.Title = p.buf[p.start : p.bufLen-1]
			p.beginCapture(&cmd.Body)
		}

	case statePrefix9:
		if b == ';' {
			cmd := &Notification{}
			p.cmd = cmd
			p.beginCapture(&cmd.Body)
		} else {
			p.toInvalid()
		}

	case stateSemanticMarker:
		switch b {
		case 'A':
			p.cmd = &PromptStart{Redraw: true}
			p.complete = true
			p.state = stateSemanticA
		case 'B':
			p.cmd = &PromptEnd{}
			p.complete = true
			p.state = stateSemanticDone
		case 'C':
			p.cmd = &EndOfInput{}
			p.complete = true
			p.state = stateSemanticDone
		case 'D':
			p.cmd = &EndOfCommand{}
			p.complete = true
			p.state = stateSemanticD
		default:
			p.toInvalid()
		}

	case stateSemanticD:
		if b == ';' {
			p.num = 0
			p.numOK = false
			p.state = stateSemanticExit
		} else {
			p.toInvalid()
		}

	case stateSemanticA:
		if b == ';' {
			p.beginOptionKey()
		} else {
			p.toInvalid()
		}

	case stateSemanticDone:
		p.toInvalid()

	case stateSemanticExit:
		switch {
		case b >= '0' && b <= '9':
			// Speculatively complete: "133;D;0" may end right here, or a
			// later ';' reopens into key/value options.
			p.num = satAccumulate(p.num, b)
			p.numOK = true
			cmd := p.cmd.(*EndOfCommand)
			cmd.ExitCode = uint8(p.num)
			cmd.HasExitCode = true
		case b == ';':
			p.beginOptionKey()
		case !p.numOK:
			// Not a number at all: this segment is an option key.
			p.beginOptionKey()
			p.pushKeyByte(b)
		default:
			p.toInvalid()
		}

	case stateOptionKey:
		switch b {
		case '=':
			p.start = p.bufLen
			p.state = stateOptionValue
		case ';':
			// Key with no value.
			p.applyOption(nil)
			p.beginOptionKey()
		default:
			p.pushKeyByte(b)
		}

	case stateOptionValue:
		// A ';' always closes the option and opens a new key, even if the
		// value looks unfinished.
		if b == ';' {
			p.applyOption(p.buf[p.start : p.bufLen-1])
			p.beginOptionKey()
		}

	case stateString, stateAllocString:
		// Capture byte already stored above.
	}
}

// End finalizes the sequence with the terminator byte that closed it. It
// returns the decoded command, or false if the sequence never reached a
// valid complete state; in that case the raw bytes are logged for diagnosis.
func (p *Parser) End(terminator byte) (Command, bool) {
	if !p.complete {
		if p.bufLen > 0 || p.dropped > 0 {
			oscLog.Debug("invalid OSC sequence",
				slog.String("bytes", string(p.buf[:p.bufLen])),
				slog.Int("dropped", p.dropped))
		}
		return nil, false
	}

	// Deferred finalization for whatever was still open.
	switch p.state {
	case stateString, stateAllocString, stateNotifyTitle:
		if p.target != nil {
			*p.target = p.capture()
		}
	case stateOptionKey:
		p.applyOption(nil)
	case stateOptionValue:
		p.applyOption(p.buf[p.start:p.bufLen])
	}

	if q, ok := p.cmd.(*QueryColor); ok {
		q.Terminator = terminatorFor(terminator)
	}
	return p.cmd, true
}

func (p *Parser) toInvalid() {
	p.state = stateInvalid
	p.complete = false
	p.cmd = nil
	p.target = nil
}

// beginCapture starts recording bytes into dst, beginning with the next byte.
func (p *Parser) beginCapture(dst *[]byte) {
	p.target = dst
	p.start = p.bufLen
	p.state = stateString
	p.complete = true
}

// capture returns the bytes recorded since the capture began.
func (p *Parser) capture() []byte {
	if p.overflow != nil {
		return p.overflow
	}
	return p.buf[p.start:p.bufLen]
}

func (p *Parser) resetColorPrefix(kind ColorKind, next state) {
	p.cmd = &ResetColor{Kind: kind}
	p.complete = true
	p.state = next
}

func (p *Parser) beginOptionKey() {
	p.keyLen = 0
	p.keyOK = true
	p.state = stateOptionKey
}

func (p *Parser) pushKeyByte(b byte) {
	if p.keyLen < keyCap {
		p.keyBuf[p.keyLen] = b
		p.keyLen++
	} else {
		p.keyOK = false
	}
}

// applyOption closes the pending key/value option against the command under
// construction. Unknown keys and unrecognized values are ignored; options
// are advisory metadata, not grounds to reject the sequence.
func (p *Parser) applyOption(value []byte) {
	if !p.keyOK {
		return
	}
	key := string(p.keyBuf[:p.keyLen])

	switch cmd := p.cmd.(type) {
	case *PromptStart:
		switch key {
		case "aid":
			cmd.AID = value
		case "redraw":
			switch string(value) {
			case "0":
				cmd.Redraw = false
			case "1":
				cmd.Redraw = true
			}
		case "k":
			switch string(value) {
			case "i":
				cmd.Kind = PromptInitial
			case "r":
				cmd.Kind = PromptRight
			case "c":
				cmd.Kind = PromptContinuation
			}
		}
	case *EndOfCommand:
		// Trailing options after an exit code are parsed so the sequence
		// stays valid, but none carry state we keep.
	}
}

// satAccumulate folds a decimal digit into cur, saturating at 255 so
// pathological input cannot overflow the accumulator.
func satAccumulate(cur uint16, digit byte) uint16 {
	v := uint32(cur)*10 + uint32(digit-'0')
	if v > 255 {
		return 255
	}
	return uint16(v)
}
