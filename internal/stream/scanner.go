// Package stream extracts OSC sequences from a raw terminal byte stream.
//
// The scanner is deliberately not a VT parser: it only recognizes the
// `ESC ]` introducer, feeds the payload to the OSC decoder until ST or BEL,
// and passes every other byte through untouched. CSI and friends flow by
// unmodified.
package stream

import (
	"io"

	"github.com/twistedxcom/termina/internal/logging"
	"github.com/twistedxcom/termina/internal/osc"
)

var streamLog = logging.ForComponent(logging.CompStream)

// Handler receives each fully decoded command. Command data aliases the
// scanner's parser and is only valid for the duration of the call.
type Handler func(osc.Command)

type scanState uint8

const (
	stateGround scanState = iota
	stateEsc              // ESC seen, introducer undecided
	stateOSC              // inside an OSC payload
	stateOSCEsc           // ESC inside an OSC payload, ST pending
)

// Scanner splits a byte stream into pass-through output and decoded OSC
// commands. It implements io.Writer so it can sit directly under an
// io.Copy from the pty.
type Scanner struct {
	parser osc.Parser
	state  scanState
	out    io.Writer
	handle Handler
}

// NewScanner writes non-OSC bytes to out and hands decoded commands to
// handle. Either may be nil.
func NewScanner(out io.Writer, handle Handler) *Scanner {
	return &Scanner{out: out, handle: handle}
}

// Write implements io.Writer. It never fails on malformed input; only
// errors from the underlying writer propagate.
func (s *Scanner) Write(p []byte) (int, error) {
	run := -1 // start of the current pass-through run, -1 when none

	flush := func(end int) error {
		if run < 0 || s.out == nil {
			run = -1
			return nil
		}
		_, err := s.out.Write(p[run:end])
		run = -1
		return err
	}

	for i := 0; i < len(p); i++ {
		b := p[i]
	again:
		switch s.state {
		case stateGround:
			if b == 0x1b {
				if err := flush(i); err != nil {
					return i, err
				}
				s.state = stateEsc
			} else if run < 0 {
				run = i
			}

		case stateEsc:
			if b == ']' {
				s.parser.Reset()
				s.state = stateOSC
				break
			}
			// Not an OSC: emit the held ESC and rejoin the stream.
			if err := s.emitEsc(); err != nil {
				return i, err
			}
			s.state = stateGround
			goto again

		case stateOSC:
			switch b {
			case 0x07:
				s.finish(0x07)
			case 0x1b:
				s.state = stateOSCEsc
			default:
				s.parser.Next(b)
			}

		case stateOSCEsc:
			if b == '\\' {
				s.finish(b)
				break
			}
			// ESC not followed by \ aborts the sequence; the ESC opens a
			// fresh escape instead.
			streamLog.Debug("OSC aborted by escape")
			s.parser.Reset()
			s.state = stateEsc
			goto again
		}
	}

	if s.state == stateGround {
		if err := flush(len(p)); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush releases state held across Write calls and must be called when the
// stream ends. A stream that stops right after an ESC leaves the scanner
// waiting for the introducer; Flush emits that ESC instead of swallowing
// it. An unterminated OSC payload is discarded.
func (s *Scanner) Flush() error {
	switch s.state {
	case stateEsc, stateOSCEsc:
		if s.state == stateOSCEsc {
			streamLog.Debug("OSC unterminated at end of stream")
		}
		s.parser.Reset()
		s.state = stateGround
		return s.emitEsc()
	case stateOSC:
		streamLog.Debug("OSC unterminated at end of stream")
		s.parser.Reset()
		s.state = stateGround
	}
	return nil
}

func (s *Scanner) emitEsc() error {
	if s.out == nil {
		return nil
	}
	_, err := s.out.Write([]byte{0x1b})
	return err
}

func (s *Scanner) finish(terminator byte) {
	if cmd, ok := s.parser.End(terminator); ok && s.handle != nil {
		s.handle(cmd)
	}
	s.parser.Reset()
	s.state = stateGround
}
