package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/twistedxcom/termina/internal/logging"
)

var historyLog = logging.ForComponent(logging.CompHistory)

type entryKind uint8

const (
	entryTitle entryKind = iota
	entryDir
)

type entry struct {
	kind  entryKind
	value string
	at    time.Time
}

// Recorder decouples the input loop from SQLite: Title and Dir enqueue and
// return immediately, a background goroutine does the writes. When the
// queue is full entries are dropped; history is best effort.
type Recorder struct {
	db      *DB
	session string

	ch        chan entry
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts a recorder for one terminal session.
func NewRecorder(db *DB, sessionID string) *Recorder {
	r := &Recorder{
		db:      db,
		session: sessionID,
		ch:      make(chan entry, 64),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Title enqueues a window-title change.
func (r *Recorder) Title(title string) {
	r.enqueue(entry{kind: entryTitle, value: title, at: time.Now()})
}

// Dir enqueues a working-directory report.
func (r *Recorder) Dir(path string) {
	r.enqueue(entry{kind: entryDir, value: path, at: time.Now()})
}

func (r *Recorder) enqueue(e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		historyLog.Debug("history entry after close, dropped")
		return
	}
	select {
	case r.ch <- e:
	default:
		historyLog.Debug("history queue full, entry dropped")
	}
}

// Close drains pending entries and stops the writer. The underlying DB is
// not closed; the recorder does not own it. Title and Dir stay safe to call
// after Close; their entries are dropped.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *Recorder) loop() {
	defer close(r.done)
	for e := range r.ch {
		var err error
		switch e.kind {
		case entryTitle:
			err = r.db.RecordTitle(r.session, e.value, e.at)
		case entryDir:
			err = r.db.RecordDir(r.session, e.value, e.at)
		}
		if err != nil {
			historyLog.Warn("history write failed", slog.String("error", err.Error()))
		}
	}
}
