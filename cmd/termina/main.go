// Command termina runs a shell on a pty and routes its OSC traffic through
// the decoder and dispatcher while passing everything else to the host
// terminal untouched. It is the integration harness for the emulator core:
// titles, colors, notifications and shell-integration markers all work,
// rendering does not happen here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/twistedxcom/termina/internal/clipboard"
	"github.com/twistedxcom/termina/internal/config"
	"github.com/twistedxcom/termina/internal/debugsrv"
	"github.com/twistedxcom/termina/internal/dispatcher"
	"github.com/twistedxcom/termina/internal/graphics"
	"github.com/twistedxcom/termina/internal/history"
	"github.com/twistedxcom/termina/internal/logging"
	"github.com/twistedxcom/termina/internal/osc"
	"github.com/twistedxcom/termina/internal/screen"
	"github.com/twistedxcom/termina/internal/stream"
	"golang.org/x/time/rate"
)

const Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "config file path (default: config dir)")
	budgetMB := flag.Int("graphics-budget", -1, "override image byte budget in MiB")
	debugSrv := flag.Bool("debug-server", false, "force the debug event server on")
	shellFlag := flag.String("shell", "", "command to run (default: $SHELL)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("termina", Version)
		return
	}

	os.Exit(run(*configPath, *budgetMB, *debugSrv, *shellFlag))
}

func run(configPath string, budgetMB int, forceDebug bool, shellCmd string) int {
	cfgDir, err := config.Dir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if configPath == "" {
		configPath = filepath.Join(cfgDir, config.FileName)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		var unknown *config.UnknownKeysError
		if !errors.As(err, &unknown) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if budgetMB >= 0 {
		cfg.Graphics.MaxBytesMB = budgetMB
	}

	logging.Init(logging.Config{
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logging.Shutdown()
	log := logging.Logger()

	if shellCmd == "" {
		shellCmd = os.Getenv("SHELL")
	}
	if shellCmd == "" {
		shellCmd = "/bin/sh"
	}

	// Grid geometry from the host terminal; pixel sizes when the host
	// reports them, a conventional cell size otherwise.
	cols, rows, cellW, cellH := hostGeometry()
	scr := screen.New(cols, rows, cellW, cellH)
	primary := graphics.NewStore(scr, cfg.GraphicsLimitBytes())
	alternate := graphics.NewStore(scr, cfg.GraphicsLimitBytes())

	var recorder *history.Recorder
	if cfg.History.Enabled {
		dbPath := cfg.History.Path
		if dbPath == "" {
			dbPath = filepath.Join(cfgDir, "history.db")
		}
		db, err := history.Open(dbPath)
		if err != nil {
			log.Warn("history disabled", slog.String("error", err.Error()))
		} else {
			defer db.Close()
			sessionID := fmt.Sprintf("%d-%d", os.Getpid(), time.Now().Unix())
			recorder = history.NewRecorder(db, sessionID)
			defer recorder.Close()
		}
	}

	cmd := exec.Command(shellCmd)
	cmd.Env = append(os.Environ(), "TERM_PROGRAM=termina")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "termina: start %s: %v\n", shellCmd, err)
		return 1
	}
	defer ptmx.Close()

	d := dispatcher.New(dispatcher.Config{
		Callbacks: dispatcher.Callbacks{
			// The harness doesn't render; it mirrors title and
			// notification effects to the host terminal.
			SetTitle: func(title string) {
				fmt.Fprintf(os.Stdout, "\x1b]0;%s\a", title)
			},
			ClipboardSet: func(kind byte, data []byte) {
				if err := clipboard.Set(kind, data); err != nil {
					log.Warn("clipboard write failed", slog.String("error", err.Error()))
				}
			},
			ClipboardGet: func(kind byte) ([]byte, bool) {
				data, err := clipboard.Get(kind)
				if err != nil {
					log.Warn("clipboard read failed", slog.String("error", err.Error()))
					return nil, false
				}
				return data, true
			},
			Notify: func(title, body string) {
				if cfg.Notifications.Enabled {
					fmt.Fprintf(os.Stdout, "\x1b]777;notify;%s;%s\a", title, body)
				}
			},
			Reply: func(seq []byte) {
				_, _ = ptmx.Write(seq)
			},
		},
		Primary:     primary,
		Alternate:   alternate,
		Recorder:    recorder,
		NotifyRate:  rate.Limit(float64(cfg.Notifications.PerMinute) / 60),
		NotifyBurst: cfg.Notifications.Burst,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *debugsrv.Server
	if forceDebug || cfg.Debug.Enabled {
		srv = debugsrv.NewServer(debugsrv.Config{
			ListenAddr: cfg.Debug.ListenAddr,
			Stats: func() map[string]graphics.Stats {
				return map[string]graphics.Stats{
					"primary":   primary.Stats(),
					"alternate": alternate.Stats(),
				}
			},
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Warn("debug server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// The stores and dispatcher are single-threaded; the mutex serializes
	// the input loop against config reloads.
	var mu sync.Mutex
	scanner := stream.NewScanner(os.Stdout, func(c osc.Command) {
		mu.Lock()
		d.Dispatch(c)
		mu.Unlock()
		if srv != nil {
			srv.Publish(debugsrv.Summarize(c))
		}
	})

	if watcher, err := config.NewWatcher(configPath); err != nil {
		log.Warn("config watch disabled", slog.String("error", err.Error()))
	} else {
		defer watcher.Close()
		go func() {
			for fresh := range watcher.Reloads() {
				mu.Lock()
				primary.SetLimit(fresh.GraphicsLimitBytes())
				alternate.SetLimit(fresh.GraphicsLimitBytes())
				cfg.Notifications = fresh.Notifications
				mu.Unlock()
				log.Info("applied config reload")
			}
		}()
	}

	// Keep the child's winsize in step with the host terminal.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			if err := pty.InheritSize(os.Stdin, ptmx); err != nil {
				log.Warn("resize failed", slog.String("error", err.Error()))
			}
			c, r, w, h := hostGeometry()
			scr.Resize(c, r)
			scr.SetCellSize(w, h)
		}
	}()
	winch <- syscall.SIGWINCH

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err == nil {
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()
	_, _ = io.Copy(scanner, ptmx)
	_ = scanner.Flush()

	_ = cmd.Wait()
	return 0
}

// hostGeometry reads the controlling terminal's size. Pixel dimensions are
// frequently zero (many terminals never fill them in); a conventional
// 10x20 cell stands in so placement math stays sane.
func hostGeometry() (cols, rows, cellW, cellH int) {
	cols, rows, cellW, cellH = 80, 24, 10, 20
	ws, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return
	}
	if ws.Cols > 0 {
		cols = int(ws.Cols)
	}
	if ws.Rows > 0 {
		rows = int(ws.Rows)
	}
	if ws.X > 0 && ws.Cols > 0 {
		cellW = int(ws.X) / int(ws.Cols)
	}
	if ws.Y > 0 && ws.Rows > 0 {
		cellH = int(ws.Y) / int(ws.Rows)
	}
	return
}
