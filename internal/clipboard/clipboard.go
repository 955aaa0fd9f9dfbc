// Package clipboard reads and writes the host system clipboard on behalf
// of OSC 52. Selection 'c' is the regular clipboard; 'p' and 's' map to the
// X11 primary selection where the platform has one, and fall back to the
// clipboard elsewhere.
package clipboard

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/twistedxcom/termina/internal/platform"
)

// Set writes data to the selection named by sel.
func Set(sel byte, data []byte) error {
	name, args, err := tool(sel, false)
	if err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard: %s: %w", name, err)
	}
	return nil
}

// Get reads the selection named by sel.
func Get(sel byte) ([]byte, error) {
	name, args, err := tool(sel, true)
	if err != nil {
		return nil, err
	}
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("clipboard: %s: %w", name, err)
	}
	return out, nil
}

// primary reports whether sel names the X11 primary selection.
func primary(sel byte) bool { return sel == 'p' || sel == 's' }

// tool picks the native clipboard command for the platform. On Linux the
// order is wl-copy under Wayland, then xclip, then xsel.
func tool(sel byte, paste bool) (string, []string, error) {
	switch p := platform.Detect(); p {
	case platform.MacOS:
		if paste {
			return "pbpaste", nil, nil
		}
		return "pbcopy", nil, nil

	case platform.WSL1, platform.WSL2:
		if paste {
			return "powershell.exe", []string{"-NoProfile", "-Command", "Get-Clipboard -Raw"}, nil
		}
		return "clip.exe", nil, nil

	case platform.Linux:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath(wlTool(paste)); err == nil {
				return path, wlArgs(sel, paste), nil
			}
		}
		if path, err := exec.LookPath("xclip"); err == nil {
			return path, xclipArgs(sel, paste), nil
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return path, xselArgs(sel, paste), nil
		}
		return "", nil, fmt.Errorf("clipboard: no tool found, install wl-clipboard, xclip or xsel")

	default:
		return "", nil, fmt.Errorf("clipboard: unsupported platform %s", p)
	}
}

func wlTool(paste bool) string {
	if paste {
		return "wl-paste"
	}
	return "wl-copy"
}

func wlArgs(sel byte, paste bool) []string {
	var args []string
	if primary(sel) {
		args = append(args, "--primary")
	}
	if paste {
		args = append(args, "--no-newline")
	}
	return args
}

func xclipArgs(sel byte, paste bool) []string {
	selection := "clipboard"
	if primary(sel) {
		selection = "primary"
	}
	args := []string{"-selection", selection}
	if paste {
		args = append(args, "-o")
	}
	return args
}

func xselArgs(sel byte, paste bool) []string {
	selection := "--clipboard"
	if primary(sel) {
		selection = "--primary"
	}
	if paste {
		return []string{selection, "--output"}
	}
	return []string{selection, "--input"}
}
