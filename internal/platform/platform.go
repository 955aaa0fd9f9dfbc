// Package platform identifies the host environment so clipboard access
// can pick the right native tooling. WSL matters because the Windows
// clipboard is reached through interop binaries there.
package platform

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// Platform is the detected host environment.
type Platform string

const (
	MacOS   Platform = "macos"
	Linux   Platform = "linux"
	WSL1    Platform = "wsl1"
	WSL2    Platform = "wsl2"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the host platform. The result is cached; detection reads
// /proc once at most.
func Detect() Platform {
	detectOnce.Do(func() {
		detected = detect()
	})
	return detected
}

// IsWSL reports whether the process runs under either WSL version.
func IsWSL() bool {
	p := Detect()
	return p == WSL1 || p == WSL2
}

func detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
		return linuxOrWSL()
	default:
		return Unknown
	}
}

func linuxOrWSL() Platform {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return wslVersion()
	}
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return Linux
	}
	if strings.Contains(strings.ToLower(string(version)), "microsoft") {
		return wslVersion()
	}
	return Linux
}

// wslVersion tells WSL1 and WSL2 apart. WSL2 kernels carry the
// "microsoft-standard" signature and expose /dev/vsock; WSL1 has neither.
func wslVersion() Platform {
	if version, err := os.ReadFile("/proc/version"); err == nil {
		if strings.Contains(string(version), "microsoft-standard") {
			return WSL2
		}
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return WSL2
	}
	return WSL1
}
