package netport

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/duet-sh/duet/internal/slot"
)

// Slot-kind defaults for frameworks with no table entry.
const (
	DefaultFrontendPort = 3000
	DefaultBackendPort  = 8080
)

var frontendPorts = map[string]int{
	"react":   3000,
	"next":    3000,
	"vue":     8081,
	"angular": 4200,
	"svelte":  5173,
	"vite":    5173,
	"nuxt":    3000,
	"astro":   4321,
}

var backendPorts = map[string]int{
	"node":    3000,
	"express": 3000,
	"nest":    3000,
	"django":  8000,
	"flask":   5000,
	"fastapi": 8000,
	"spring":  8080,
	"rails":   3000,
	"laravel": 8000,
	"go":      8080,
	"dotnet":  5000,
}

// PortFor returns the conventional TCP port for a framework and slot kind.
// Unknown frameworks get the slot-kind default.
func PortFor(framework string, kind slot.Kind) int {
	framework = strings.ToLower(strings.TrimSpace(framework))
	table := frontendPorts
	def := DefaultFrontendPort
	if kind == slot.Backend {
		table = backendPorts
		def = DefaultBackendPort
	}
	if p, ok := table[framework]; ok {
		return p
	}
	return def
}

// IsAvailable reports whether a localhost listener can bind the port. Only
// an address-in-use failure marks the port unavailable; any other bind error
// is treated as available so an ambiguous environment does not block startup.
func IsAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err == nil {
		_ = ln.Close()
		return true
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return false
	}
	return true
}

// Free terminates the process currently listening on port. Best-effort and
// inherently racy: another process may claim the port between the lookup and
// the caller's own bind. The return value is belief, not a guarantee.
func Free(port int) bool {
	pid, err := ownerPID(port)
	if err != nil || pid <= 0 {
		return false
	}
	return terminate(pid) == nil
}

// OwnerPID exposes the occupant lookup for diagnostics.
func OwnerPID(port int) (int, error) { return ownerPID(port) }
