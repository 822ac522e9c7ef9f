package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Transport names how the tool catalog is exposed.
type Transport string

const (
	// TransportAuto picks stdio or http from the process signals.
	TransportAuto Transport = "auto"
	// TransportStdio speaks the streaming protocol on stdin/stdout.
	TransportStdio Transport = "stdio"
	// TransportHTTP serves the HTTP wrapper with the protocol mounted at /mcp.
	TransportHTTP Transport = "http"
)

// ParseTransport normalizes a transport name. Empty means auto.
func ParseTransport(value string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(value))) {
	case "", TransportAuto:
		return TransportAuto, nil
	case TransportStdio:
		return TransportStdio, nil
	case TransportHTTP:
		return TransportHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want auto, stdio or http)", value)
	}
}

// Signals are the process facts the auto heuristic looks at.
type Signals struct {
	// HasArgs is true when the process was started with any command-line
	// arguments.
	HasArgs bool
	// StdinIsTerminal is true when stdin is an interactive terminal.
	StdinIsTerminal bool
}

// StdinIsTerminal reports whether stdin is an interactive terminal.
func StdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ResolveTransport picks the transport in priority order: an explicit
// transport, then ForceHTTP, then stdio when there are no arguments and
// stdin is not a terminal, otherwise http.
func ResolveTransport(cfg Config, signals Signals) Transport {
	transport, err := ParseTransport(string(cfg.Transport))
	if err == nil && transport != TransportAuto {
		return transport
	}
	if cfg.ForceHTTP {
		return TransportHTTP
	}
	if !signals.HasArgs && !signals.StdinIsTerminal {
		return TransportStdio
	}
	return TransportHTTP
}
