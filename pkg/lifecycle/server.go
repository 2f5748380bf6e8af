// Package lifecycle owns the local HTTP server that edge events are forwarded
// to. The server listens on a unix socket under a socket directory; when the
// socket path is already taken it moves to the next path instead of failing.
package lifecycle

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/holon-run/edgeshim/pkg/codec"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
)

// DefaultSocketDir is used when Options.SocketDir is empty.
const DefaultSocketDir = "/tmp"

// State is the lifecycle state of a Server.
type State int

const (
	StateUnbound State = iota
	StateBinding
	StateListening
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateListening:
		return "listening"
	case StateClosing:
		return "closing"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// ErrBindAborted is returned by Start when Close ran while the socket was
// being bound.
var ErrBindAborted = errors.New("bind aborted by close")

// ListenFunc opens a listener. It matches net.Listen.
type ListenFunc func(network, address string) (net.Listener, error)

// Options configures a Server.
type Options struct {
	// SocketDir holds the server<N>.sock files. Defaults to DefaultSocketDir.
	SocketDir string
	// BinaryTypes lists content types returned to the edge as base64.
	BinaryTypes []string
	// OnListening is called with the socket path each time the server starts listening.
	OnListening func(socketPath string)
	// Listen replaces net.Listen.
	Listen ListenFunc
}

// Server is the lifecycle manager for one local HTTP handler.
type Server struct {
	handler     http.Handler
	socketDir   string
	binary      codec.BinaryTypes
	onListening func(string)
	listen      ListenFunc

	mu      sync.Mutex
	state   State
	suffix  int
	gen     int
	srv     *http.Server
	ln      net.Listener
	waiters []func()
}

// New returns an unbound server for handler. Nothing is bound until Start.
func New(handler http.Handler, opts Options) *Server {
	dir := opts.SocketDir
	if dir == "" {
		dir = DefaultSocketDir
	}
	listen := opts.Listen
	if listen == nil {
		listen = net.Listen
	}
	return &Server{
		handler:     handler,
		socketDir:   dir,
		binary:      codec.NewBinaryTypes(opts.BinaryTypes...),
		onListening: opts.OnListening,
		listen:      listen,
	}
}

// SocketPath is the path the server listens on, or will try next.
func (s *Server) SocketPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socketPathLocked()
}

func (s *Server) socketPathLocked() string {
	return filepath.Join(s.socketDir, "server"+strconv.Itoa(s.suffix)+".sock")
}

// Suffix is the number of bind conflicts seen so far.
func (s *Server) Suffix() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suffix
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsListening reports whether requests can be sent to SocketPath.
func (s *Server) IsListening() bool {
	return s.State() == StateListening
}

// BinaryTypes returns the set fixed at construction. Callers must not modify it.
func (s *Server) BinaryTypes() codec.BinaryTypes {
	return s.binary
}

// WhenListening runs fn once the server is listening: right away if it already
// is, otherwise on the next transition to listening. fn runs on its own goroutine.
func (s *Server) WhenListening(fn func()) {
	s.mu.Lock()
	if s.state == StateListening {
		s.mu.Unlock()
		go fn()
		return
	}
	s.waiters = append(s.waiters, fn)
	s.mu.Unlock()
}

// Start binds the socket and begins serving. It is a no-op while the server is
// binding or listening.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.state == StateBinding || s.state == StateListening {
		s.mu.Unlock()
		return nil
	}
	s.state = StateBinding
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	return s.bind(gen)
}

func (s *Server) bind(gen int) error {
	for {
		s.mu.Lock()
		path := s.socketPathLocked()
		s.mu.Unlock()

		ln, err := s.listen("unix", path)
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				edgelog.Warn("socket address in use, rotating", "socket", path, "error", err)
				s.mu.Lock()
				s.suffix++
				s.mu.Unlock()
				continue
			}
			edgelog.Error("failed to bind local server", "socket", path, "error", err)
			s.mu.Lock()
			if s.gen == gen && s.state == StateBinding {
				s.state = StateUnbound
			}
			s.mu.Unlock()
			return fmt.Errorf("listen on %s: %w", path, err)
		}

		srv := &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: 30 * time.Second,
		}

		s.mu.Lock()
		if s.gen != gen || s.state != StateBinding {
			s.mu.Unlock()
			_ = ln.Close()
			return ErrBindAborted
		}
		s.srv = srv
		s.ln = ln
		s.state = StateListening
		waiters := s.waiters
		s.waiters = nil
		s.mu.Unlock()

		go s.serve(srv, ln)

		edgelog.Info("local server listening", "socket", path)
		if s.onListening != nil {
			s.onListening(path)
		}
		for _, fn := range waiters {
			go fn()
		}
		return nil
	}
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		edgelog.Error("local server listener error", "socket", ln.Addr().String(), "error", err)
	}

	s.mu.Lock()
	if s.srv == srv {
		s.srv = nil
		s.ln = nil
		s.state = StateUnbound
	}
	s.mu.Unlock()
}

// Close stops the server. Pending WhenListening callbacks stay registered and
// fire on the next successful Start.
func (s *Server) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateUnbound, StateClosing:
		s.mu.Unlock()
		return nil
	case StateBinding:
		s.state = StateUnbound
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	err := srv.Close()

	s.mu.Lock()
	if s.state == StateClosing {
		s.state = StateUnbound
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close local server: %w", err)
	}
	return nil
}
