// Package server is the playground: a WebSocket endpoint that compiles
// and runs programs sent as JSON messages.
package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"bies/internal/bytecode"
	"bies/internal/cache"
	"bies/internal/compiler"
	"bies/internal/vm"
)

// Request operations.
const (
	OpCompile = "compile" // source -> bytecode text
	OpRun     = "run"     // bytecode text -> output
	OpExec    = "exec"    // source -> output
)

// DefaultMaxSteps bounds each run when no budget is configured.
const DefaultMaxSteps = 1_000_000

type Request struct {
	ID       string `json:"id,omitempty"`
	Op       string `json:"op"`
	Source   string `json:"source,omitempty"`
	Bytecode string `json:"bytecode,omitempty"`
	Input    string `json:"input,omitempty"`
}

type Response struct {
	ID       string `json:"id,omitempty"`
	RunID    string `json:"run_id"`
	Output   string `json:"output,omitempty"`
	Bytecode string `json:"bytecode,omitempty"`
	Error    string `json:"error,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
}

type Options struct {
	// MaxSteps limits the instructions of one run; 0 selects
	// DefaultMaxSteps.
	MaxSteps int
	// Cache, when set, serves repeated compilations.
	Cache *cache.Cache
}

type Server struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger
	opts     Options

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
}

func New(log zerolog.Logger, opts Options) *Server {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		opts:    opts,
		clients: make(map[string]*websocket.Conn),
	}
}

// Handler serves the WebSocket endpoint on /ws and a health check on
// /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("playground listening")

	select {
	case err := <-errc:
		return errors.Wrap(err, "playground server")
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown playground")
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(s.clients, id)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	id := uuid.NewString()
	log := s.log.With().Str("client", id).Logger()

	s.mu.Lock()
	s.clients[id] = conn
	s.mu.Unlock()
	log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		conn.Close()
		log.Info().Msg("client disconnected")
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		resp := s.Handle(r.Context(), req)
		log.Info().Str("op", req.Op).Str("run", resp.RunID).Int("steps", resp.Steps).
			Bool("failed", resp.Error != "").Msg("request served")
		if err := conn.WriteJSON(resp); err != nil {
			log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

// Handle serves one request. Failures are reported in Response.Error.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, RunID: uuid.NewString()}

	switch req.Op {
	case OpCompile:
		code, cached, err := s.compile(ctx, req.Source)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Bytecode = bytecode.Format(code)
		resp.Cached = cached

	case OpRun:
		code, err := bytecode.ParseString(req.Bytecode, "request.basm")
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		s.run(code, req.Input, &resp)

	case OpExec:
		code, cached, err := s.compile(ctx, req.Source)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Cached = cached
		s.run(code, req.Input, &resp)

	default:
		resp.Error = "unknown op " + strings.TrimSpace(req.Op)
	}
	return resp
}

func (s *Server) compile(ctx context.Context, source string) (*bytecode.Code, bool, error) {
	if s.opts.Cache != nil {
		code, ok, err := s.opts.Cache.Get(ctx, source)
		if err != nil {
			s.log.Warn().Err(err).Msg("cache lookup failed")
		} else if ok {
			return code, true, nil
		}
	}

	code, err := compiler.CompileSource(source, "request.bies")
	if err != nil {
		return nil, false, err
	}
	if s.opts.Cache != nil {
		if _, err := s.opts.Cache.Put(ctx, "request.bies", source, code); err != nil {
			s.log.Warn().Err(err).Msg("cache store failed")
		}
	}
	return code, false, nil
}

func (s *Server) run(code *bytecode.Code, input string, resp *Response) {
	var out bytes.Buffer
	r, err := vm.NewRunner(code,
		vm.WithOutput(&out),
		vm.WithInput(strings.NewReader(input)),
		vm.WithMaxSteps(s.opts.MaxSteps))
	if err != nil {
		resp.Error = err.Error()
		return
	}
	if err := r.Run(); err != nil {
		resp.Error = err.Error()
	}
	resp.Output = out.String()
	resp.Steps = r.Steps()
}
