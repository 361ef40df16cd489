// Package coreserver exposes compile_core over a websocket: one HIR
// Sources document in, one LIR Sources document out, per connection.
// It is grounded on sentra's own WebSocketListen (an http.Server plus a
// gorilla/websocket Upgrader run in a background goroutine), but drops
// that module's client registry — a compile request has no notion of
// broadcast or of a client outliving its one request/response.
package coreserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"corelang/internal/buildstore"
	"corelang/internal/pipeline"
	"corelang/internal/symbol"
)

// Server answers compile requests over websocket connections. Each
// connection gets its own *symbol.Table: the core is single-threaded
// over a table, so concurrency across connections lives entirely
// outside any one compile_core call, never inside a shared table.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	store    *buildstore.Store // nil disables telemetry recording
	opts     pipeline.Options
	logger   *slog.Logger

	httpServer *http.Server
	group      *errgroup.Group
	groupCtx   context.Context
}

// New builds a Server listening on addr. store may be nil, in which
// case compile telemetry is simply not recorded.
func New(addr string, store *buildstore.Store, opts pipeline.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		store:  store,
		opts:   opts,
		logger: logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/compile", s.handleCompile)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run starts the HTTP/websocket listener and blocks until ctx is
// canceled, at which point it waits for every in-flight connection
// handler to finish before returning. group bounds and joins that set
// of handlers — the server never force-closes a handler mid-compile.
func (s *Server) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	s.group = group
	s.groupCtx = groupCtx

	group.Go(func() error {
		s.logger.Info("coreserver listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("coreserver: listen: %w", err)
		}
		return nil
	})

	<-groupCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("coreserver shutdown", "error", err)
	}
	return group.Wait()
}

// handleCompile upgrades one HTTP request to a websocket connection,
// reads exactly one compileRequest frame, runs compile_core against a
// fresh symbol table, and writes back one compileResponse frame before
// closing the connection. Each call runs as its own errgroup member so
// Run's shutdown waits for it.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("coreserver upgrade failed", "error", err)
		return
	}

	s.group.Go(func() error {
		defer conn.Close()
		if err := s.serveOne(s.groupCtx, conn); err != nil {
			s.logger.Warn("coreserver connection", "error", err)
		}
		return nil
	})
}

type compileRequest struct {
	EntryPoints []string        `json:"entry_points"`
	Sources     hirSourcesWire  `json:"sources"`
}

type compileResponse struct {
	CompilationID string         `json:"compilation_id,omitempty"`
	Sources       *lirSourcesWire `json:"sources,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (s *Server) serveOne(ctx context.Context, conn *websocket.Conn) error {
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req compileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.writeError(conn, fmt.Errorf("decode request: %w", err))
	}

	tbl := symbol.NewTable()

	src, err := wireToHIRSources(tbl, req.Sources)
	if err != nil {
		return s.writeError(conn, fmt.Errorf("decode sources: %w", err))
	}

	entryPoints := make([]symbol.Symbol, len(req.EntryPoints))
	for i, name := range req.EntryPoints {
		entryPoints[i] = tbl.AllocPermanent(name)
	}

	result, err := compile(tbl, src, entryPoints, s.opts)
	if err != nil {
		return s.writeError(conn, err)
	}

	if s.store != nil {
		rec := buildstore.Record{
			ID:                     result.ID,
			EntryPoints:            req.EntryPoints,
			Elapsed:                result.Elapsed,
			PassDurations:          result.PassDurations,
			SpecializationCount:    result.SpecializationCount,
			SymbolTableTotal:       result.SymbolTableTotal,
			SymbolTableUsed:        result.SymbolTableUsed,
			SymbolTableDeallocated: result.SymbolTableDeallocated,
		}
		if err := s.store.Record(ctx, rec, time.Now()); err != nil {
			s.logger.Warn("coreserver telemetry record failed", "error", err)
		}
	}

	outWire := lirSourcesToWire(tbl, result.Sources)
	resp := compileResponse{
		CompilationID: result.ID.String(),
		Sources:       &outWire,
		Summary:       result.Summary,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) writeError(conn *websocket.Conn, cause error) error {
	resp := compileResponse{Error: cause.Error()}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode error response: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// compile is a thin indirection over pipeline.Compile so tests can
// substitute a fake without standing up a real websocket round trip.
var compile = pipeline.Compile
