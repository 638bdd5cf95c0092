// Package console serves a remote G-code console for a mixing extruder
// over websocket and plain HTTP, speaking JSON-RPC 2.0 in the style of
// Moonraker.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mixing-extruder/pkg/gcode"
	"mixing-extruder/pkg/log"
	"mixing-extruder/pkg/mixing"
)

// Version is reported by server.info.
const Version = "0.3.0"

// Config holds server configuration.
type Config struct {
	// HTTP address to listen on (e.g., ":7125")
	Addr string

	Mixer      *mixing.Mixer
	Dispatcher *gcode.Dispatcher
}

// Server is the console API server.
type Server struct {
	mixer      *mixing.Mixer
	dispatcher *gcode.Dispatcher
	addr       string
	logger     *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientMu sync.RWMutex
	clients  map[string]*wsClient

	// scriptMu keeps the lines of one script from interleaving with
	// another client's.
	scriptMu sync.Mutex

	mu        sync.Mutex
	listener  net.Listener
	running   atomic.Bool
	startTime time.Time
}

// New creates a console server.
func New(cfg Config) *Server {
	s := &Server{
		mixer:      cfg.Mixer,
		dispatcher: cfg.Dispatcher,
		addr:       cfg.Addr,
		logger:     log.GetLogger("console"),
		clients:    make(map[string]*wsClient),
		startTime:  time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the HTTP handler serving /websocket, /jsonrpc and the
// REST shortcuts under /server and /mixer.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/jsonrpc", s.handleJSONRPC)
	r.HandleFunc("/websocket", s.handleWebSocket)
	r.HandleFunc("/server/info", s.handleServerInfo).Methods(http.MethodGet)
	r.HandleFunc("/mixer/status", s.handleMixerStatus).Methods(http.MethodGet)
	r.HandleFunc("/mixer/tool/{tool}", s.handleSelectTool).Methods(http.MethodPost)
	return corsMiddleware(r)
}

// Start listens and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)

	s.logger.WithField("addr", ln.Addr().String()).Info("console server listening")
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Running reports whether Start is serving.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Shutdown closes every websocket client and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = make(map[string]*wsClient)
	s.clientMu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// Broadcast sends a JSON-RPC notification to every websocket client.
func (s *Server) Broadcast(method string, params ...any) {
	msg := notification{JSONRPC: "2.0", Method: method, Params: params}
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.Send(msg)
	}
}

// JSON-RPC 2.0 structures

type request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// methodError carries a JSON-RPC error code out of a method.
type methodError struct {
	code int
	msg  string
}

func (e *methodError) Error() string { return e.msg }

func invalidParams(format string, args ...any) error {
	return &methodError{code: codeInvalidParams, msg: fmt.Sprintf(format, args...)}
}

func toRPCError(err error) *rpcError {
	if me, ok := err.(*methodError); ok {
		return &rpcError{Code: me.code, Message: me.msg}
	}
	return &rpcError{Code: codeServerError, Message: err.Error()}
}

// call runs one JSON-RPC request. client is nil for plain HTTP.
func (s *Server) call(req request, client *wsClient) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}
	result, err := s.dispatchMethod(req.Method, req.Params, client)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) dispatchMethod(method string, params map[string]any, client *wsClient) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo(), nil
	case "server.connection.identify":
		return s.methodIdentify(params, client)
	case "printer.gcode.script":
		return s.methodGCodeScript(params)
	case "printer.gcode.help":
		return s.dispatcher.Commands(), nil
	case "mixer.status":
		return s.status(), nil
	case "mixer.select_tool":
		return s.methodSelectTool(params)
	default:
		return nil, &methodError{code: codeMethodNotFound, msg: "method not found: " + method}
	}
}

func (s *Server) methodServerInfo() map[string]any {
	hostname, _ := os.Hostname()
	return map[string]any{
		"version":         Version,
		"hostname":        hostname,
		"websocket_count": s.ClientCount(),
		"uptime":          time.Since(s.startTime).Seconds(),
		"steppers":        s.mixer.Steppers(),
		"virtual_tools":   s.mixer.Tools(),
	}
}

func (s *Server) methodIdentify(params map[string]any, client *wsClient) (any, error) {
	if client == nil {
		return nil, invalidParams("identify requires a websocket connection")
	}
	if name, ok := params["client_name"].(string); ok {
		client.setName(name)
	}
	return map[string]any{"connection_id": client.id.String()}, nil
}

// methodGCodeScript runs a script and returns every response line. Each
// line is also broadcast as notify_gcode_response.
func (s *Server) methodGCodeScript(params map[string]any) (any, error) {
	script, ok := params["script"].(string)
	if !ok {
		return nil, invalidParams("missing 'script' parameter")
	}

	s.scriptMu.Lock()
	defer s.scriptMu.Unlock()

	out := &gcode.BufferResponder{}
	err := s.dispatcher.RunScript(script, out)
	if err != nil {
		gcode.RespondError(out, err)
	}
	lines := out.Lines()
	for _, line := range lines {
		s.Broadcast("notify_gcode_response", line)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"responses": lines}, nil
}

func (s *Server) methodSelectTool(params map[string]any) (any, error) {
	raw, ok := params["tool"].(float64)
	if !ok || raw != float64(int(raw)) {
		return nil, invalidParams("'tool' must be an integer")
	}
	tool := int(raw)
	if tool < 0 || tool >= s.mixer.Tools() {
		return nil, invalidParams("tool %d out of range [0,%d)", tool, s.mixer.Tools())
	}
	s.mixer.Select(tool)
	status := s.status()
	s.Broadcast("notify_mixer_update", status)
	return status, nil
}

// ToolStatus is one row of the mixer.status result.
type ToolStatus struct {
	Tool        int       `json:"tool"`
	Ratios      []float64 `json:"ratios"`
	Percentages []float64 `json:"percentages"`
}

// Status is the mixer.status result.
type Status struct {
	Steppers   int          `json:"steppers"`
	ActiveTool int          `json:"active_tool"`
	Tools      []ToolStatus `json:"tools"`
	Delivered  []uint64     `json:"delivered"`
}

func (s *Server) status() Status {
	m := s.mixer
	st := Status{
		Steppers:   m.Steppers(),
		ActiveTool: m.ActiveTool(),
		Tools:      make([]ToolStatus, 0, m.Tools()),
		Delivered:  m.Delivered(),
	}
	for tool := 0; tool < m.Tools(); tool++ {
		ratios, _ := m.Row(tool)
		pct, _ := m.Percentages(tool)
		st.Tools = append(st.Tools, ToolStatus{Tool: tool, Ratios: ratios, Percentages: pct})
	}
	return st
}

// HTTP handlers

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	writeJSON(w, s.call(req, nil))
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"result": s.methodServerInfo()})
}

func (s *Server) handleMixerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"result": s.status()})
}

func (s *Server) handleSelectTool(w http.ResponseWriter, r *http.Request) {
	tool, err := strconv.Atoi(mux.Vars(r)["tool"])
	if err != nil {
		http.Error(w, "tool must be an integer", http.StatusBadRequest)
		return
	}
	result, err := s.methodSelectTool(map[string]any{"tool": float64(tool)})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": toRPCError(err)})
		return
	}
	writeJSON(w, map[string]any{"result": result})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
