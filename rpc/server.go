package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bazaar/core"
	"bazaar/observability"
	telemetry "bazaar/observability/otel"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	moduleName      = "bazaar"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeUnderFunded    = -32002
	codeForbidden      = -32003
	codeNotFound       = -32004
	codeConflict       = -32009
	codeRateLimited    = -32020
	codeTooEarly       = -32025
	codePaused         = -32030
	codeLedgerFailure  = -32050
)

// Config carries the transport settings of the JSON-RPC server.
type Config struct {
	AuthToken         string
	JWTSecret         string
	JWTIssuer         string
	RequestsPerMinute float64
	Burst             int
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// Server exposes the node over JSON-RPC 2.0.
type Server struct {
	node        *core.Node
	cfg         Config
	limiter     *rateLimiter
	idempotency IdempotencyStore
	hub         *Hub
	logger      *slog.Logger
	instruments *telemetry.RPCInstruments
	methods     map[string]method
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type method struct {
	mutating bool
	handler  handlerFunc
}

// Option customises a Server.
type Option func(*Server)

// WithIdempotencyStore enables Idempotency-Key replay for mutating methods.
func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(s *Server) { s.idempotency = store }
}

// WithHub streams committed events over /ws.
func WithHub(hub *Hub) Option {
	return func(s *Server) { s.hub = hub }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(node *core.Node, cfg Config, opts ...Option) *Server {
	s := &Server{
		node:    node,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "rpc")
	instruments, err := telemetry.NewRPCInstruments()
	if err != nil {
		s.logger.Warn("otel instruments unavailable", "error", err)
	}
	s.instruments = instruments
	s.methods = s.routes()
	return s
}

func (s *Server) routes() map[string]method {
	mut := func(h handlerFunc) method { return method{mutating: true, handler: h} }
	read := func(h handlerFunc) method { return method{handler: h} }
	return map[string]method{
		"market_createListing":  mut(s.handleCreateListing),
		"market_updateListing":  mut(s.handleUpdateListing),
		"market_makeOffer":      mut(s.handleMakeOffer),
		"market_acceptOffer":    mut(s.handleAcceptOffer),
		"market_declineOffer":   mut(s.handleDeclineOffer),
		"market_withdrawOffer":  mut(s.handleWithdrawOffer),
		"market_finalize":       mut(s.handleFinalize),
		"market_dispute":        mut(s.handleDispute),
		"market_giveRuling":     mut(s.handleGiveRuling),
		"market_getListing":     read(s.handleGetListing),
		"market_getOffer":       read(s.handleGetOffer),
		"market_getDispute":     read(s.handleGetDispute),
		"market_listEvents":     read(s.handleListEvents),
		"arbitrator_register":   mut(s.handleArbitratorRegister),
		"arbitrator_giveRuling": mut(s.handleArbitratorGiveRuling),
		"arbitrator_get":        read(s.handleArbitratorGet),
		"vesting_createGrant":   mut(s.handleCreateGrant),
		"vesting_get":           read(s.handleGetGrant),
		"vesting_vest":          mut(s.handleVest),
		"vesting_revoke":        mut(s.handleRevoke),
		"token_balanceOf":       read(s.handleTokenBalance),
		"token_allowance":       read(s.handleTokenAllowance),
		"token_approve":         mut(s.handleTokenApprove),
		"token_transfer":        mut(s.handleTokenTransfer),
		"account_balance":       read(s.handleAccountBalance),
		"identity_register":     mut(s.handleIdentityRegister),
		"identity_get":          read(s.handleIdentityGet),
	}
}

// Handler returns the HTTP surface: JSON-RPC at POST /, plus /healthz,
// /metrics and the /ws event stream.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		r.Get("/ws", s.handleEventsWS)
	}
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "bazaar-rpc")
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusWriter records the status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// handle decodes one JSON-RPC request and routes it to its handler.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
		return
	}

	source := clientSource(r)
	metrics := observability.ModuleMetrics()
	if !s.limiter.allow(source) {
		metrics.RecordThrottle(moduleName, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), req.Method)
	defer span.End()
	r = r.WithContext(ctx)

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	if m.mutating {
		s.withIdempotency(sw, r, req, m.handler)
	} else {
		m.handler(sw, r, req)
	}
	elapsed := time.Since(start)
	metrics.Observe(moduleName, req.Method, sw.status, elapsed)
	s.instruments.Record(ctx, req.Method, sw.status, elapsed)
}
