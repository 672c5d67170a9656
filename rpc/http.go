package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"salegate/crypto"
	"salegate/native/sale"
	"salegate/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32030
	codeRateLimited    = -32020
)

// Server exposes the sale engine over a JSON-RPC style HTTP endpoint.
// Privileged methods require the configured bearer token in addition to the
// engine's own capability checks on the caller identity.
type Server struct {
	engine    *sale.Engine
	authToken string
	logger    *slog.Logger

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perMin   float64
	burst    int
}

// NewServer wires the RPC surface around the engine.
func NewServer(engine *sale.Engine, authToken string, requestsPerMinute float64, burst int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	if burst <= 0 {
		burst = 20
	}
	return &Server{
		engine:    engine,
		authToken: strings.TrimSpace(authToken),
		logger:    logger,
		visitors:  make(map[string]*rate.Limiter),
		perMin:    requestsPerMinute,
		burst:     burst,
	}
}

// Handler returns the HTTP handler tree: the RPC endpoint, prometheus
// metrics and a liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves the handler on addr and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	client := clientID(r)
	if !s.allow(client) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "too many requests", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	req := &RPCRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	corr := uuid.NewString()
	logger := s.logger.With("method", req.Method, "request", corr).With(logging.MaskField("client", client))

	if isPrivileged(req.Method) {
		if err := s.authorize(r); err != nil {
			logger.Warn("unauthorized privileged call")
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error(), nil)
			return
		}
	}

	result, rpcErr := s.dispatch(req)
	if rpcErr != nil {
		logger.Info("rpc call rejected", "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	logger.Debug("rpc call completed")
	writeResult(w, req.ID, result)
}

func isPrivileged(method string) bool {
	switch method {
	case "sale_updatePrice", "sale_setActive", "sale_deposit",
		"sale_denylistAdd", "sale_denylistRemove",
		"sale_pause", "sale_unpause",
		"sale_recover", "sale_resetBreaker":
		return true
	}
	return false
}

func (s *Server) authorize(r *http.Request) error {
	if s.authToken == "" {
		return errors.New("privileged methods disabled: no auth token configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return errors.New("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return errors.New("Authorization header must use Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return errors.New("invalid bearer token")
	}
	return nil
}

func (s *Server) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.perMin/60.0), s.burst)
		s.visitors[client] = limiter
	}
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func httpStatusFor(code int) int {
	switch code {
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeServerError:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func (s *Server) dispatch(req *RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "sale_purchase":
		return s.handlePurchase(req)
	case "sale_quoteToPayment":
		return s.handleQuote(req, func(amount *big.Int) (*big.Int, error) {
			return s.engine.QuotePayment(amount)
		})
	case "sale_quoteToQuantity":
		return s.handleQuote(req, func(amount *big.Int) (*big.Int, error) {
			return s.engine.QuoteQuantity(amount)
		})
	case "sale_available":
		return s.handleAvailable(req)
	case "sale_stats":
		return s.handleStats(req)
	case "sale_identityStats":
		return s.handleIdentityStats(req)
	case "sale_canPurchase":
		return s.handleCanPurchase(req)
	case "sale_updatePrice":
		return s.handleUpdatePrice(req)
	case "sale_setActive":
		return s.handleSetActive(req)
	case "sale_deposit":
		return s.handleDeposit(req)
	case "sale_denylistAdd":
		return s.handleDenylistAdd(req)
	case "sale_denylistRemove":
		return s.handleDenylistRemove(req)
	case "sale_pause":
		return s.handlePause(req)
	case "sale_unpause":
		return s.handleUnpause(req)
	case "sale_recover":
		return s.handleRecover(req)
	case "sale_resetBreaker":
		return s.handleResetBreaker(req)
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)}
}

func decodeParams(req *RPCRequest, out ...interface{}) *RPCError {
	if len(req.Params) < len(out) {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("expected %d params, got %d", len(out), len(req.Params))}
	}
	for i, dst := range out {
		if err := json.Unmarshal(req.Params[i], dst); err != nil {
			return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("param %d invalid", i), Data: err.Error()}
		}
	}
	return nil
}

func parseAddressParam(value string) ([20]byte, *RPCError) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: "invalid address", Data: err.Error()}
	}
	return decoded.Array(), nil
}

func parseAmountParam(value string) (*big.Int, *RPCError) {
	amount, err := sale.ParseAmount(value)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount", Data: err.Error()}
	}
	return amount, nil
}

func engineError(err error) *RPCError {
	reason := sale.Reason(err)
	if reason != sale.ReasonNone {
		return &RPCError{Code: codeRejected, Message: err.Error(), Data: string(reason)}
	}
	if errors.Is(err, sale.ErrUnauthorized) {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	return &RPCError{Code: codeServerError, Message: err.Error()}
}
