package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/logging"
	"starkdemo/pkg/metrics"
	"starkdemo/pkg/validate"
	"starkdemo/pkg/wallet"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	wallet  *wallet.Wallet
	metrics metrics.Metrics
	logger  *log.Logger

	sub     wallet.Subscriber
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  *mux.Router
	http    *http.Server
}

type balanceRequest struct {
	Address string `json:"address"`
}

type balanceResponse struct {
	Address felt.Felt    `json:"address"`
	Balance felt.Uint256 `json:"balance"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// NewServer subscribes to the wallet right away so no event published
// between construction and Start is lost.
func NewServer(w *wallet.Wallet, m metrics.Metrics, logger *log.Logger) *Server {
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		wallet:  w,
		metrics: m,
		logger:  logger.WithPrefix("server"),
		sub:     w.Subscribe(),
		clients: make(map[*websocket.Conn]bool),
		router:  mux.NewRouter(),
	}
	s.routes()
	go s.listenToWallet()
	return s
}

func (s *Server) routes() {
	// Registered on the root router so a method mismatch answers 405.
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/balance", s.handleBalance).Methods(http.MethodPost)
	s.router.HandleFunc("/api/transfer", s.handleTransfer).Methods(http.MethodPost)
	s.router.HandleFunc("/api/receipt", s.handleCheckStatus).Methods(http.MethodPost)
	s.router.HandleFunc("/api/receipt/{hash}", s.handleReceipt).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWS)
	s.router.Handle("/metrics", s.metrics.HTTPHandler())
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info("API server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and drops the wallet subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	s.wallet.Unsubscribe(s.sub)
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// opError maps wallet errors to a status code. Node failures are 502.
func opError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrNoAccount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrNoTransaction):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wallet.State())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	addr := s.wallet.State().Account
	if req.Address != "" {
		parsed, err := validate.Address(req.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		addr = parsed
	}
	if addr.IsZero() {
		opError(w, config.ErrNoAccount)
		return
	}

	bal, err := s.wallet.CheckBalance(r.Context(), addr)
	if err != nil {
		opError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: bal})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	recipient, err := validate.Address(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := validate.Amount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.wallet.SendTransaction(r.Context(), recipient, amount)
	if err != nil {
		opError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.wallet.CheckStatus(r.Context())
	if err != nil {
		opError(w, err)
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	hash, err := validate.Address(mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction hash")
		return
	}
	receipt, err := s.wallet.LookupReceipt(r.Context(), hash)
	if err != nil {
		opError(w, err)
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Registering and sending the initial state under one lock keeps
	// broadcast from writing to the connection first.
	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.wallet.State(),
	})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWallet() {
	for event := range s.sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event wallet.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
