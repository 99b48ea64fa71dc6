package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantbot/internal/broker"
	"quantbot/internal/domain"
	"quantbot/internal/engine"
)

// Server serves the trading platform REST API.
type Server struct {
	engine *engine.Engine
	broker broker.Broker
	stores engine.Stores
	mode   string
	log    *slog.Logger
}

// NewServer creates a Server backed by the given engine, broker, and stores.
func NewServer(e *engine.Engine, b broker.Broker, stores engine.Stores, mode string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine: e,
		broker: b,
		stores: stores,
		mode:   mode,
		log:    log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/v1/results", s.handleResults)
	mux.HandleFunc("GET /api/v1/candles", s.handleCandles)
	mux.HandleFunc("GET /api/v1/trades", s.handleTrades)
	mux.HandleFunc("GET /api/v1/signals", s.handleSignals)
	mux.HandleFunc("GET /api/v1/orders", s.handleOrders)
	mux.HandleFunc("GET /api/v1/positions", s.handlePositions)
	mux.HandleFunc("GET /api/v1/account", s.handleAccount)
}

// Handler returns an http.Handler with logging and CORS middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit extracts the "limit" query param, falling back to def.
func parseLimit(r *http.Request, def int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Mode: s.mode})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.engine.Strategies()})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Strategy == "" || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "strategy and symbol are required")
		return
	}

	result, err := s.engine.RunBacktestFor(r.Context(), req.Strategy, strings.ToUpper(req.Symbol), req.Limit)
	if err != nil {
		if strings.Contains(err.Error(), "unknown strategy") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("backtest failed: %v", err))
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.stores.Results.ListResults(r.Context(), r.URL.Query().Get("strategy"), parseLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if results == nil {
		results = []domain.BacktestResult{}
	}
	writeJSON(w, ResultsResponse{Results: results})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1h"
	}

	start, end := time.Time{}, time.Now().UTC()
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		end = t
	}

	candles, err := s.stores.Candles.ReadCandles(r.Context(), symbol, timeframe, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read candles")
		return
	}
	if candles == nil {
		candles = []domain.Candle{}
	}
	writeJSON(w, CandlesResponse{Symbol: symbol, Timeframe: timeframe, Candles: candles})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.stores.Trades.ListTrades(r.Context(), strings.ToUpper(r.URL.Query().Get("symbol")), parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, TradesResponse{Trades: trades})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.stores.Signals.ListSignals(r.Context(), r.URL.Query().Get("strategy"), parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	writeJSON(w, SignalsResponse{Signals: signals})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, err := s.stores.Orders.ListOrders(r.Context(), status, parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, OrdersResponse{Orders: orders})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.broker.GetPositions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, PositionsResponse{Positions: positions})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.broker.GetAccount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	writeJSON(w, account)
}
