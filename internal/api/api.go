// Package api implements the HTTP/WebSocket surface of spec §6, against
// gorilla/mux and gorilla/websocket, fanned out through an ants.Pool,
// grounded on the teacher's internal/net/server.go Server/Run shape
// generalized from a raw TCP wire protocol to JSON-over-HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"freightex/internal/book"
	"freightex/internal/common"
	"freightex/internal/contract"
	"freightex/internal/engine"
	"freightex/internal/ledger"
	"freightex/internal/metrics"
	"freightex/internal/scheduler"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Server wires every collaborator to the §6 endpoint contract.
type Server struct {
	Engine    *engine.Engine
	Books     *book.Manager
	Ledger    *ledger.Ledger
	Registry  *contract.Registry
	Scheduler *scheduler.Scheduler

	broadcaster *broadcaster
	upgrader    websocket.Upgrader
}

// New returns a Server ready to be mounted with Router.
func New(eng *engine.Engine, books *book.Manager, l *ledger.Ledger, registry *contract.Registry, sched *scheduler.Scheduler) (*Server, error) {
	bc, err := newBroadcaster()
	if err != nil {
		return nil, err
	}
	return &Server{
		Engine:      eng,
		Books:       books,
		Ledger:      l,
		Registry:    registry,
		Scheduler:   sched,
		broadcaster: bc,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}, nil
}

// Close releases the broadcaster's worker goroutine and pool.
func (s *Server) Close() {
	s.broadcaster.Close()
}

// Router returns the gorilla/mux router for every §6 endpoint plus
// /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/play", s.handlePlay).Methods(http.MethodPost)
	r.HandleFunc("/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/resume", s.handleResume).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	r.HandleFunc("/orderbook/{book_id}", s.handleOrderbook).Methods(http.MethodGet)
	r.HandleFunc("/balances", s.handleBalances).Methods(http.MethodGet)
	r.HandleFunc("/current_owner/{contract_id}", s.handleCurrentOwner).Methods(http.MethodGet)
	r.HandleFunc("/ws/{book_id}", s.handleWebsocket)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed writing json response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Play(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Scheduler.State())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Scheduler.State())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Resume(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Scheduler.State())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "reset-failed")
		return
	}
	writeJSON(w, http.StatusOK, s.Scheduler.State())
}

// orderRequest is the §6 POST /orders request body.
type orderRequest struct {
	Side       string          `json:"side"`
	BookID     string          `json:"book_id"`
	Price      decimal.Decimal `json:"price"`
	Qty        uint64          `json:"qty"`
	Trader     string          `json:"trader"`
	OrderType  string          `json:"order_type"`
	ContractID *string         `json:"contract_id,omitempty"`
	LegID      string          `json:"leg_id,omitempty"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad-order")
		return
	}

	side := common.Bid
	if req.Side == "ask" {
		side = common.Ask
	}
	orderType := common.LegFreight
	if req.OrderType == "CONTRACT_OWNERSHIP" {
		orderType = common.ContractOwnership
	}

	matches, err := s.Engine.Submit(side, req.BookID, req.Price, req.Qty, req.Trader, orderType, req.ContractID, req.LegID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBadOrder):
			writeError(w, http.StatusBadRequest, "bad-order")
		default:
			writeError(w, http.StatusUnprocessableEntity, "funds")
		}
		return
	}

	s.broadcaster.touch(req.BookID)

	if len(matches) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["book_id"]
	bids, asks := s.Books.Get(bookID).Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids, "asks": asks})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Snapshot())
}

func (s *Server) handleCurrentOwner(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["contract_id"]
	c, ok := s.Registry.Get(contractID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown-contract")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contract_id": contractID, "current_owner": c.CurrentOwner})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["book_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.broadcaster.register(bookID, conn, s.snapshotFrame)
}

// snapshotFrame builds the §6 streaming frame for bookID.
func (s *Server) snapshotFrame(bookID string) frame {
	bids, asks := s.Books.Get(bookID).Snapshot()
	state := s.Scheduler.State()

	var currentOwner, status string
	if contractID, ok := contractIDFromBookID(bookID); ok {
		if c, found := s.Registry.Get(contractID); found {
			currentOwner = c.CurrentOwner
			status = c.Status.String()
		}
	}

	return frame{
		BookID:                bookID,
		Orderbook:             map[string]any{"bids": bids, "asks": asks},
		Matches:               s.Engine.MatchLog(bookID),
		IotProgress:           s.iotProgress(bookID),
		Balances:              s.Ledger.Snapshot(),
		SimulationClock:       state.SimClock.Seconds(),
		IsRunning:             state.Running,
		IsPaused:              state.Paused,
		CurrentContainerOwner: currentOwner,
		ContainerStatus:       status,
	}
}

// iotProgress reports the last IoT observation recorded against bookID's
// leg (spec §6 streaming `iot_progress` field); nil for ownership books
// or legs that haven't reported yet.
func (s *Server) iotProgress(bookID string) *iotProgress {
	legID, contractID, ok := legAndContractIDFromBookID(bookID)
	if !ok {
		return nil
	}
	leg, found := s.Registry.Leg(contractID, legID)
	if !found || leg.LastIoTStatus == "" {
		return nil
	}
	return &iotProgress{
		LegID:  legID,
		Status: leg.LastIoTStatus,
		Lat:    leg.LastLat,
		Lon:    leg.LastLon,
	}
}

// frame is the §6 streaming update payload.
type frame struct {
	BookID                string                    `json:"book_id"`
	Orderbook             any                       `json:"orderbook"`
	Matches               []*engine.Match           `json:"matches"`
	IotProgress           *iotProgress              `json:"iot_progress"`
	Balances              map[string]ledger.Balance `json:"balances"`
	SimulationClock       float64                   `json:"simulation_clock"`
	IsRunning             bool                      `json:"is_running"`
	IsPaused              bool                      `json:"is_paused"`
	CurrentContainerOwner string                    `json:"current_container_owner"`
	ContainerStatus       string                    `json:"container_status"`
}

// iotProgress is the last delivery-progress observation for a leg,
// supplemented from original_source's IoTEvent (spec §6).
type iotProgress struct {
	LegID  string   `json:"leg_id"`
	Status string   `json:"status"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
}

// contractIDFromBookID extracts the contract id from a contract: book id
// (spec §6 identifier shape); ok is false for leg books.
func contractIDFromBookID(bookID string) (string, bool) {
	const prefix = "contract:"
	if len(bookID) > len(prefix) && bookID[:len(prefix)] == prefix {
		return bookID[len(prefix):], true
	}
	return "", false
}

// legAndContractIDFromBookID splits a <leg_id>_<contract_id> leg book id
// (spec §6 identifier shape); ok is false for ownership books.
func legAndContractIDFromBookID(bookID string) (legID, contractID string, ok bool) {
	if _, isOwnership := contractIDFromBookID(bookID); isOwnership {
		return "", "", false
	}
	legID, contractID, found := strings.Cut(bookID, "_")
	if !found {
		return "", "", false
	}
	return legID, contractID, true
}
