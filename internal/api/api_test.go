package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"freightex/internal/book"
	"freightex/internal/contract"
	"freightex/internal/engine"
	"freightex/internal/ledger"
	"freightex/internal/scheduler"
	"freightex/internal/settlement"
	"freightex/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestServer(t *testing.T) *Server {
	l := ledger.New()
	books := book.NewManager()
	registry := contract.NewRegistry(l)
	settle := settlement.New(l, registry, "Platform")
	st := store.New()
	eng := engine.New(books, st, l, settle, registry)
	sched := scheduler.New(nil)

	srv, err := New(eng, books, l, registry, sched)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleSubmitOrder_RestsOnEmptyBook(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Ledger.Fund("T1", mustDecimal("1000")))

	body, _ := json.Marshal(orderRequest{
		Side: "bid", BookID: "L1_C1", Price: mustDecimal("100"), Qty: 1, Trader: "T1",
		OrderType: "LEG_FREIGHT", LegID: "L1",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	bids, _ := s.Books.Get("L1_C1").Snapshot()
	require.Len(t, bids, 1)
}

func TestHandleSubmitOrder_RejectsBadOrder(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(orderRequest{Side: "bid", BookID: "L1_C1", Price: mustDecimal("0"), Qty: 1, Trader: "T1"})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBalances(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Ledger.Fund("T1", mustDecimal("500")))

	req := httptest.NewRequest(http.MethodGet, "/balances", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got map[string]ledger.Balance
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got["T1"].Available.Equal(mustDecimal("500")))
}

func TestHandlePlayPauseResumeReset(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/play", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCurrentOwner_UnknownContract(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/current_owner/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
