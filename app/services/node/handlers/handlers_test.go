package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/store"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type node struct {
	ledger *ledger.Ledger
	pool   *workerpool.Pool
	mux    http.Handler
}

func newNode(t *testing.T) node {
	ldgr, err := ledger.New(ledger.Config{
		Address: "localhost:3000",
		Owner:   "miner1",
		Store:   store.NewMemory(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a ledger: %v", failed, err)
	}

	pool, err := workerpool.New(2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a pool: %v", failed, err)
	}
	t.Cleanup(pool.Shutdown)

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		Ledger:   ldgr,
		Pool:     pool,
		Evts:     events.New(),
	})

	return node{ledger: ldgr, pool: pool, mux: mux}
}

func (n node) call(t *testing.T, method string, path string, body any, resp any) int {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("\t%s\tShould be able to encode the request: %v", failed, err)
		}
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	n.mux.ServeHTTP(w, r)

	if resp != nil {
		if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the response of %s: %v", failed, path, err)
		}
	}

	return w.Code
}

// =============================================================================

func TestMine(t *testing.T) {
	n := newNode(t)

	t.Log("Given the need to mine blocks through the web api.")
	{
		var er struct {
			Error string `json:"error"`
		}
		if code := n.call(t, http.MethodGet, "/v1/mine", nil, &er); code != http.StatusConflict {
			t.Fatalf("\t%s\tShould refuse to mine while not mineable: %d %v", failed, code, er)
		}
		t.Logf("\t%s\tShould refuse to mine while not mineable.", success)

		n.ledger.SetMineable(true)

		var rec ledger.Record
		if code := n.call(t, http.MethodGet, "/v1/mine", nil, &rec); code != http.StatusOK {
			t.Fatalf("\t%s\tShould mine the default transactions: %d", failed, code)
		}
		if got := rec.Block.Transactions(); len(got) != 3 || got[0] != "tx1" {
			t.Fatalf("\t%s\tShould mine the default transactions: %v", failed, got)
		}
		t.Logf("\t%s\tShould mine the default transactions.", success)

		req := map[string]any{"owner": "alice", "transactions": []string{"a", "b"}}
		if code := n.call(t, http.MethodPost, "/v1/mine", req, &rec); code != http.StatusOK {
			t.Fatalf("\t%s\tShould mine the requested transactions: %d", failed, code)
		}
		if rec.Block.Owner() != "alice" || rec.Block.Index() != 2 {
			t.Fatalf("\t%s\tShould mine the requested transactions: %s %d", failed, rec.Block.Owner(), rec.Block.Index())
		}
		t.Logf("\t%s\tShould mine the requested transactions.", success)

		var fe struct {
			Fields map[string]string `json:"fields"`
		}
		req = map[string]any{"owner": strings.Repeat("x", 26), "transactions": []string{}}
		if code := n.call(t, http.MethodPost, "/v1/mine", req, &fe); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an invalid request: %d", failed, code)
		}
		if _, ok := fe.Fields["owner"]; !ok {
			t.Fatalf("\t%s\tShould report the invalid owner: %v", failed, fe.Fields)
		}
		t.Logf("\t%s\tShould reject an invalid request.", success)

		// The refused block was mined on the pool as well.
		if stats := n.pool.Stats(); stats.Submitted != 3 {
			t.Fatalf("\t%s\tShould mine on the worker pool: %+v", failed, stats)
		}
		t.Logf("\t%s\tShould mine on the worker pool.", success)

		var ch struct {
			Length int             `json:"length"`
			Chain  []ledger.Record `json:"chain"`
		}
		if code := n.call(t, http.MethodGet, "/v1/chain", nil, &ch); code != http.StatusOK || ch.Length != 2 || len(ch.Chain) != 2 {
			t.Fatalf("\t%s\tShould return the chain: %d %d", failed, code, ch.Length)
		}
		if err := ledger.ValidateChain(ch.Chain, pow.MaxDifficulty, pow.BitTarget); err != nil {
			t.Fatalf("\t%s\tShould return a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould return a valid chain.", success)

		var st struct {
			Mined  uint64 `json:"mined"`
			Length int    `json:"length"`
			Latest string `json:"latest"`

			Subscribers *int `json:"subscribers"`
		}
		if code := n.call(t, http.MethodGet, "/v1/node/status", nil, &st); code != http.StatusOK || st.Mined != 2 || st.Latest != hashing.Encode(ch.Chain[1].Hash) || st.Subscribers == nil || *st.Subscribers != 0 {
			t.Fatalf("\t%s\tShould return the node status: %d %+v", failed, code, st)
		}
		t.Logf("\t%s\tShould return the node status.", success)
	}
}

func TestMerkle(t *testing.T) {
	n := newNode(t)

	t.Log("Given the need to compute merkle roots and proofs through the web api.")
	{
		txs := []string{"a", "b", "c"}

		var root struct {
			Root   string `json:"root"`
			Rounds int    `json:"rounds"`
		}
		if code := n.call(t, http.MethodPost, "/v1/merkle/root", map[string]any{"transactions": txs}, &root); code != http.StatusOK {
			t.Fatalf("\t%s\tShould compute the root: %d", failed, code)
		}
		if root.Rounds != 2 {
			t.Fatalf("\t%s\tShould take two rounds for three transactions: %d", failed, root.Rounds)
		}
		t.Logf("\t%s\tShould compute the root.", success)

		var proof struct {
			Root  string   `json:"root"`
			Proof []string `json:"proof"`
			Order []int64  `json:"order"`
		}
		if code := n.call(t, http.MethodPost, "/v1/merkle/proof", map[string]any{"transactions": txs, "transaction": "b"}, &proof); code != http.StatusOK {
			t.Fatalf("\t%s\tShould compute the proof: %d", failed, code)
		}
		if err := merkle.VerifyProof(root.Root, "b", proof.Proof, proof.Order); err != nil || proof.Root != root.Root {
			t.Fatalf("\t%s\tShould return a proof that verifies: %v", failed, err)
		}
		t.Logf("\t%s\tShould return a proof that verifies.", success)

		if code := n.call(t, http.MethodPost, "/v1/merkle/proof", map[string]any{"transactions": txs, "transaction": "z"}, nil); code != http.StatusNotFound {
			t.Fatalf("\t%s\tShould not prove a missing transaction: %d", failed, code)
		}
		t.Logf("\t%s\tShould not prove a missing transaction.", success)

		if code := n.call(t, http.MethodPost, "/v1/merkle/root", map[string]any{"transactions": []string{}}, nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an empty transaction list: %d", failed, code)
		}
		t.Logf("\t%s\tShould reject an empty transaction list.", success)
	}
}

func TestDebugMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := workerpool.NewMetrics("test", reg); err != nil {
		t.Fatalf("\t%s\tShould be able to register metrics: %v", failed, err)
	}

	mux := handlers.DebugMux("test", zap.NewNop().Sugar(), reg, func() error { return nil })

	for _, path := range []string{"/debug/readiness", "/debug/liveness", "/metrics"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould serve %s: %d", failed, path, w.Code)
		}
	}
	t.Logf("\t%s\tShould serve the debug endpoints.", success)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "test_workerpool_jobs_submitted_total") {
		t.Fatalf("\t%s\tShould expose the pool metrics.", failed)
	}
	t.Logf("\t%s\tShould expose the pool metrics.", success)
}
