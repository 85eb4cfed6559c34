// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/ardanlabs/ledger/foundation/workerpool"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Ledger *ledger.Ledger
	Pool   *workerpool.Pool
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Chain returns every block mined so far.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	records := h.Ledger.Chain()

	resp := chain{
		Length: len(records),
		Chain:  records,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MineDefault mines a block holding the default transactions.
func (h Handlers) MineDefault(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.mine(ctx, w, "", ledger.DefaultTransactions)
}

// Mine mines a block holding the transactions in the request.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	return h.mine(ctx, w, req.Owner, req.Transactions)
}

// mine runs the mining on the worker pool and waits for the block.
func (h Handlers) mine(ctx context.Context, w http.ResponseWriter, owner string, txs []string) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.Log.Infow("mine", "traceid", v.TraceID, "owner", owner, "transactions", len(txs))

	var rec ledger.Record
	var mineErr error
	job := func() {
		rec, mineErr = h.Ledger.Mine(ctx, owner, txs)
	}

	if err := h.Pool.Do(ctx, job); err != nil {
		if errors.Is(err, workerpool.ErrClosed) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	if mineErr != nil {
		return errs.FromLedger(mineErr)
	}

	return web.Respond(ctx, w, rec, http.StatusOK)
}

// MerkleRoot computes the merkle root of the transactions in the request.
func (h Handlers) MerkleRoot(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req merkleRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	tree := merkle.NewTree(req.Transactions)
	if err := tree.Build(); err != nil {
		return errs.FromLedger(err)
	}

	root, err := tree.Root()
	if err != nil {
		return errs.FromLedger(err)
	}

	resp := merkleRoot{
		Root:   root,
		Rounds: tree.Rounds(),
		Levels: tree.Levels(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MerkleProof returns the proof that a transaction is part of the tree.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req merkleRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	tree := merkle.NewTree(req.Transactions)
	if err := tree.Build(); err != nil {
		return errs.FromLedger(err)
	}

	root, err := tree.Root()
	if err != nil {
		return errs.FromLedger(err)
	}

	proof, order, err := tree.Proof(req.Transaction)
	if err != nil {
		return errs.FromLedger(err)
	}

	resp := merkleProof{
		Root:        root,
		Transaction: req.Transaction,
		Proof:       proof,
		Order:       order,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// PoolStats returns the counters of the worker pool.
func (h Handlers) PoolStats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Pool.Stats(), http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := status{
		Address:   h.Ledger.Address(),
		Owner:     h.Ledger.Owner(),
		Receiving: h.Ledger.Receiving(),
		Mineable:  h.Ledger.Mineable(),
		Mined:     h.Ledger.NumMined(),
		Length:    h.Ledger.Length(),
	}

	if latest, ok := h.Ledger.Latest(); ok {
		resp.Latest = hashing.Encode(latest.Hash)
	}

	if h.Evts != nil {
		resp.Subscribers = h.Evts.Len()
		resp.Dropped = h.Evts.Dropped()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
