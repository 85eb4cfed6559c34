package public

import (
	"net/http"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/ardanlabs/ledger/foundation/workerpool"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	Ledger *ledger.Ledger
	Pool   *workerpool.Pool
	Evts   *events.Events
}

// Routes binds all the public routes.
func Routes(app *web.App, cfg Config) {
	pbl := Handlers{
		Log:    cfg.Log,
		Ledger: cfg.Ledger,
		Pool:   cfg.Pool,
		WS:     websocket.Upgrader{},
		Evts:   cfg.Evts,
	}

	const version = "v1"

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/mine", pbl.MineDefault)
	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)
	app.Handle(http.MethodPost, version, "/merkle/root", pbl.MerkleRoot)
	app.Handle(http.MethodPost, version, "/merkle/proof", pbl.MerkleProof)
	app.Handle(http.MethodGet, version, "/pool/stats", pbl.PoolStats)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
}
