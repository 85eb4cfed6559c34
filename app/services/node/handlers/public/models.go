package public

import "github.com/ardanlabs/ledger/business/core/ledger"

type mineRequest struct {
	Owner        string   `json:"owner" validate:"max=25"`
	Transactions []string `json:"transactions" validate:"required,min=1"`
}

type merkleRequest struct {
	Transactions []string `json:"transactions" validate:"required,min=1"`
	Transaction  string   `json:"transaction"`
}

type chain struct {
	Length int             `json:"length"`
	Chain  []ledger.Record `json:"chain"`
}

type merkleRoot struct {
	Root   string     `json:"root"`
	Rounds int        `json:"rounds"`
	Levels [][]string `json:"levels"`
}

type merkleProof struct {
	Root        string   `json:"root"`
	Transaction string   `json:"transaction"`
	Proof       []string `json:"proof"`
	Order       []int64  `json:"order"`
}

type status struct {
	Address   string `json:"address"`
	Owner     string `json:"owner"`
	Receiving bool   `json:"receiving"`
	Mineable  bool   `json:"mineable"`
	Mined     uint64 `json:"mined"`
	Length    int    `json:"length"`
	Latest    string `json:"latest,omitempty"`

	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped_events"`
}
