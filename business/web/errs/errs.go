// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/foundation/blockchain/block"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap returns the wrapped error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// FromLedger classifies the errors of the ledger packages that a client
// caused or can act on. Any other error is returned unchanged.
func FromLedger(err error) error {
	switch {
	case ledger.IsAttributeError(err):
		return NewTrusted(err, http.StatusConflict)
	case errors.Is(err, ledger.ErrNoTransactions),
		errors.Is(err, block.ErrOwnerTooLong),
		errors.Is(err, merkle.ErrSize):
		return NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, merkle.ErrNotFound):
		return NewTrusted(err, http.StatusNotFound)
	case errors.Is(err, pow.ErrExhausted), errors.Is(err, pow.ErrUnreachable):
		return NewTrusted(err, http.StatusUnprocessableEntity)
	}
	return err
}
