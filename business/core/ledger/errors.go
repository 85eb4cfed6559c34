package ledger

import (
	"errors"
	"fmt"
)

// Set of errors returned by the ledger.
var (
	ErrNoTransactions = errors.New("a block needs at least one transaction")
	ErrInvalidChain   = errors.New("chain failed validation")
)

// AttributeError is returned when an operation requires a readiness flag
// of the node that is not set.
type AttributeError struct {
	Attribute string
	Operation string
}

// Error implements the error interface.
func (ae *AttributeError) Error() string {
	return fmt.Sprintf("%s requires %s to be set", ae.Operation, ae.Attribute)
}

// IsAttributeError checks if an error of type AttributeError exists.
func IsAttributeError(err error) bool {
	var ae *AttributeError
	return errors.As(err, &ae)
}
