package parser

import (
	"errors"
	"fmt"
)

// ErrSkip marks a raw transaction that is well formed but belongs to another
// crawl kind (legacy asset transfers, non-Transfer token events).
var ErrSkip = errors.New("skip transaction")

var ErrMissingField = errors.New("missing field")

// ParseError reports a raw transaction that could not be mapped. It is scoped to
// that single transaction and never aborts a batch.
type ParseError struct {
	TxID  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	txID := e.TxID
	if txID == "" {
		txID = "<unknown>"
	}
	if e.Field != "" {
		return fmt.Sprintf("parse tx %s: %s: %v", txID, e.Field, e.Err)
	}
	return fmt.Sprintf("parse tx %s: %v", txID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func missing(txID, field string) error {
	return &ParseError{TxID: txID, Field: field, Err: ErrMissingField}
}

func invalid(txID, field string, err error) error {
	return &ParseError{TxID: txID, Field: field, Err: err}
}

// IsSkip reports whether err is a skip decision rather than a failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkip)
}
