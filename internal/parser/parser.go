// Package parser maps raw TronGrid payloads to canonical records. Every parse
// function returns exactly one of: a record, ErrSkip, or a *ParseError.
package parser

import (
	"encoding/json"

	"github.com/fystack/tron-ledger-crawler/internal/model"
)

// Func is the per-kind parse signature used by the crawl engine.
type Func[T model.Record] func(account string, raw json.RawMessage) (T, error)

var (
	_ Func[model.Transaction]   = ParseOutbound
	_ Func[model.Transaction]   = ParseInbound
	_ Func[model.TokenTransfer] = ParseTokenTransfer
)
