package parser

import (
	"encoding/json"
	"fmt"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/shopspring/decimal"
)

const tokenEventTransfer = "Transfer"

// ParseTokenTransfer maps a TRC-20 token event. Addresses arrive in display
// form already, so they are passed through unchanged.
func ParseTokenTransfer(_ string, raw json.RawMessage) (model.TokenTransfer, error) {
	var ev tokenEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.TokenTransfer{}, invalid(txIDOf(raw), "", err)
	}
	if ev.Type != tokenEventTransfer {
		return model.TokenTransfer{}, ErrSkip
	}

	id := ev.TransactionID
	switch {
	case id == "":
		return model.TokenTransfer{}, missing("", "transaction_id")
	case ev.TokenInfo == nil || ev.TokenInfo.Address == "":
		return model.TokenTransfer{}, missing(id, "token_info.address")
	case ev.BlockTimestamp == nil:
		return model.TokenTransfer{}, missing(id, "block_timestamp")
	case ev.From == "":
		return model.TokenTransfer{}, missing(id, "from")
	case ev.To == "":
		return model.TokenTransfer{}, missing(id, "to")
	case ev.Value == "":
		return model.TokenTransfer{}, missing(id, "value")
	}

	if err := validateAmount(ev.Value); err != nil {
		return model.TokenTransfer{}, invalid(id, "value", err)
	}

	return model.TokenTransfer{
		TxID:           id,
		TokenAddress:   ev.TokenInfo.Address,
		BlockTimestamp: *ev.BlockTimestamp,
		From:           ev.From,
		To:             ev.To,
		Value:          ev.Value,
	}, nil
}

// validateAmount accepts non-negative integers of any size.
func validateAmount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return fmt.Errorf("negative amount %s", s)
	}
	if !d.Equal(d.Truncate(0)) {
		return fmt.Errorf("fractional amount %s", s)
	}
	return nil
}
