package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type (
	// shapeProbe tells the contract shape (raw_data envelope) apart from the
	// internal-call trace shape (flat, data.call_value).
	shapeProbe struct {
		RawData json.RawMessage `json:"raw_data"`
		Data    json.RawMessage `json:"data"`
	}

	contractTxn struct {
		TxID           string          `json:"txID"`
		BlockNumber    *uint64         `json:"blockNumber"`
		BlockTimestamp *int64          `json:"block_timestamp"`
		Ret            []contractRet   `json:"ret"`
		RawData        contractRawData `json:"raw_data"`
	}

	contractRet struct {
		ContractRet string          `json:"contractRet"`
		Fee         json.RawMessage `json:"fee"`
	}

	contractRawData struct {
		Contract []contractEnvelope `json:"contract"`
	}

	contractEnvelope struct {
		Type      string            `json:"type"`
		Parameter contractParameter `json:"parameter"`
	}

	contractParameter struct {
		Value map[string]json.RawMessage `json:"value"`
	}

	internalTxn struct {
		TxID           string        `json:"tx_id"`
		InternalTxID   string        `json:"internal_tx_id"`
		BlockTimestamp *int64        `json:"block_timestamp"`
		FromAddress    string        `json:"from_address"`
		ToAddress      string        `json:"to_address"`
		Data           *internalData `json:"data"`
	}

	internalData struct {
		CallValue map[string]json.RawMessage `json:"call_value"`
		Rejected  bool                       `json:"rejected"`
	}

	tokenEvent struct {
		TransactionID  string     `json:"transaction_id"`
		TokenInfo      *tokenInfo `json:"token_info"`
		BlockTimestamp *int64     `json:"block_timestamp"`
		From           string     `json:"from"`
		To             string     `json:"to"`
		Type           string     `json:"type"`
		Value          string     `json:"value"`
	}

	tokenInfo struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	}
)

type shape int

const (
	shapeUnknown shape = iota
	shapeContract
	shapeInternal
)

func detectShape(raw json.RawMessage) (shape, error) {
	var p shapeProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return shapeUnknown, err
	}
	switch {
	case present(p.RawData):
		return shapeContract, nil
	case present(p.Data):
		return shapeInternal, nil
	default:
		return shapeUnknown, nil
	}
}

// present distinguishes a structurally absent key (or explicit null) from a
// present one, including a present zero.
func present(v json.RawMessage) bool {
	return len(v) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// uintField decodes a non-negative integer JSON number. TronGrid occasionally
// serializes large amounts as strings, which are accepted too.
func uintField(v json.RawMessage) (uint64, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		return strconv.ParseUint(s, 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a non-negative integer: %s", n)
	}
	return u, nil
}

func stringField(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", err
	}
	return s, nil
}
