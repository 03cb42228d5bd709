package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ContractType string

const (
	ContractTypeTransfer             ContractType = "TransferContract"
	ContractTypeTransferAsset        ContractType = "TransferAssetContract"
	ContractTypeTriggerSmartContract ContractType = "TriggerSmartContract"
	ContractTypeUnDelegateResource   ContractType = "UnDelegateResourceContract"
	ContractTypeInternal             ContractType = "Internal"
)

const (
	StatusSuccess  = "SUCCESS"
	StatusRejected = "REJECTED"
)

// Record is what the crawl engine needs to know about a canonical row.
type Record interface {
	GetTxID() string
	GetBlockTimestamp() int64
	GetFrom() string
	GetTo() string
}

// Involves reports whether account sits in the column role names.
func Involves(r Record, account string, role AccountRole) bool {
	switch role {
	case RoleFrom:
		return r.GetFrom() == account
	case RoleTo:
		return r.GetTo() == account
	default:
		return r.GetFrom() == account || r.GetTo() == account
	}
}

// Transaction is one row of from_transaction (outbound) or normal_transaction
// (inbound). For outbound rows From is the tracked account, for inbound rows To is.
type Transaction struct {
	Status         string       `json:"status"           db:"status"`
	TxID           string       `json:"tx_id"            db:"tx_id"`
	InternalTxID   string       `json:"internal_tx_id"   db:"internal_tx_id"`
	Value          uint64       `json:"value"            db:"value"`
	TotalFee       uint64       `json:"total_fee"        db:"total_fee"`
	BlockNumber    uint64       `json:"block_number"     db:"block_number"`
	BlockTimestamp int64        `json:"block_timestamp"  db:"block_timestamp"`
	From           string       `json:"from"             db:"from"`
	To             string       `json:"to"               db:"to"`
	ContractType   ContractType `json:"contract_type"    db:"type"`
}

func (t Transaction) GetTxID() string          { return t.TxID }
func (t Transaction) GetBlockTimestamp() int64 { return t.BlockTimestamp }
func (t Transaction) GetFrom() string          { return t.From }
func (t Transaction) GetTo() string            { return t.To }

func (t Transaction) String() string {
	return fmt.Sprintf("{tx=%s type=%s %s->%s value=%d fee=%d ts=%d status=%s}",
		t.TxID, t.ContractType, t.From, t.To, t.Value, t.TotalFee, t.BlockTimestamp, t.Status)
}

// TokenTransfer is one row of trc20_transfer. Value is the raw integer amount in
// the token's smallest unit and can exceed 64 bits.
type TokenTransfer struct {
	TxID           string `json:"tx_id"           db:"tx_id"`
	TokenAddress   string `json:"token_address"   db:"token_address"`
	BlockTimestamp int64  `json:"block_timestamp" db:"block_timestamp"`
	From           string `json:"from"            db:"from"`
	To             string `json:"to"              db:"to"`
	Value          string `json:"value"           db:"value"`
}

func (t TokenTransfer) GetTxID() string          { return t.TxID }
func (t TokenTransfer) GetBlockTimestamp() int64 { return t.BlockTimestamp }
func (t TokenTransfer) GetFrom() string          { return t.From }
func (t TokenTransfer) GetTo() string            { return t.To }

// Amount parses Value as a decimal.
func (t TokenTransfer) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Value)
}

func (t TokenTransfer) String() string {
	return fmt.Sprintf("{tx=%s token=%s %s->%s value=%s ts=%d}",
		t.TxID, t.TokenAddress, t.From, t.To, t.Value, t.BlockTimestamp)
}

// MaxBlockTimestamp returns the highest block timestamp in records, or 0.
func MaxBlockTimestamp[T Record](records []T) int64 {
	var hi int64
	for _, r := range records {
		if ts := r.GetBlockTimestamp(); ts > hi {
			hi = ts
		}
	}
	return hi
}
