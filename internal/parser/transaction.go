package parser

import (
	"encoding/json"
	"errors"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/pkg/tron"
)

// direction selects which side of a transfer the tracked account is on.
type direction int

const (
	outbound direction = iota
	inbound
)

// ParseOutbound maps a raw transaction sent by account to a from_transaction row.
func ParseOutbound(account string, raw json.RawMessage) (model.Transaction, error) {
	return parseTransaction(account, raw, outbound)
}

// ParseInbound maps a raw transaction received by account, including internal
// calls and resource undelegation, to a normal_transaction row.
func ParseInbound(account string, raw json.RawMessage) (model.Transaction, error) {
	return parseTransaction(account, raw, inbound)
}

func parseTransaction(account string, raw json.RawMessage, dir direction) (model.Transaction, error) {
	s, err := detectShape(raw)
	if err != nil {
		return model.Transaction{}, invalid("", "", err)
	}
	switch s {
	case shapeContract:
		return parseContractTxn(account, raw, dir)
	case shapeInternal:
		return parseInternalTxn(account, raw, dir)
	default:
		return model.Transaction{}, invalid(txIDOf(raw), "", errors.New("unrecognized transaction shape"))
	}
}

func parseContractTxn(account string, raw json.RawMessage, dir direction) (model.Transaction, error) {
	var txn contractTxn
	if err := json.Unmarshal(raw, &txn); err != nil {
		return model.Transaction{}, invalid(txIDOf(raw), "", err)
	}
	id := txn.TxID
	if id == "" {
		return model.Transaction{}, missing("", "txID")
	}
	if len(txn.RawData.Contract) == 0 {
		return model.Transaction{}, missing(id, "raw_data.contract")
	}
	contract := txn.RawData.Contract[0]
	if contract.Type == "" {
		return model.Transaction{}, missing(id, "raw_data.contract[0].type")
	}
	contractType := model.ContractType(contract.Type)
	if contractType == model.ContractTypeTransferAsset {
		return model.Transaction{}, ErrSkip
	}
	if len(txn.Ret) == 0 || txn.Ret[0].ContractRet == "" {
		return model.Transaction{}, missing(id, "ret[0].contractRet")
	}
	if txn.BlockNumber == nil {
		return model.Transaction{}, missing(id, "blockNumber")
	}
	if txn.BlockTimestamp == nil {
		return model.Transaction{}, missing(id, "block_timestamp")
	}

	fee, err := feeOf(id, txn.Ret[0])
	if err != nil {
		return model.Transaction{}, err
	}

	params := contract.Parameter.Value
	value, err := contractValue(id, contractType, params)
	if err != nil {
		return model.Transaction{}, err
	}

	counterparty, err := contractCounterparty(id, params, dir)
	if err != nil {
		return model.Transaction{}, err
	}

	out := model.Transaction{
		Status:         txn.Ret[0].ContractRet,
		TxID:           id,
		Value:          value,
		TotalFee:       fee,
		BlockNumber:    *txn.BlockNumber,
		BlockTimestamp: *txn.BlockTimestamp,
		ContractType:   contractType,
	}
	setParties(&out, account, counterparty, dir)
	return out, nil
}

func feeOf(id string, ret contractRet) (uint64, error) {
	if !present(ret.Fee) {
		return 0, nil
	}
	fee, err := uintField(ret.Fee)
	if err != nil {
		return 0, invalid(id, "ret[0].fee", err)
	}
	return fee, nil
}

// contractValue reads amount, then call_value, and defaults to 0 only when
// both keys are absent. Undelegation carries the amount in balance instead.
func contractValue(id string, ct model.ContractType, params map[string]json.RawMessage) (uint64, error) {
	if ct == model.ContractTypeUnDelegateResource {
		v := params["balance"]
		if !present(v) {
			return 0, missing(id, "parameter.value.balance")
		}
		n, err := uintField(v)
		if err != nil {
			return 0, invalid(id, "parameter.value.balance", err)
		}
		return n, nil
	}
	for _, key := range []string{"amount", "call_value"} {
		v, ok := params[key]
		if !ok || !present(v) {
			continue
		}
		n, err := uintField(v)
		if err != nil {
			return 0, invalid(id, "parameter.value."+key, err)
		}
		return n, nil
	}
	return 0, nil
}

func contractCounterparty(id string, params map[string]json.RawMessage, dir direction) (string, error) {
	keys := []string{"to_address", "contract_address"}
	if dir == inbound {
		keys = []string{"owner_address", "contract_address"}
	}
	for _, key := range keys {
		v, ok := params[key]
		if !ok || !present(v) {
			continue
		}
		hexAddr, err := stringField(v)
		if err != nil {
			return "", invalid(id, "parameter.value."+key, err)
		}
		display, err := tron.ToDisplay(hexAddr)
		if err != nil {
			return "", invalid(id, "parameter.value."+key, err)
		}
		return display, nil
	}
	return "", missing(id, "parameter.value."+keys[0])
}

func parseInternalTxn(account string, raw json.RawMessage, dir direction) (model.Transaction, error) {
	var txn internalTxn
	if err := json.Unmarshal(raw, &txn); err != nil {
		return model.Transaction{}, invalid(txIDOf(raw), "", err)
	}
	id := txn.TxID
	if id == "" {
		return model.Transaction{}, missing("", "tx_id")
	}
	if txn.Data == nil || txn.Data.CallValue == nil {
		return model.Transaction{}, missing(id, "data.call_value")
	}
	if txn.BlockTimestamp == nil {
		return model.Transaction{}, missing(id, "block_timestamp")
	}

	// "_" is the TRX entry; any other key is a TRC-10 token id.
	v, ok := txn.Data.CallValue["_"]
	if !ok {
		return model.Transaction{}, ErrSkip
	}
	value, err := uintField(v)
	if err != nil {
		return model.Transaction{}, invalid(id, "data.call_value._", err)
	}

	field, hexAddr := "to_address", txn.ToAddress
	if dir == inbound {
		field, hexAddr = "from_address", txn.FromAddress
	}
	if hexAddr == "" {
		return model.Transaction{}, missing(id, field)
	}
	counterparty, err := tron.ToDisplay(hexAddr)
	if err != nil {
		return model.Transaction{}, invalid(id, field, err)
	}

	status := model.StatusSuccess
	if txn.Data.Rejected {
		status = model.StatusRejected
	}
	out := model.Transaction{
		Status:         status,
		TxID:           id,
		InternalTxID:   txn.InternalTxID,
		Value:          value,
		TotalFee:       0,
		BlockNumber:    0,
		BlockTimestamp: *txn.BlockTimestamp,
		ContractType:   model.ContractTypeInternal,
	}
	setParties(&out, account, counterparty, dir)
	return out, nil
}

func setParties(t *model.Transaction, account, counterparty string, dir direction) {
	if dir == outbound {
		t.From, t.To = account, counterparty
		return
	}
	t.From, t.To = counterparty, account
}

// txIDOf best-effort extracts an id for error reporting.
func txIDOf(raw json.RawMessage) string {
	var ids struct {
		TxID          string `json:"txID"`
		InternalTxID  string `json:"tx_id"`
		TransactionID string `json:"transaction_id"`
	}
	_ = json.Unmarshal(raw, &ids)
	switch {
	case ids.TxID != "":
		return ids.TxID
	case ids.InternalTxID != "":
		return ids.InternalTxID
	default:
		return ids.TransactionID
	}
}
