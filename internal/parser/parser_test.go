package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/pkg/tron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	account    = "TJ2WnwEM2M4ErJQHeMPFMhQLivv1haXhfs"
	ownerHex   = "4158611af616412a105158432a8a05aa3933ec4a17"
	contractHx = "41ef22c1b62ba50703145069beec75dd0cfa343639"
	toHex      = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
)

func display(t *testing.T, hexAddr string) string {
	t.Helper()
	d, err := tron.ToDisplay(hexAddr)
	require.NoError(t, err)
	return d
}

func contractTx(contractType string, value string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"ret": [{"contractRet": "SUCCESS", "fee": 1100000}],
		"txID": "tx-1",
		"blockNumber": 70695838,
		"block_timestamp": 1742740623000,
		"raw_data": {
			"contract": [{
				"parameter": {"value": %s, "type_url": "type.googleapis.com/protocol.%s"},
				"type": %q
			}]
		}
	}`, value, contractType, contractType))
}

func TestParseOutboundTransfer(t *testing.T) {
	raw := contractTx("TransferContract",
		fmt.Sprintf(`{"amount": 1000000, "owner_address": %q, "to_address": %q}`, ownerHex, toHex))

	got, err := ParseOutbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, model.Transaction{
		Status:         "SUCCESS",
		TxID:           "tx-1",
		Value:          1000000,
		TotalFee:       1100000,
		BlockNumber:    70695838,
		BlockTimestamp: 1742740623000,
		From:           account,
		To:             display(t, toHex),
		ContractType:   model.ContractTypeTransfer,
	}, got)
}

func TestParseOutboundTriggerSmartContract(t *testing.T) {
	raw := contractTx("TriggerSmartContract", fmt.Sprintf(
		`{"data": "a9059cbb", "owner_address": %q, "contract_address": %q}`, ownerHex, contractHx))

	got, err := ParseOutbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, display(t, contractHx), got.To)
	assert.Equal(t, account, got.From)
	assert.Equal(t, uint64(0), got.Value)
	assert.Equal(t, model.ContractTypeTriggerSmartContract, got.ContractType)
}

func TestParseValueFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  uint64
	}{
		{"amount", `"amount": 7, "call_value": 9`, 7},
		{"call value fallback", `"call_value": 9`, 9},
		{"both absent", `"data": "00"`, 0},
		{"present zero amount wins", `"amount": 0, "call_value": 9`, 0},
		{"null amount falls through", `"amount": null, "call_value": 9`, 9},
		{"string amount", `"amount": "12"`, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := contractTx("TriggerSmartContract",
				fmt.Sprintf(`{%s, "contract_address": %q}`, tt.value, contractHx))
			got, err := ParseOutbound(account, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestParseInboundTransfer(t *testing.T) {
	raw := contractTx("TransferContract",
		fmt.Sprintf(`{"amount": 25, "owner_address": %q, "to_address": %q}`, ownerHex, toHex))

	got, err := ParseInbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, display(t, ownerHex), got.From)
	assert.Equal(t, account, got.To)
	assert.Equal(t, uint64(25), got.Value)
}

func TestParseInboundUndelegate(t *testing.T) {
	raw := contractTx("UnDelegateResourceContract", fmt.Sprintf(
		`{"balance": 5000000, "resource": "ENERGY", "owner_address": %q, "receiver_address": %q}`, ownerHex, toHex))

	got, err := ParseInbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000000), got.Value)
	assert.Equal(t, model.ContractTypeUnDelegateResource, got.ContractType)
	assert.Equal(t, display(t, ownerHex), got.From)
}

func TestParseUndelegateRequiresBalance(t *testing.T) {
	raw := contractTx("UnDelegateResourceContract", fmt.Sprintf(`{"owner_address": %q}`, ownerHex))

	_, err := ParseInbound(account, raw)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "tx-1", pe.TxID)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestParseSkipsAssetTransfer(t *testing.T) {
	raw := contractTx("TransferAssetContract", fmt.Sprintf(
		`{"amount": 10, "asset_name": "31303030333137", "owner_address": %q, "to_address": %q}`, ownerHex, toHex))

	_, err := ParseOutbound(account, raw)
	assert.ErrorIs(t, err, ErrSkip)
	_, err = ParseInbound(account, raw)
	assert.ErrorIs(t, err, ErrSkip)
	assert.True(t, IsSkip(err))
}

func TestParseInternalRejected(t *testing.T) {
	raw := json.RawMessage(fmt.Sprintf(`{
		"internal_tx_id": "itx-1",
		"tx_id": "tx-2",
		"block_timestamp": 1742740626000,
		"from_address": %q,
		"to_address": %q,
		"data": {"note": "63616c6c", "rejected": true, "call_value": {"_": 500}}
	}`, contractHx, toHex))

	got, err := ParseInbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, model.Transaction{
		Status:         model.StatusRejected,
		TxID:           "tx-2",
		InternalTxID:   "itx-1",
		Value:          500,
		TotalFee:       0,
		BlockNumber:    0,
		BlockTimestamp: 1742740626000,
		From:           display(t, contractHx),
		To:             account,
		ContractType:   model.ContractTypeInternal,
	}, got)

	out, err := ParseOutbound(account, raw)
	require.NoError(t, err)
	assert.Equal(t, account, out.From)
	assert.Equal(t, display(t, toHex), out.To)
}

func TestParseInternalSuccessAndTokenOnly(t *testing.T) {
	ok := json.RawMessage(fmt.Sprintf(`{"tx_id": "tx-3", "block_timestamp": 1, "from_address": %q,
		"data": {"call_value": {"_": 1}}}`, contractHx))
	got, err := ParseInbound(account, ok)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)

	trc10 := json.RawMessage(fmt.Sprintf(`{"tx_id": "tx-4", "block_timestamp": 1, "from_address": %q,
		"data": {"call_value": {"1002000": 10}}}`, contractHx))
	_, err = ParseInbound(account, trc10)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing block number", `{"txID": "a", "block_timestamp": 1, "ret": [{"contractRet": "SUCCESS"}],
			"raw_data": {"contract": [{"type": "TransferContract", "parameter": {"value": {"to_address": "` + toHex + `"}}}]}}`},
		{"missing ret", `{"txID": "a", "blockNumber": 1, "block_timestamp": 1,
			"raw_data": {"contract": [{"type": "TransferContract", "parameter": {"value": {"to_address": "` + toHex + `"}}}]}}`},
		{"empty contract list", `{"txID": "a", "raw_data": {"contract": []}}`},
		{"no counterparty", `{"txID": "a", "blockNumber": 1, "block_timestamp": 1, "ret": [{"contractRet": "SUCCESS"}],
			"raw_data": {"contract": [{"type": "FreezeBalanceV2Contract", "parameter": {"value": {"frozen_balance": 1}}}]}}`},
		{"bad address", `{"txID": "a", "blockNumber": 1, "block_timestamp": 1, "ret": [{"contractRet": "SUCCESS"}],
			"raw_data": {"contract": [{"type": "TransferContract", "parameter": {"value": {"to_address": "41zz"}}}]}}`},
		{"negative amount", `{"txID": "a", "blockNumber": 1, "block_timestamp": 1, "ret": [{"contractRet": "SUCCESS"}],
			"raw_data": {"contract": [{"type": "TransferContract", "parameter": {"value": {"amount": -1, "to_address": "` + toHex + `"}}}]}}`},
		{"internal without call value", `{"tx_id": "b", "block_timestamp": 1, "to_address": "` + toHex + `", "data": {}}`},
		{"unknown shape", `{"txID": "c"}`},
		{"not json", `[1, 2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutbound(account, json.RawMessage(tt.raw))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.False(t, IsSkip(err))
		})
	}
}

func TestParseErrorWrapsInvalidAddress(t *testing.T) {
	raw := contractTx("TransferContract", `{"amount": 1, "to_address": "42a614f803b6fd780986a42c78ec9c7f77e6ded13c"}`)
	_, err := ParseOutbound(account, raw)
	assert.True(t, errors.Is(err, tron.ErrInvalidAddress))
}

func tokenEventJSON(eventType, value string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"transaction_id": "tx-t",
		"token_info": {"symbol": "USDT", "address": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "decimals": 6, "name": "Tether USD"},
		"block_timestamp": 1742740629000,
		"from": "TEY2y92rntFnqwzAnw2df1ACUE5JSas3nG",
		"to": %q,
		"type": %q,
		"value": %q
	}`, account, eventType, value))
}

func TestParseTokenTransfer(t *testing.T) {
	big := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	got, err := ParseTokenTransfer(account, tokenEventJSON("Transfer", big))
	require.NoError(t, err)
	assert.Equal(t, model.TokenTransfer{
		TxID:           "tx-t",
		TokenAddress:   "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		BlockTimestamp: 1742740629000,
		From:           "TEY2y92rntFnqwzAnw2df1ACUE5JSas3nG",
		To:             account,
		Value:          big,
	}, got)

	amount, err := got.Amount()
	require.NoError(t, err)
	assert.Equal(t, big, amount.String())
}

func TestParseTokenTransferSkipsApproval(t *testing.T) {
	_, err := ParseTokenTransfer(account, tokenEventJSON("Approval", "1"))
	assert.ErrorIs(t, err, ErrSkip)
}

func TestParseTokenTransferErrors(t *testing.T) {
	for _, v := range []string{"-5", "1.5", "abc"} {
		_, err := ParseTokenTransfer(account, tokenEventJSON("Transfer", v))
		var pe *ParseError
		assert.ErrorAs(t, err, &pe, v)
	}

	_, err := ParseTokenTransfer(account, json.RawMessage(`{"transaction_id": "x", "type": "Transfer",
		"block_timestamp": 1, "from": "a", "to": "b", "value": "1"}`))
	assert.ErrorIs(t, err, ErrMissingField)
}
