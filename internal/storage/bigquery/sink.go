// Package bigquery stores ledger rows in BigQuery tables of one dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/fystack/tron-ledger-crawler/internal/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Config struct {
	ProjectID       string
	Dataset         string
	CredentialsFile string
}

// Client owns the BigQuery connection shared by the per-kind sinks.
type Client struct {
	bq        *bigquery.Client
	projectID string
	dataset   string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	bq, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Client{bq: bq, projectID: cfg.ProjectID, dataset: cfg.Dataset}, nil
}

func (c *Client) Close() error {
	return c.bq.Close()
}

func (c *Client) qualified(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.projectID, c.dataset, table)
}

type transactionRow struct {
	Status         string   `bigquery:"status"`
	TxID           string   `bigquery:"tx_id"`
	InternalTxID   string   `bigquery:"internal_tx_id"`
	Value          *big.Rat `bigquery:"value"`
	TotalFee       *big.Rat `bigquery:"total_fee"`
	BlockNumber    int64    `bigquery:"block_number"`
	BlockTimestamp int64    `bigquery:"block_timestamp"`
	From           string   `bigquery:"from"`
	To             string   `bigquery:"to"`
	Type           string   `bigquery:"type"`
}

func toTransactionRow(t model.Transaction) *transactionRow {
	return &transactionRow{
		Status:         t.Status,
		TxID:           t.TxID,
		InternalTxID:   t.InternalTxID,
		Value:          new(big.Rat).SetInt(new(big.Int).SetUint64(t.Value)),
		TotalFee:       new(big.Rat).SetInt(new(big.Int).SetUint64(t.TotalFee)),
		BlockNumber:    int64(t.BlockNumber),
		BlockTimestamp: t.BlockTimestamp,
		From:           t.From,
		To:             t.To,
		Type:           string(t.ContractType),
	}
}

func (r *transactionRow) toModel() (model.Transaction, error) {
	value, err := ratToUint64(r.Value)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("value: %w", err)
	}
	fee, err := ratToUint64(r.TotalFee)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("total_fee: %w", err)
	}
	return model.Transaction{
		Status:         r.Status,
		TxID:           r.TxID,
		InternalTxID:   r.InternalTxID,
		Value:          value,
		TotalFee:       fee,
		BlockNumber:    uint64(r.BlockNumber),
		BlockTimestamp: r.BlockTimestamp,
		From:           r.From,
		To:             r.To,
		ContractType:   model.ContractType(r.Type),
	}, nil
}

// tokenRow keeps value as STRING: uint256 amounts overflow BIGNUMERIC.
type tokenRow struct {
	TxID           string `bigquery:"tx_id"`
	TokenAddress   string `bigquery:"token_address"`
	BlockTimestamp int64  `bigquery:"block_timestamp"`
	From           string `bigquery:"from"`
	To             string `bigquery:"to"`
	Value          string `bigquery:"value"`
}

func toTokenRow(t model.TokenTransfer) *tokenRow {
	return &tokenRow{
		TxID:           t.TxID,
		TokenAddress:   t.TokenAddress,
		BlockTimestamp: t.BlockTimestamp,
		From:           t.From,
		To:             t.To,
		Value:          t.Value,
	}
}

func (r *tokenRow) toModel() (model.TokenTransfer, error) {
	return model.TokenTransfer{
		TxID:           r.TxID,
		TokenAddress:   r.TokenAddress,
		BlockTimestamp: r.BlockTimestamp,
		From:           r.From,
		To:             r.To,
		Value:          r.Value,
	}, nil
}

func ratToUint64(r *big.Rat) (uint64, error) {
	if r == nil {
		return 0, nil
	}
	if !r.IsInt() || r.Sign() < 0 || !r.Num().IsUint64() {
		return 0, fmt.Errorf("%s is not a uint64", r.RatString())
	}
	return r.Num().Uint64(), nil
}

type rowModel[T model.Record] interface {
	toModel() (T, error)
}

// Sink writes one kind's records through the streaming inserter. R is the
// BigQuery row shape of T.
type Sink[T model.Record, R any] struct {
	client  *Client
	table   string
	role    model.AccountRole
	columns string
	toRow   func(T) *R
}

func NewTransactionSink(c *Client, kind model.Kind) *Sink[model.Transaction, transactionRow] {
	return &Sink[model.Transaction, transactionRow]{
		client:  c,
		table:   kind.Table(),
		role:    kind.AccountRole(),
		columns: "status, tx_id, internal_tx_id, value, total_fee, block_number, block_timestamp, `from`, `to`, type",
		toRow:   toTransactionRow,
	}
}

func NewTokenSink(c *Client) *Sink[model.TokenTransfer, tokenRow] {
	return &Sink[model.TokenTransfer, tokenRow]{
		client:  c,
		table:   model.KindTRC20.Table(),
		role:    model.KindTRC20.AccountRole(),
		columns: "tx_id, token_address, block_timestamp, `from`, `to`, value",
		toRow:   toTokenRow,
	}
}

func (s *Sink[T, R]) InsertBatch(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*R, len(records))
	for i, r := range records {
		rows[i] = s.toRow(r)
	}

	inserter := s.client.bq.DatasetInProject(s.client.projectID, s.client.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), s.table, err)
	}
	return nil
}

func (s *Sink[T, R]) Latest(ctx context.Context, account string) (*T, error) {
	q := s.client.bq.Query(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY block_timestamp DESC LIMIT 1",
		s.columns, s.client.qualified(s.table), roleFilter(s.role)))
	q.Parameters = []bigquery.QueryParameter{{Name: "account", Value: account}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest %s row: query read: %w", s.table, err)
	}

	var row R
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s row: %w", s.table, err)
	}

	m, ok := any(&row).(rowModel[T])
	if !ok {
		return nil, fmt.Errorf("row type %T cannot produce %T", row, *new(T))
	}
	rec, err := m.toModel()
	if err != nil {
		return nil, fmt.Errorf("latest %s row: %w", s.table, err)
	}
	return &rec, nil
}

func roleFilter(role model.AccountRole) string {
	switch role {
	case model.RoleFrom:
		return "`from` = @account"
	case model.RoleTo:
		return "`to` = @account"
	default:
		return "(`from` = @account OR `to` = @account)"
	}
}
