package bigquery

import (
	"context"
	"fmt"
)

const transactionDDL = `CREATE TABLE IF NOT EXISTS %s (
	status          STRING  NOT NULL,
	tx_id           STRING  NOT NULL,
	internal_tx_id  STRING  NOT NULL,
	value           NUMERIC NOT NULL,
	total_fee       NUMERIC NOT NULL,
	block_number    INT64   NOT NULL,
	block_timestamp INT64   NOT NULL,
	` + "`from`" + `    STRING  NOT NULL,
	` + "`to`" + `      STRING  NOT NULL,
	type            STRING  NOT NULL
)
CLUSTER BY block_timestamp, tx_id`

const tokenDDL = `CREATE TABLE IF NOT EXISTS %s (
	tx_id           STRING NOT NULL,
	token_address   STRING NOT NULL,
	block_timestamp INT64  NOT NULL,
	` + "`from`" + `    STRING NOT NULL,
	` + "`to`" + `      STRING NOT NULL,
	value           STRING NOT NULL
)
CLUSTER BY block_timestamp, ` + "`from`"

const dedupViewDDL = `CREATE OR REPLACE VIEW %s AS
SELECT * EXCEPT(rn) FROM (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY block_timestamp) AS rn
	FROM %s
)
WHERE rn = 1`

// Migrate creates the ledger tables and their *_dedup views when missing.
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range c.ddl() {
		if err := c.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ddl() []string {
	txKey := "tx_id, internal_tx_id"
	tokenKey := "tx_id, token_address, `from`, `to`, value"
	return []string{
		fmt.Sprintf(transactionDDL, c.qualified("from_transaction")),
		fmt.Sprintf(transactionDDL, c.qualified("normal_transaction")),
		fmt.Sprintf(tokenDDL, c.qualified("trc20_transfer")),
		fmt.Sprintf(dedupViewDDL, c.qualified("from_transaction_dedup"), txKey, c.qualified("from_transaction")),
		fmt.Sprintf(dedupViewDDL, c.qualified("normal_transaction_dedup"), txKey, c.qualified("normal_transaction")),
		fmt.Sprintf(dedupViewDDL, c.qualified("trc20_transfer_dedup"), tokenKey, c.qualified("trc20_transfer")),
	}
}

func (c *Client) exec(ctx context.Context, sql string) error {
	job, err := c.bq.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
