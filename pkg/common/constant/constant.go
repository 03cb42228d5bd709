package constant

import "time"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// TronGrid caps v1 account endpoints at 200 records per page.
	DefaultPageLimit = 200
	DefaultMaxPages  = 50

	DefaultCrawlInterval  = 40 * time.Second
	DefaultAccountTimeout = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second

	DefaultTronGridURL = "https://api.trongrid.io"
	TronGridAPIKeyHdr  = "TRON-PRO-API-KEY"

	DefaultNATSSubjectPrefix = "crawler.records"
)
