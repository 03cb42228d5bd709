// Package events announces freshly persisted ledger records on NATS.
package events

import (
	"encoding/json"
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
)

const TypeRecordsStored = "records.stored"

type CrawlEvent struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Account   string `json:"account"`
	Count     int    `json:"count"`
	Watermark int64  `json:"watermark"`
	Records   any    `json:"records"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher is best effort: a failed publish is logged and never reported
// back to the crawl.
type Publisher interface {
	PublishRecords(kind, account string, watermark int64, records any, count int)
	Close()
}

// Conn is the subset of *nats.Conn the emitter uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

type emitter struct {
	conn          Conn
	subjectPrefix string
}

func NewEmitter(conn Conn, subjectPrefix string) Publisher {
	return &emitter{conn: conn, subjectPrefix: subjectPrefix}
}

// Subject returns "{prefix}.{kind}".
func (e *emitter) Subject(kind string) string {
	return e.subjectPrefix + "." + kind
}

func (e *emitter) PublishRecords(kind, account string, watermark int64, records any, count int) {
	data, err := json.Marshal(CrawlEvent{
		Type:      TypeRecordsStored,
		Kind:      kind,
		Account:   account,
		Count:     count,
		Watermark: watermark,
		Records:   records,
		Timestamp: time.Now().UTC().Unix(),
	})
	if err != nil {
		logger.Warn("Failed to encode crawl event", "kind", kind, "account", account, "err", err)
		return
	}
	if err := e.conn.Publish(e.Subject(kind), data); err != nil {
		logger.Warn("Failed to publish crawl event", "kind", kind, "account", account, "err", err)
	}
}

func (e *emitter) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}
