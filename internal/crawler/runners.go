package crawler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/parser"
	"github.com/fystack/tron-ledger-crawler/internal/storage"
	"github.com/fystack/tron-ledger-crawler/pkg/events"
	"github.com/fystack/tron-ledger-crawler/pkg/store/checkpointstore"
)

// LedgerAPI is the upstream query surface, one method per kind.
type LedgerAPI interface {
	FetchOutboundSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error)
	FetchInboundSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error)
	FetchTokenTransfersSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error)
}

type Deps struct {
	API         LedgerAPI
	Stores      *storage.Stores
	Checkpoints checkpointstore.Store
	Publisher   events.Publisher
}

// NewRunner builds the coordinator of one kind.
func NewRunner(kind model.Kind, d Deps, opts Options) (Runner, error) {
	switch kind {
	case model.KindOutbound:
		return NewCoordinator(NewEngine(Spec[model.Transaction]{
			Kind:        kind,
			Fetch:       d.API.FetchOutboundSince,
			Parse:       parser.ParseOutbound,
			Sink:        d.Stores.Outbound,
			Checkpoints: d.Checkpoints,
			Publisher:   d.Publisher,
		}, opts)), nil
	case model.KindInbound:
		return NewCoordinator(NewEngine(Spec[model.Transaction]{
			Kind:        kind,
			Fetch:       d.API.FetchInboundSince,
			Parse:       parser.ParseInbound,
			Sink:        d.Stores.Inbound,
			Checkpoints: d.Checkpoints,
			Publisher:   d.Publisher,
		}, opts)), nil
	case model.KindTRC20:
		return NewCoordinator(NewEngine(Spec[model.TokenTransfer]{
			Kind:        kind,
			Fetch:       d.API.FetchTokenTransfersSince,
			Parse:       parser.ParseTokenTransfer,
			Sink:        d.Stores.TRC20,
			Checkpoints: d.Checkpoints,
			Publisher:   d.Publisher,
		}, opts)), nil
	default:
		return nil, fmt.Errorf("unknown crawl kind %q", kind)
	}
}
