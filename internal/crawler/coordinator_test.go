package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accountA = "TAccountA"
	accountB = "TAccountB"
	accountC = "TAccountC"
)

func TestCoordinatorIsolatesFailures(t *testing.T) {
	h := newHarness(Options{})
	good := &fakeLedger{}
	good.add("ok", 100)

	h.engine.spec.Fetch = func(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error) {
		switch account {
		case accountB:
			return nil, errors.New("HTTP 500")
		case accountC:
			panic("nil map")
		default:
			return good.Fetch(ctx, account, minTs)
		}
	}

	s := NewCoordinator(h.engine).Run(context.Background(), []string{accountA, accountB, accountC})
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, model.KindOutbound, s.Kind)
	assert.Equal(t, 3, s.Accounts)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Stored)
	require.Len(t, s.Results, 3)

	assert.Equal(t, accountA, s.Results[0].Account)
	assert.True(t, s.Results[0].OK())
	assert.Equal(t, StageFetch, s.Results[1].Stage)
	assert.Equal(t, StagePanic, s.Results[2].Stage)

	failed := s.Failures()
	require.Len(t, failed, 2)
	assert.Equal(t, accountB, failed[0].Account)

	ts, ok := h.cps.value(model.KindOutbound, accountA)
	require.True(t, ok)
	assert.Equal(t, int64(100), ts)
	_, ok = h.cps.value(model.KindOutbound, accountB)
	assert.False(t, ok)
}

func TestCoordinatorRunsAccountsConcurrently(t *testing.T) {
	h := newHarness(Options{})
	var inFlight, peak atomic.Int32
	h.engine.spec.Fetch = func(ctx context.Context, _ string, _ int64) ([]json.RawMessage, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return nil, nil
	}

	c := NewCoordinator(h.engine)
	s := c.Run(context.Background(), []string{accountA, accountB, accountC})
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, int32(3), peak.Load())

	peak.Store(0)
	c.MaxConcurrency = 1
	s = c.Run(context.Background(), []string{accountA, accountB, accountC})
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, int32(1), peak.Load())
}

func TestCoordinatorEmptyAccounts(t *testing.T) {
	h := newHarness(Options{})
	s := NewCoordinator(h.engine).Run(context.Background(), nil)
	assert.Zero(t, s.Accounts)
	assert.Empty(t, s.Results)
	assert.Empty(t, s.Failures())
}

type stubLedger struct {
	called []string
}

func (s *stubLedger) FetchOutboundSince(context.Context, string, int64) ([]json.RawMessage, error) {
	s.called = append(s.called, "outbound")
	return nil, nil
}

func (s *stubLedger) FetchInboundSince(context.Context, string, int64) ([]json.RawMessage, error) {
	s.called = append(s.called, "inbound")
	return nil, nil
}

func (s *stubLedger) FetchTokenTransfersSince(context.Context, string, int64) ([]json.RawMessage, error) {
	s.called = append(s.called, "trc20")
	return nil, nil
}

func TestNewRunnerWiresEveryKind(t *testing.T) {
	api := &stubLedger{}
	deps := Deps{API: api, Stores: storage.NewMemory(), Checkpoints: newFakeCheckpoints()}

	for _, kind := range model.AllKinds {
		r, err := NewRunner(kind, deps, Options{})
		require.NoError(t, err)
		assert.Equal(t, kind, r.Kind())
		s := r.Run(context.Background(), []string{accountA})
		assert.Equal(t, 1, s.Succeeded)
	}
	assert.Equal(t, []string{"outbound", "inbound", "trc20"}, api.called)

	_, err := NewRunner(model.Kind("trc10"), deps, Options{})
	assert.Error(t, err)
}
