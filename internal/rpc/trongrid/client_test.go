package trongrid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

func newTestClient(url string, maxPages int) *Client {
	return NewClient(Options{
		BaseURL:   url,
		APIKey:    "test-key",
		PageLimit: 2,
		MaxPages:  maxPages,
		Retry: retry.ExponentialConfig{
			InitialInterval: time.Millisecond,
			MaxAttempts:     3,
		},
	})
}

func page(data []string, next string) string {
	b, _ := json.Marshal(map[string]any{
		"data":    rawItems(data),
		"success": true,
		"meta":    map[string]any{"at": 1, "page_size": len(data), "links": map[string]string{"next": next}},
	})
	return string(b)
}

func selfURL(r *http.Request) string {
	return "http://" + r.Host + r.URL.Path
}

func rawItems(ids []string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = json.RawMessage(fmt.Sprintf(`{"txID":%q}`, id))
	}
	return out
}

func TestFetchOutboundFollowsNextLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("TRON-PRO-API-KEY"))
		assert.Equal(t, "/v1/accounts/"+account+"/transactions", r.URL.Path)

		switch r.URL.Query().Get("cursor") {
		case "":
			q := r.URL.Query()
			assert.Equal(t, "true", q.Get("only_from"))
			assert.Equal(t, "2", q.Get("limit"))
			assert.Equal(t, "block_timestamp,asc", q.Get("order_by"))
			assert.Equal(t, "1742740623001", q.Get("min_timestamp"))
			fmt.Fprint(w, page([]string{"a", "b"}, selfURL(r)+"?cursor=2"))
		case "2":
			fmt.Fprint(w, page([]string{"c"}, ""))
		}
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 5).FetchOutboundSince(context.Background(), account, 1742740623001)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.JSONEq(t, `{"txID":"c"}`, string(got[2]))
}

func TestFetchInboundAndTokenPaths(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.Path+"?"+r.URL.Query().Get("only_to"))
		fmt.Fprint(w, page(nil, ""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	_, err := c.FetchInboundSince(context.Background(), account, 0)
	require.NoError(t, err)
	_, err = c.FetchTokenTransfersSince(context.Background(), account, 0)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/v1/accounts/" + account + "/transactions?true",
		"/v1/accounts/" + account + "/transactions/trc20?",
	}, paths)
}

func tsPage(next string, ts ...int64) string {
	data := make([]json.RawMessage, len(ts))
	for i, v := range ts {
		data[i] = json.RawMessage(fmt.Sprintf(`{"txID":"tx-%d-%d","block_timestamp":%d}`, v, i, v))
	}
	b, _ := json.Marshal(map[string]any{
		"data":    data,
		"success": true,
		"meta":    map[string]any{"links": map[string]string{"next": next}},
	})
	return string(b)
}

func timestamps(t *testing.T, recs []json.RawMessage) []int64 {
	t.Helper()
	out := make([]int64, len(recs))
	for i, r := range recs {
		ts, ok := blockTimestamp(r)
		require.True(t, ok)
		out[i] = ts
	}
	return out
}

func TestFetchAtPageLimitReturnsWholeTimestampGroups(t *testing.T) {
	pages := map[string][]int64{
		"":  {100, 200},
		"2": {300, 400},
		"3": {400, 400},
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cursor := r.URL.Query().Get("cursor")
		nextCursor := map[string]string{"": "2", "2": "3", "3": "4"}[cursor]
		fmt.Fprint(w, tsPage(selfURL(r)+"?cursor="+nextCursor, pages[cursor]...))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 3).FetchOutboundSince(context.Background(), account, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int64{100, 200, 300}, timestamps(t, got))
}

func TestFetchAtPageLimitFailsWhenNoBoundaryExists(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, tsPage(selfURL(r)+"?cursor=more", 500, 500))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).FetchOutboundSince(context.Background(), account, 0)
	assert.ErrorIs(t, err, ErrPageLimit)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchReturnsPrefixWhenDeadlineHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, tsPage(selfURL(r)+"?cursor=2", 100, 200))
			return
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	got, err := newTestClient(srv.URL, 10).FetchOutboundSince(ctx, account, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(t, got))
}

func TestFetchDeadlineBeforeFirstPageFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL, 10).FetchOutboundSince(ctx, account, 0)
	assert.Error(t, err)
}

func TestTrimLastTimestampGroup(t *testing.T) {
	item := func(ts int64) json.RawMessage {
		return json.RawMessage(fmt.Sprintf(`{"block_timestamp":%d}`, ts))
	}
	cases := []struct {
		name string
		in   []json.RawMessage
		want int
	}{
		{"empty", nil, 0},
		{"single group", []json.RawMessage{item(5), item(5)}, 0},
		{"distinct tail", []json.RawMessage{item(1), item(2), item(3)}, 2},
		{"shared tail", []json.RawMessage{item(1), item(2), item(3), item(3)}, 2},
		{"unreadable tail", []json.RawMessage{item(1), item(2), json.RawMessage(`{}`)}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, trimLastTimestampGroup(tc.in), tc.want)
		})
	}
}

func TestFetchFollowsFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fingerprint") == "" {
			fmt.Fprint(w, `{"success":true,"data":[{"txID":"1"},{"txID":"2"}],"meta":{"fingerprint":"fp1"}}`)
			return
		}
		assert.Equal(t, "fp1", r.URL.Query().Get("fingerprint"))
		assert.Equal(t, "true", r.URL.Query().Get("only_from"))
		fmt.Fprint(w, `{"success":true,"data":[{"txID":"3"}],"meta":{}}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 5).FetchOutboundSince(context.Background(), account, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, page([]string{"ok"}, ""))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 5).FetchTokenTransfersSince(context.Background(), account, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"error":"invalid address"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5).FetchOutboundSince(context.Background(), account, 0)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadRequest, fe.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRejectsUnsuccessfulEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":"account not found","data":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5).FetchOutboundSince(context.Background(), account, 0)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "account not found")
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5).FetchOutboundSince(context.Background(), account, 0)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Retryable())
	assert.Equal(t, int32(3), calls.Load())
}
