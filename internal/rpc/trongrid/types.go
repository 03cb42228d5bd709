package trongrid

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPageLimit is returned when a query still has more pages after MaxPages
// and the fetched records cannot be cut on a timestamp boundary.
var ErrPageLimit = errors.New("trongrid: page limit reached")

// FetchError is a non-2xx response or a success:false envelope.
type FetchError struct {
	Status  int
	URL     string
	Message string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("trongrid %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("trongrid HTTP %d from %s: %s", e.Status, e.URL, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *FetchError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

type envelope struct {
	Data    []json.RawMessage `json:"data"`
	Success *bool             `json:"success"`
	Error   string            `json:"error"`
	Meta    meta              `json:"meta"`
}

type meta struct {
	At          int64  `json:"at"`
	PageSize    int    `json:"page_size"`
	Fingerprint string `json:"fingerprint"`
	Links       struct {
		Next string `json:"next"`
	} `json:"links"`
}
