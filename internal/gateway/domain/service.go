package domain

import (
	"context"
	"net/http"
)

// Dispatcher verifies a raw webhook and routes the normalized event to
// reconciliation.
type Dispatcher interface {
	Dispatch(ctx context.Context, provider string, payload []byte, headers http.Header) (*Event, error)
}
