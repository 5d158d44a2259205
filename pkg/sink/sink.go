package sink

import (
	"context"
	"encoding/json"
)

// StreamSink is the downstream destination for forwarded alerts.
// One Append call carries the whole batch for a run; implementations decide
// how the batch maps onto their transport.
type StreamSink interface {
	// Append submits the serialized records, newest first, as one operation.
	Append(ctx context.Context, batch []json.RawMessage) error
	// Stop flushes and releases transport resources.
	Stop()
}
