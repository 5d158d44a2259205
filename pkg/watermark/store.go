package watermark

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ====================================================================================
// The watermark is the relay's sole durable progress marker: the highest
// upstream sequence id already forwarded. This package defines the store
// contract plus GCS, Firestore and Redis backed implementations. All three
// persist the watermark as its decimal string form under a single key.
// ====================================================================================

// Store persists the watermark for one pipeline identity.
type Store interface {
	// Load returns the persisted watermark. found is false when nothing has
	// ever been stored (a first run), which callers treat as zero. A non-nil
	// error means the store could not be read; callers decide whether to
	// fail open.
	Load(ctx context.Context) (value int64, found bool, err error)

	// Save persists value, overwriting any previous watermark.
	// Last-writer-wins; serialisation of runs is the trigger's job.
	Save(ctx context.Context, value int64) error
}

// encodeWatermark renders the stored string form.
func encodeWatermark(v int64) string {
	return strconv.FormatInt(v, 10)
}

// decodeWatermark parses a stored value. Surrounding whitespace is tolerated
// because the original state blobs were written with trailing newlines.
func decodeWatermark(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stored watermark %q is not an integer: %w", s, err)
	}
	return v, nil
}
