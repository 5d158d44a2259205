package watermark

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewFirestoreStore_NilClientFails(t *testing.T) {
	cfg := &FirestoreStoreConfig{
		ProjectID:      "p",
		CollectionName: "pipeline-state",
		DocumentID:     "doc",
	}
	_, err := NewFirestoreStore(nil, cfg, zerolog.Nop())
	assert.Error(t, err)
}
