package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// AlertRecord is a single candidate alert from the upstream feed.
//
// The upstream object is carried byte-for-byte in Raw and forwarded downstream
// unchanged. SequenceID and CreatedAt are extracted copies used only for
// ordering, dedup and display; they are never written back into Raw.
type AlertRecord struct {
	// SequenceID is the upstream "SN" field. The feed transmits it either as
	// a JSON number or as a numeric string, so it is kept in string form and
	// parsed on demand via Sequence().
	SequenceID string `json:"sequence_id"`

	// CreatedAt is the upstream "CRT_DT" field, a sortable timestamp string.
	// It is a secondary ordering key and display value only; novelty is
	// decided by SequenceID alone.
	CreatedAt string `json:"created_at"`

	// Raw is the complete upstream object.
	Raw json.RawMessage `json:"raw"`
}

// NewAlertRecord extracts the ordering keys from a raw upstream object.
// Malformed JSON yields a record with empty keys; callers treat those the
// same way as an unparsable sequence id.
func NewAlertRecord(raw json.RawMessage) AlertRecord {
	var probe struct {
		SN        json.RawMessage `json:"SN"`
		CreatedAt string          `json:"CRT_DT"`
	}
	// A decode failure leaves the probe zero-valued, which is exactly the
	// degraded record we want to hand back.
	_ = json.Unmarshal(raw, &probe)

	return AlertRecord{
		SequenceID: unquote(probe.SN),
		CreatedAt:  probe.CreatedAt,
		Raw:        raw,
	}
}

// Sequence parses the sequence id as an integer. The upstream may send the
// id as a bare number or a quoted numeric string; both parse here.
func (r AlertRecord) Sequence() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(r.SequenceID), 10, 64)
}

// unquote renders a raw JSON scalar as its plain string form, so that
// `"12345"` and `12345` both become "12345".
func unquote(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
