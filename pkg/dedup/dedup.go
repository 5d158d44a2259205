package dedup

import (
	"sort"

	"github.com/illmade-knight/go-alertfeed/pkg/types"
	"github.com/rs/zerolog"
)

// ====================================================================================
// This package contains the pure dedup/ordering core of the relay: given the
// candidate records from one feed fetch and the current watermark, it decides
// which records are genuinely new, in what order they are forwarded, and what
// the watermark should advance to. It performs no I/O.
// ====================================================================================

// Options tune the scan behaviour of Compute.
type Options struct {
	// ScanAll disables the early break on the first already-seen record.
	// The early break is only correct when the upstream feed is guaranteed
	// newest-first; set ScanAll when that guarantee cannot be relied on and
	// every candidate must be inspected.
	ScanAll bool
}

// Plan is the outcome of one Compute call.
type Plan struct {
	// Batch holds the new records, strictly newest-first by
	// (created_at, sequence id). Every record in it has a sequence id
	// strictly greater than the watermark Compute was given.
	Batch []types.AlertRecord

	// ProposedWatermark is max(watermark, highest sequence id in Batch).
	// Equal to the input watermark when Batch is empty.
	ProposedWatermark int64

	// Skipped counts candidates dropped because their sequence id did not
	// parse as an integer.
	Skipped int
}

// scored pairs a record with its parsed sequence id so parsing happens once.
type scored struct {
	record types.AlertRecord
	seq    int64
	ok     bool
}

// Compute sorts the candidate set newest-first and scans it for records whose
// sequence id exceeds the watermark.
//
// The scan stops at the first parsable record at or below the watermark:
// a feed sorted newest-first implies everything after it is older still.
// A record whose sequence id fails to parse is skipped without stopping the
// scan; a parse failure says nothing about having reached old territory.
//
// Compute never mutates candidates and is deterministic for a given input.
func Compute(candidates []types.AlertRecord, watermark int64, opts Options, logger zerolog.Logger) Plan {
	plan := Plan{ProposedWatermark: watermark}
	if len(candidates) == 0 {
		return plan
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		seq, err := c.Sequence()
		ranked = append(ranked, scored{record: c, seq: seq, ok: err == nil})
	}

	// Newest first: created_at compares lexicographically, sequence id
	// numerically. Stable so equal keys keep their fetch order.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].record.CreatedAt != ranked[j].record.CreatedAt {
			return ranked[i].record.CreatedAt > ranked[j].record.CreatedAt
		}
		return ranked[i].seq > ranked[j].seq
	})

	for _, c := range ranked {
		if !c.ok {
			plan.Skipped++
			logger.Warn().
				Str("sequence_id", c.record.SequenceID).
				Str("created_at", c.record.CreatedAt).
				Msg("Candidate has an unparsable sequence id, skipping it.")
			continue
		}
		if c.seq <= watermark {
			if !opts.ScanAll {
				break
			}
			continue
		}
		plan.Batch = append(plan.Batch, c.record)
		if c.seq > plan.ProposedWatermark {
			plan.ProposedWatermark = c.seq
		}
	}

	return plan
}
