package types

import "encoding/json"

// AlertDisplay holds the human-facing fields pulled out of a raw alert for
// notification text. Missing fields degrade to placeholder values rather
// than failing: notifications are best-effort and should never block a run.
type AlertDisplay struct {
	SequenceID    string
	CreatedAt     string
	Category      string // disaster type, upstream "DST_SE_NM"
	EmergencyStep string // upstream "EMRG_STEP_NM"
	Region        string // receiving region, upstream "RCPTN_RGN_NM"
	Message       string // alert body text, upstream "MSG_CN"
}

const displayPlaceholder = "n/a"

// Display extracts the notification fields from the raw upstream object.
func (r AlertRecord) Display() AlertDisplay {
	var probe struct {
		Category      string `json:"DST_SE_NM"`
		EmergencyStep string `json:"EMRG_STEP_NM"`
		Region        string `json:"RCPTN_RGN_NM"`
		Message       string `json:"MSG_CN"`
	}
	_ = json.Unmarshal(r.Raw, &probe)

	d := AlertDisplay{
		SequenceID:    r.SequenceID,
		CreatedAt:     r.CreatedAt,
		Category:      probe.Category,
		EmergencyStep: probe.EmergencyStep,
		Region:        probe.Region,
		Message:       probe.Message,
	}
	if d.SequenceID == "" {
		d.SequenceID = displayPlaceholder
	}
	if d.CreatedAt == "" {
		d.CreatedAt = displayPlaceholder
	}
	if d.Category == "" {
		d.Category = displayPlaceholder
	}
	if d.EmergencyStep == "" {
		d.EmergencyStep = displayPlaceholder
	}
	if d.Region == "" {
		d.Region = displayPlaceholder
	}
	if d.Message == "" {
		d.Message = displayPlaceholder
	}
	return d
}
