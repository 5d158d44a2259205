package forwarder

import (
	"fmt"

	"github.com/illmade-knight/go-alertfeed/pkg/types"
)

// formatAlertText renders the per-record notification. Field layout follows
// the ops channel's established message shape, one notification per alert.
func formatAlertText(rec types.AlertRecord) string {
	d := rec.Display()
	return fmt.Sprintf(
		"**New disaster alert**\n\n"+
			"**Issued:** %s\n"+
			"**Category:** %s (%s)\n"+
			"**Region:** %s\n"+
			"**Message:** %s\n\n"+
			"_alert id: %s_",
		d.CreatedAt, d.Category, d.EmergencyStep, d.Region, d.Message, d.SequenceID,
	)
}

// formatNoNewAlertsText is the heartbeat message for an empty run.
func formatNoNewAlertsText(pipelineID string) string {
	return fmt.Sprintf("Alert feed monitor: no new alerts. (%s)", pipelineID)
}
