package leads

import "time"

// Transition moves lead into status to and applies the pipeline side effects.
//
// Every status may move to every other status (and to itself); there is no
// transition graph. Entering contacted or in-progress stamps LastContactedAt.
// Entering converted stamps ConvertedAt, again on every re-entry, and leaving
// converted never clears it.
//
// Transition is only called from Service.ChangeStatus. Changes.Apply, used by
// Update and BulkUpdate, sets the status without any of these effects.
func Transition(lead *Lead, to Status, now time.Time) (from Status, err error) {
	if err := validateStatus(to); err != nil {
		return lead.Status, err
	}
	from = lead.Status
	lead.Status = to

	switch to {
	case StatusContacted, StatusInProgress:
		stamped := now
		lead.LastContactedAt = &stamped
	case StatusConverted:
		stamped := now
		lead.ConvertedAt = &stamped
	}
	return from, nil
}
