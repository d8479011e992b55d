package leads

import (
	"fmt"
	"math"
	"time"
)

// Changes is the allow-list of fields an admin may set directly, through
// Update for one lead or BulkUpdate for many. Setting Status here never
// stamps LastContactedAt or ConvertedAt; only ChangeStatus does that.
// Identity and intake metadata have no field here and so cannot be changed.
type Changes struct {
	Status            *Status    `json:"status,omitempty"`
	Priority          *Priority  `json:"priority,omitempty"`
	AssignedTo        *string    `json:"assigned_to,omitempty"`
	FollowUpDate      *time.Time `json:"follow_up_date,omitempty"`
	LastContactedAt   *time.Time `json:"last_contacted_at,omitempty"`
	ConvertedProperty *string    `json:"converted_property,omitempty"`
	DealValue         *float64   `json:"deal_value,omitempty"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return len(c.columns()) == 0
}

// Validate checks closed sets and the deal value bound.
func (c Changes) Validate() error {
	if c.Status != nil {
		if err := validateStatus(*c.Status); err != nil {
			return err
		}
	}
	if c.Priority != nil && !c.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not an allowed value", *c.Priority)}
	}
	if c.DealValue != nil && (*c.DealValue < 0 || math.IsNaN(*c.DealValue) || math.IsInf(*c.DealValue, 0)) {
		return &ValidationError{Field: "deal_value", Reason: "must be a number >= 0"}
	}
	return nil
}

// Apply copies the set fields onto lead. It deliberately carries no pipeline side effects.
func (c Changes) Apply(lead *Lead) {
	if c.Status != nil {
		lead.Status = *c.Status
	}
	if c.Priority != nil {
		lead.Priority = *c.Priority
	}
	if c.AssignedTo != nil {
		lead.AssignedTo = *c.AssignedTo
	}
	if c.FollowUpDate != nil {
		lead.FollowUpDate = cloneTime(c.FollowUpDate)
	}
	if c.LastContactedAt != nil {
		lead.LastContactedAt = cloneTime(c.LastContactedAt)
	}
	if c.ConvertedProperty != nil {
		lead.ConvertedProperty = *c.ConvertedProperty
	}
	if c.DealValue != nil {
		v := *c.DealValue
		lead.DealValue = &v
	}
}

// column is one storage field touched by a Changes value.
type column struct {
	name  string
	value any
}

// columns lists the set fields in a fixed order, keyed by their storage names.
func (c Changes) columns() []column {
	var cols []column
	if c.Status != nil {
		cols = append(cols, column{"status", string(*c.Status)})
	}
	if c.Priority != nil {
		cols = append(cols, column{"priority", string(*c.Priority)})
	}
	if c.AssignedTo != nil {
		cols = append(cols, column{"assigned_to", *c.AssignedTo})
	}
	if c.FollowUpDate != nil {
		cols = append(cols, column{"follow_up_date", *c.FollowUpDate})
	}
	if c.LastContactedAt != nil {
		cols = append(cols, column{"last_contacted_at", *c.LastContactedAt})
	}
	if c.ConvertedProperty != nil {
		cols = append(cols, column{"converted_property", *c.ConvertedProperty})
	}
	if c.DealValue != nil {
		cols = append(cols, column{"deal_value", *c.DealValue})
	}
	return cols
}
