package leads

import (
	"math"
	"time"
)

var budgetLabels = map[BudgetRange]string{
	BudgetBelow30:  "Below ₹30 Lakhs",
	Budget30To50:   "₹30-50 Lakhs",
	Budget50To75:   "₹50-75 Lakhs",
	Budget75To100:  "₹75 Lakhs-1 Crore",
	Budget100To150: "₹1-1.5 Crore",
	BudgetAbove150: "Above ₹1.5 Crore",
}

var propertyTypeLabels = map[PropertyType]string{
	PropertyType1BHK:       "1 BHK",
	PropertyType2BHK:       "2 BHK",
	PropertyType3BHK:       "3 BHK",
	PropertyType4BHK:       "4 BHK",
	PropertyTypeVilla:      "Villa",
	PropertyTypePlot:       "Plot",
	PropertyTypeCommercial: "Commercial",
}

var localityLabels = map[Locality]string{
	LocalityMalad:      "Malad",
	LocalityGoregaon:   "Goregaon",
	LocalityKandivali:  "Kandivali",
	LocalityBorivali:   "Borivali",
	LocalityDahisar:    "Dahisar",
	LocalityAndheri:    "Andheri",
	LocalityJogeshwari: "Jogeshwari",
	LocalityMiraRoad:   "Mira Road",
}

// FormattedBudget returns the display label for a budget code, or the code itself if unknown.
func FormattedBudget(code string) string {
	if label, ok := budgetLabels[BudgetRange(code)]; ok {
		return label
	}
	return code
}

// FormattedPropertyType returns the display label for a property type code, or the code itself.
func FormattedPropertyType(code string) string {
	if label, ok := propertyTypeLabels[PropertyType(code)]; ok {
		return label
	}
	return code
}

// FormattedLocality returns the display name for a locality code, or the code itself.
func FormattedLocality(code string) string {
	if label, ok := localityLabels[Locality(code)]; ok {
		return label
	}
	return code
}

// DaysSinceCreated is ceil((now - createdAt) / 24h). A lead created earlier the
// same day therefore reports 1, not 0.
func DaysSinceCreated(createdAt, now time.Time) int {
	elapsed := now.Sub(createdAt)
	return int(math.Ceil(elapsed.Hours() / 24))
}

// LeadView is a lead plus display fields computed at read time. None of the
// extra fields are persisted.
type LeadView struct {
	*Lead
	DaysSinceCreated      int    `json:"days_since_created"`
	FormattedBudget       string `json:"formatted_budget"`
	FormattedPropertyType string `json:"formatted_property_type"`
	FormattedLocality     string `json:"formatted_locality"`

	// Resolved references, filled only when a Directory is configured.
	// StaffNames maps the assignee and note author ids to display names.
	StaffNames            map[string]string `json:"staff_names,omitempty"`
	ConvertedPropertyName string            `json:"converted_property_name,omitempty"`
}

// NewView derives the display fields for lead as of now.
func NewView(lead *Lead, now time.Time) LeadView {
	return LeadView{
		Lead:                  lead,
		DaysSinceCreated:      DaysSinceCreated(lead.CreatedAt, now),
		FormattedBudget:       FormattedBudget(string(lead.BudgetRange)),
		FormattedPropertyType: FormattedPropertyType(string(lead.PropertyType)),
		FormattedLocality:     FormattedLocality(string(lead.PreferredLocality)),
	}
}
