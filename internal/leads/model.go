package leads

import (
	"strings"
	"time"
)

// Lead is one inbound property inquiry.
type Lead struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone" bson:"phone"`
	// Message is the optional free text typed into the enquiry form.
	Message string `json:"message,omitempty" bson:"message,omitempty"`

	PropertyType      PropertyType `json:"property_type" bson:"property_type"`
	BudgetRange       BudgetRange  `json:"budget_range" bson:"budget_range"`
	PreferredLocality Locality     `json:"preferred_locality" bson:"preferred_locality"`

	Source   Source   `json:"source" bson:"source"`
	Status   Status   `json:"status" bson:"status"`
	Priority Priority `json:"priority" bson:"priority"`

	AssignedTo      string     `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	FollowUpDate    *time.Time `json:"follow_up_date,omitempty" bson:"follow_up_date,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty" bson:"last_contacted_at,omitempty"`

	Notes []Note `json:"notes" bson:"notes"`

	ConvertedProperty string     `json:"converted_property,omitempty" bson:"converted_property,omitempty"`
	ConvertedAt       *time.Time `json:"converted_at,omitempty" bson:"converted_at,omitempty"`
	DealValue         *float64   `json:"deal_value,omitempty" bson:"deal_value,omitempty"`

	Intake Intake `json:"intake" bson:"intake"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Note is an append-only annotation on a lead.
type Note struct {
	Message string    `json:"message" bson:"message"`
	AddedBy string    `json:"added_by" bson:"added_by"`
	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// Intake is captured once when the lead is created and never changes afterwards.
type Intake struct {
	IPAddress   string `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	UTMSource   string `json:"utm_source,omitempty" bson:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty" bson:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty" bson:"utm_campaign,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	out.FollowUpDate = cloneTime(l.FollowUpDate)
	out.LastContactedAt = cloneTime(l.LastContactedAt)
	out.ConvertedAt = cloneTime(l.ConvertedAt)
	if l.DealValue != nil {
		v := *l.DealValue
		out.DealValue = &v
	}
	if l.Notes != nil {
		out.Notes = append([]Note(nil), l.Notes...)
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateLeadRequest is the intake payload submitted by the public form.
type CreateLeadRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,max=20"`
	Message string `json:"message" validate:"max=2000"`

	PropertyType      PropertyType `json:"property_type" validate:"required,property_type"`
	BudgetRange       BudgetRange  `json:"budget_range" validate:"required,budget_range"`
	PreferredLocality Locality     `json:"preferred_locality" validate:"required,locality"`

	Source   Source   `json:"source" validate:"omitempty,lead_source"`
	Status   Status   `json:"status" validate:"omitempty,lead_status"`
	Priority Priority `json:"priority" validate:"omitempty,lead_priority"`

	UTMSource   string `json:"utm_source" validate:"max=200"`
	UTMMedium   string `json:"utm_medium" validate:"max=200"`
	UTMCampaign string `json:"utm_campaign" validate:"max=200"`

	// Filled by the transport layer from the HTTP request.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Validate trims the identity fields and checks required fields and closed sets.
func (r *CreateLeadRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Message = strings.TrimSpace(r.Message)
	return validateStruct(r)
}

// newLead builds the record for a validated request, applying pipeline defaults.
func (r *CreateLeadRequest) newLead(id string, now time.Time) *Lead {
	lead := &Lead{
		ID:                id,
		Name:              r.Name,
		Email:             r.Email,
		Phone:             r.Phone,
		Message:           r.Message,
		PropertyType:      r.PropertyType,
		BudgetRange:       r.BudgetRange,
		PreferredLocality: r.PreferredLocality,
		Source:            r.Source,
		Status:            r.Status,
		Priority:          r.Priority,
		Notes:             []Note{},
		Intake: Intake{
			IPAddress:   r.IPAddress,
			UserAgent:   r.UserAgent,
			UTMSource:   r.UTMSource,
			UTMMedium:   r.UTMMedium,
			UTMCampaign: r.UTMCampaign,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if lead.Source == "" {
		lead.Source = SourceWebsiteForm
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if lead.Priority == "" {
		lead.Priority = PriorityMedium
	}
	return lead
}

// SortField names a column the list endpoint may order by.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByName      SortField = "name"
	SortByStatus    SortField = "status"
	SortByPriority  SortField = "priority"
)

func (f SortField) valid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByName, SortByStatus, SortByPriority:
		return true
	}
	return false
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListFilter narrows and pages the admin lead list.
type ListFilter struct {
	Status     Status
	Priority   Priority
	Locality   Locality
	Budget     BudgetRange
	AssignedTo string

	SortBy   SortField
	SortDesc bool
	Page     int
	PageSize int
}

// normalize applies defaults and clamps paging.
func (f ListFilter) normalize() ListFilter {
	if !f.SortBy.valid() {
		f.SortBy = SortByCreatedAt
		f.SortDesc = true
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	} else if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.PageSize
}

// matches reports whether lead passes every set predicate.
func (f ListFilter) matches(l *Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Priority != "" && l.Priority != f.Priority {
		return false
	}
	if f.Locality != "" && l.PreferredLocality != f.Locality {
		return false
	}
	if f.Budget != "" && l.BudgetRange != f.Budget {
		return false
	}
	if f.AssignedTo != "" && l.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// ListPage is one page of leads plus the total match count.
type ListPage struct {
	Leads      []LeadView `json:"leads"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
