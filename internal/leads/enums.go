package leads

// Status is a position in the lead pipeline.
type Status string

const (
	StatusNew                Status = "new"
	StatusContacted          Status = "contacted"
	StatusInProgress         Status = "in-progress"
	StatusSiteVisitScheduled Status = "site-visit-scheduled"
	StatusNegotiation        Status = "negotiation"
	StatusConverted          Status = "converted"
	StatusClosed             Status = "closed"
	StatusLost               Status = "lost"
)

// Statuses lists the pipeline in its canonical order.
var Statuses = []Status{
	StatusNew,
	StatusContacted,
	StatusInProgress,
	StatusSiteVisitScheduled,
	StatusNegotiation,
	StatusConverted,
	StatusClosed,
	StatusLost,
}

func (s Status) Valid() bool { return contains(Statuses, s) }

// Priority ranks how urgently a lead should be worked.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool { return contains(Priorities, p) }

// Source records the channel an inquiry arrived through.
type Source string

const (
	SourceWebsiteForm    Source = "website-form"
	SourcePhoneCall      Source = "phone-call"
	SourceWalkIn         Source = "walk-in"
	SourceReferral       Source = "referral"
	SourceSocialMedia    Source = "social-media"
	SourcePropertyPortal Source = "property-portal"
	SourceOther          Source = "other"
)

var Sources = []Source{
	SourceWebsiteForm,
	SourcePhoneCall,
	SourceWalkIn,
	SourceReferral,
	SourceSocialMedia,
	SourcePropertyPortal,
	SourceOther,
}

func (s Source) Valid() bool { return contains(Sources, s) }

// PropertyType is the kind of unit the buyer is looking for.
type PropertyType string

const (
	PropertyType1BHK       PropertyType = "1bhk"
	PropertyType2BHK       PropertyType = "2bhk"
	PropertyType3BHK       PropertyType = "3bhk"
	PropertyType4BHK       PropertyType = "4bhk"
	PropertyTypeVilla      PropertyType = "villa"
	PropertyTypePlot       PropertyType = "plot"
	PropertyTypeCommercial PropertyType = "commercial"
)

var PropertyTypes = []PropertyType{
	PropertyType1BHK,
	PropertyType2BHK,
	PropertyType3BHK,
	PropertyType4BHK,
	PropertyTypeVilla,
	PropertyTypePlot,
	PropertyTypeCommercial,
}

func (p PropertyType) Valid() bool { return contains(PropertyTypes, p) }

// BudgetRange is a coded bracket in lakhs of rupees.
type BudgetRange string

const (
	BudgetBelow30  BudgetRange = "below-30"
	Budget30To50   BudgetRange = "30-50"
	Budget50To75   BudgetRange = "50-75"
	Budget75To100  BudgetRange = "75-100"
	Budget100To150 BudgetRange = "100-150"
	BudgetAbove150 BudgetRange = "above-150"
)

var BudgetRanges = []BudgetRange{
	BudgetBelow30,
	Budget30To50,
	Budget50To75,
	Budget75To100,
	Budget100To150,
	BudgetAbove150,
}

func (b BudgetRange) Valid() bool { return contains(BudgetRanges, b) }

// Locality is one of the sub-areas the brokerage covers.
type Locality string

const (
	LocalityMalad      Locality = "malad"
	LocalityGoregaon   Locality = "goregaon"
	LocalityKandivali  Locality = "kandivali"
	LocalityBorivali   Locality = "borivali"
	LocalityDahisar    Locality = "dahisar"
	LocalityAndheri    Locality = "andheri"
	LocalityJogeshwari Locality = "jogeshwari"
	LocalityMiraRoad   Locality = "mira-road"
)

var Localities = []Locality{
	LocalityMalad,
	LocalityGoregaon,
	LocalityKandivali,
	LocalityBorivali,
	LocalityDahisar,
	LocalityAndheri,
	LocalityJogeshwari,
	LocalityMiraRoad,
}

func (l Locality) Valid() bool { return contains(Localities, l) }

func contains[T comparable](set []T, v T) bool {
	for _, candidate := range set {
		if candidate == v {
			return true
		}
	}
	return false
}
