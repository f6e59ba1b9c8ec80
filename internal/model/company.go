package model

import "time"

// Classification is the business relationship of a company to us.
type Classification string

const (
	ClassificationNone       Classification = ""
	ClassificationCompetitor Classification = "Competitor"
	ClassificationClient     Classification = "Client"
)

const (
	CategoryAgency = "Agency / Consultancy"
	CategorySaaS   = "SaaS / Tools"
)

// CategoryFor derives the company category from its classification.
func CategoryFor(c Classification) string {
	if c == ClassificationCompetitor {
		return CategoryAgency
	}
	return CategorySaaS
}

// Company is identified by its normalized name.
type Company struct {
	ID             int64
	Name           string
	Classification Classification
	Category       string
	Region         string
	Industry       string
	LastSeen       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OpportunityView is the reasoning model's verdict on the relationship.
type OpportunityView string

const (
	ViewClient     OpportunityView = "Client"
	ViewCompetitor OpportunityView = "Competitor"
	ViewNeutral    OpportunityView = "Neutral"
)

// Classification maps a decisive view onto a company classification.
// Neutral yields ClassificationNone.
func (v OpportunityView) Classification() Classification {
	switch v {
	case ViewClient:
		return ClassificationClient
	case ViewCompetitor:
		return ClassificationCompetitor
	default:
		return ClassificationNone
	}
}

// OpportunityJudgment is an externally reasoned assessment of a posting's company.
type OpportunityJudgment struct {
	RoleType      string // AgencyProvider, BrandBuyer, PlatformSaaS, Recruiter, Other
	BuyerOrSeller string // Buyer, Seller, Unknown
	View          OpportunityView
	Confidence    float64 // in [0,1]
	Rationale     string
	Industry      string
}
