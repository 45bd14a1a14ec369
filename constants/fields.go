package constants

import (
	"strings"
)

// Field is one of the fixed tender attributes extracted from every document.
type Field string

const (
	ClientName            Field = "ClientName"
	ProjectName           Field = "ProjectName"
	TenderNumber          Field = "TenderNumber"
	FundingAgency         Field = "FundingAgency"
	EstimatedCost         Field = "EstimatedCost"
	BidSecurity           Field = "BidSecurity"
	BidValidity           Field = "BidValidity"
	PerformanceSecurity   Field = "PerformanceSecurity"
	CompletionPeriod      Field = "CompletionPeriod"
	SubmissionDeadline    Field = "SubmissionDeadline"
	PreBidMeeting         Field = "PreBidMeeting"
	BidOpeningDate        Field = "BidOpeningDate"
	TenderFee             Field = "TenderFee"
	EligibilityCriteria   Field = "EligibilityCriteria"
	ProjectLocation       Field = "ProjectLocation"
	ContactPerson         Field = "ContactPerson"
	DefectLiabilityPeriod Field = "DefectLiabilityPeriod"
	LiquidatedDamages     Field = "LiquidatedDamages"
	PaymentTerms          Field = "PaymentTerms"
)

var allFields = []Field{
	ClientName,
	ProjectName,
	TenderNumber,
	FundingAgency,
	EstimatedCost,
	BidSecurity,
	BidValidity,
	PerformanceSecurity,
	CompletionPeriod,
	SubmissionDeadline,
	PreBidMeeting,
	BidOpeningDate,
	TenderFee,
	EligibilityCriteria,
	ProjectLocation,
	ContactPerson,
	DefectLiabilityPeriod,
	LiquidatedDamages,
	PaymentTerms,
}

// fieldHints are rendered into the extraction prompt next to each key.
var fieldHints = map[Field]string{
	ClientName:            "organisation issuing the tender (employer / procuring entity)",
	ProjectName:           "name or title of the works, goods or services",
	TenderNumber:          "tender, bid or reference number",
	FundingAgency:         "source of funds (e.g. World Bank, government budget)",
	EstimatedCost:         "estimated contract value with currency",
	BidSecurity:           "bid security / earnest money amount or percentage",
	BidValidity:           "period the bid must remain valid",
	PerformanceSecurity:   "performance guarantee amount or percentage",
	CompletionPeriod:      "time allowed to complete the contract",
	SubmissionDeadline:    "last date and time for bid submission",
	PreBidMeeting:         "date, time and place of the pre-bid meeting",
	BidOpeningDate:        "date and time bids are opened",
	TenderFee:             "cost of the bidding document",
	EligibilityCriteria:   "key qualification or eligibility requirements",
	ProjectLocation:       "site or delivery location",
	ContactPerson:         "contact name, phone or email for queries",
	DefectLiabilityPeriod: "defect liability / warranty period",
	LiquidatedDamages:     "liquidated damages rate and cap",
	PaymentTerms:          "payment schedule, advances and retention",
}

// AsStringSlice returns the fixed field names in prompt order.
func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// Hint returns the prompt description for a field, or "" if none.
func Hint(name string) string {
	return fieldHints[Field(name)]
}

// CanonicalField maps a provider-returned key onto a fixed field name,
// ignoring case, spaces and underscores ("client_name" -> ClientName).
func CanonicalField(input string) (Field, bool) {
	normalized := squash(input)
	if normalized == "" {
		return "", false
	}
	for _, f := range allFields {
		if normalized == squash(string(f)) {
			return f, true
		}
	}
	return "", false
}

func squash(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
