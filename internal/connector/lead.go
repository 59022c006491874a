package connector

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadenrich-connector/pkg/bettercontact"
)

var validate = validator.New()

// LeadInput is the body accepted by both submit flows.
type LeadInput struct {
	Connection         Connection `json:"connection" yaml:"-"`
	FirstName          string     `json:"first_name" yaml:"first_name" validate:"required"`
	LastName           string     `json:"last_name" yaml:"last_name" validate:"required"`
	Company            string     `json:"company,omitempty" yaml:"company,omitempty" validate:"required_without=CompanyDomain"`
	CompanyDomain      string     `json:"company_domain,omitempty" yaml:"company_domain,omitempty" validate:"required_without=Company"`
	LinkedInURL        string     `json:"linkedin_url,omitempty" yaml:"linkedin_url,omitempty"`
	EnrichEmailAddress *bool      `json:"enrich_email_address,omitempty" yaml:"enrich_email_address,omitempty"`
	EnrichPhoneNumber  *bool      `json:"enrich_phone_number,omitempty" yaml:"enrich_phone_number,omitempty"`
}

// fieldMessages maps struct fields to the message shown when they fail.
var fieldMessages = map[string]string{
	"FirstName":     "First name is required",
	"LastName":      "Last name is required",
	"Company":       "Either company name or company domain is required",
	"CompanyDomain": "Either company name or company domain is required",
}

// Normalize trims text fields and NFC-normalizes names. The domain is lowercased.
func (in *LeadInput) Normalize() {
	in.FirstName = clean(in.FirstName)
	in.LastName = clean(in.LastName)
	in.Company = clean(in.Company)
	in.CompanyDomain = strings.ToLower(strings.TrimSpace(in.CompanyDomain))
	in.LinkedInURL = strings.TrimSpace(in.LinkedInURL)
}

// Validate reports the first missing field as a validation error.
func (in *LeadInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].StructField()]; ok {
			return bettercontact.NewValidationError(msg)
		}
		return bettercontact.NewValidationError("Invalid lead field: " + verrs[0].Field())
	}
	return bettercontact.NewValidationError(err.Error())
}

// Lead builds the Provider payload for this input.
func (in *LeadInput) Lead(correlationID, listName string) bettercontact.Lead {
	return bettercontact.Lead{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Company:       in.Company,
		CompanyDomain: in.CompanyDomain,
		LinkedInURL:   in.LinkedInURL,
		CustomFields: bettercontact.CustomFields{
			UUID:     correlationID,
			ListName: listName,
		},
	}
}

// DisplayCompany is the company name, or the domain when no name was given.
func (in *LeadInput) DisplayCompany() string {
	if in.Company != "" {
		return in.Company
	}
	return in.CompanyDomain
}

func (in *LeadInput) enrichEmail() bool { return boolOr(in.EnrichEmailAddress, true) }
func (in *LeadInput) enrichPhone() bool { return boolOr(in.EnrichPhoneNumber, true) }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ResultsInput is the body accepted by the fetch flow.
type ResultsInput struct {
	Connection Connection `json:"connection"`
	RequestID  string     `json:"request_id"`
}
