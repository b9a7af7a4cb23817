package models

import (
	"encoding/json"
	"regexp"

	"github.com/asaskevich/govalidator"

	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
)

// Defaults applied to blank fields of a flow request.
const (
	DefaultName            = "Embedded KYC Demo"
	DefaultFlow            = "DEMO_FLOW"
	DefaultCountryDocument = "MEX"
	DefaultFlowType        = "KYC"
)

var countryDocumentPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// FlowRequest is the body sent to the provider to open a verification session.
// Every field is optional on the way in.
type FlowRequest struct {
	Name             string            `json:"name"`
	Flow             string            `json:"flow"`
	RedirectURL      string            `json:"redirectUrl"`
	CountryDocument  string            `json:"countryDocument"`
	FlowType         string            `json:"flowType"`
	VerificationType string            `json:"verificationType"`
	Verification     map[string]string `json:"verification"`
}

// Validate rejects values the provider would refuse outright.
func (r *FlowRequest) Validate() error {
	if r.RedirectURL != "" && !govalidator.IsRequestURL(r.RedirectURL) {
		return dErrors.New(dErrors.CodeValidation, "redirectUrl must be an absolute URL")
	}
	if r.CountryDocument != "" && !countryDocumentPattern.MatchString(r.CountryDocument) {
		return dErrors.New(dErrors.CodeValidation, "countryDocument must be a three letter country code")
	}
	return nil
}

// WithDefaults fills blank fields. A missing verification map becomes the
// three empty channels the provider expects.
func (r FlowRequest) WithDefaults() FlowRequest {
	if r.Name == "" {
		r.Name = DefaultName
	}
	if r.Flow == "" {
		r.Flow = DefaultFlow
	}
	if r.CountryDocument == "" {
		r.CountryDocument = DefaultCountryDocument
	}
	if r.FlowType == "" {
		r.FlowType = DefaultFlowType
	}
	if r.Verification == nil {
		r.Verification = map[string]string{"EMAIL": "", "SMS": "", "WHATSAPP": ""}
	}
	return r
}

// Session is a successfully created provider session.
type Session struct {
	Data     json.RawMessage
	ShortKey *string
}

// FlowResponse is returned by POST /api/kyc/flow on success.
type FlowResponse struct {
	Success           bool            `json:"success"`
	Data              json.RawMessage `json:"data"`
	ExtractedShortKey *string         `json:"extractedShortKey"`
}

// FlowFailure is returned when the provider call fails. Error holds the
// upstream body verbatim when there is one.
type FlowFailure struct {
	Success    bool            `json:"success"`
	Error      json.RawMessage `json:"error"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode,omitempty"`
	Category   string          `json:"category"`
	Details    string          `json:"details"`
}
