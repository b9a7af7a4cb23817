// Package login validates the demo login form and turns it into a KYC flow
// request. No credential is ever checked; the form only gates session
// creation.
package login

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	pkgstrings "github.com/soyYisus/jaak-kyc-demo/pkg/platform/strings"
)

// Field names as submitted by the login page.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldPhone    = "phone"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	MinPhoneDigits    = 8

	// FlowName is the provider flow opened from the login page.
	FlowName = "JAAK_DEMO_FLOW"
	// DefaultCountryCode is used when the form omits a dialing code.
	DefaultCountryCode = "+52"
	// StepDelay paces the verification animation shown before redirecting.
	StepDelay = 800 * time.Millisecond
)

// phonePattern accepts 8 to 15 characters of digits, spaces, dashes,
// parentheses and plus signs.
const phonePattern = `^[\d\s\-\(\)\+]{8,15}$`

// ProgressSteps labels the verification animation, in order.
var ProgressSteps = []string{"Validating data", "Creating session", "Preparing verification"}

var documentCountries = map[string]string{
	"+52": "MEX",
	"+1":  "USA",
	"+34": "ESP",
	"+33": "FRA",
	"+49": "DEU",
}

// Form is the login page submission.
type Form struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

// Error lists the failing fields in a stable order.
func (fe FieldErrors) Error() string {
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fe[name])
	}
	return strings.Join(parts, "; ")
}

// ValidateUsername requires at least three characters once trimmed.
func ValidateUsername(v string) string {
	if !govalidator.MinStringLength(strings.TrimSpace(v), strconv.Itoa(MinUsernameLength)) {
		return "username must be at least 3 characters"
	}
	return ""
}

// ValidatePassword requires at least six characters once trimmed.
func ValidatePassword(v string) string {
	if !govalidator.MinStringLength(strings.TrimSpace(v), strconv.Itoa(MinPasswordLength)) {
		return "password must be at least 6 characters"
	}
	return ""
}

// ValidatePhone accepts 8 to 15 characters of digits, spaces, dashes,
// parentheses and plus signs, holding at least eight digits.
func ValidatePhone(v string) string {
	v = strings.TrimSpace(v)
	if !govalidator.Matches(v, phonePattern) || len(pkgstrings.DigitsOnly(v)) < MinPhoneDigits {
		return "invalid phone number"
	}
	return ""
}

// Validate checks every field and returns all failures at once.
func (f Form) Validate() error {
	errs := FieldErrors{}
	if msg := ValidateUsername(f.Username); msg != "" {
		errs[FieldUsername] = msg
	}
	if msg := ValidatePassword(f.Password); msg != "" {
		errs[FieldPassword] = msg
	}
	if msg := ValidatePhone(f.Phone); msg != "" {
		errs[FieldPhone] = msg
	}
	if len(errs) > 0 {
		return dErrors.Wrap(errs, dErrors.CodeValidation, "please correct the highlighted fields")
	}
	return nil
}

// DocumentCountry maps a dialing code to the document country, defaulting
// to MEX.
func DocumentCountry(countryCode string) string {
	if c, ok := documentCountries[strings.TrimSpace(countryCode)]; ok {
		return c
	}
	return models.DefaultCountryDocument
}

// FullPhone joins the dialing code with the digits of the phone number.
func (f Form) FullPhone() string {
	code := strings.TrimSpace(f.CountryCode)
	if code == "" {
		code = DefaultCountryCode
	}
	return code + pkgstrings.DigitsOnly(f.Phone)
}

// BuildFlowRequest turns a validated form into the flow request sent to the
// session proxy.
func BuildFlowRequest(f Form) models.FlowRequest {
	return models.FlowRequest{
		Name:            strings.TrimSpace(f.Username),
		Flow:            FlowName,
		CountryDocument: DocumentCountry(f.CountryCode),
		FlowType:        models.DefaultFlowType,
		Verification:    map[string]string{"SMS": f.FullPhone()},
	}
}

// SimulateSteps calls fn for each of n steps, waiting delay before each one.
// It stops early with the context error when ctx is cancelled.
func SimulateSteps(ctx context.Context, n int, delay time.Duration, fn func(step int)) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for i := 0; i < n; i++ {
		if i > 0 {
			timer.Reset(delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		fn(i)
	}
	return nil
}
