package models

import (
	"encoding/json"

	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/strings"
)

// StepRef is one entry of the persisted step list.
type StepRef struct {
	Key string `json:"key"`
}

// SessionConfig is the single persisted record: the selected steps and the
// short key of the most recently created session.
type SessionConfig struct {
	ShortKey string    `json:"shortKey"`
	Steps    []StepRef `json:"steps"`
}

// Default is written the first time the store is read.
func Default() SessionConfig {
	return SessionConfig{
		ShortKey: "",
		Steps: []StepRef{
			{Key: "DOCUMENT_EXTRACT"},
			{Key: "DOCUMENT_VERIFY"},
			{Key: "IVERIFICATION"},
		},
	}
}

// Fallback is served when the store cannot be read.
func Fallback() SessionConfig {
	return SessionConfig{ShortKey: "", Steps: []StepRef{}}
}

// StepKeys flattens the step list.
func (c SessionConfig) StepKeys() []string {
	keys := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		keys[i] = s.Key
	}
	return keys
}

// Normalize replaces a null step list with an empty one.
func (c SessionConfig) Normalize() SessionConfig {
	if c.Steps == nil {
		c.Steps = []StepRef{}
	}
	return c
}

// StepsFromKeys wraps raw keys in the persisted shape, preserving order.
func StepsFromKeys(keys []string) []StepRef {
	refs := make([]StepRef, len(keys))
	for i, k := range keys {
		refs[i] = StepRef{Key: k}
	}
	return refs
}

// SaveStepsRequest is the body of POST /api/config.
type SaveStepsRequest struct {
	Steps json.RawMessage `json:"steps"`

	keys []string
}

// Validate requires steps to be a JSON array of strings. Blank entries are
// dropped and duplicates collapsed.
func (r *SaveStepsRequest) Validate() error {
	if len(r.Steps) == 0 || string(r.Steps) == "null" {
		return dErrors.New(dErrors.CodeValidation, "steps is required and must be an array")
	}
	var keys []string
	if err := json.Unmarshal(r.Steps, &keys); err != nil {
		return dErrors.New(dErrors.CodeValidation, "steps is required and must be an array")
	}
	r.keys = strings.DedupeAndTrim(keys)
	return nil
}

// Keys returns the validated step keys.
func (r *SaveStepsRequest) Keys() []string {
	return r.keys
}

// SaveStepsResponse is returned after a successful save.
type SaveStepsResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Config  SessionConfig `json:"config"`
}
