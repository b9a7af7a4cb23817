// Package steps holds the catalogue of verification steps the widget knows
// about and the selection rules used when building a flow.
package steps

import "slices"

// Key identifies a verification step. Unknown keys are allowed everywhere;
// the catalogue only adds display data and dependency hints.
type Key string

const (
	Welcome             Key = "WELCOME"
	DocumentExtract     Key = "DOCUMENT_EXTRACT"
	DocumentVerify      Key = "DOCUMENT_VERIFY"
	Blacklist           Key = "BLACKLIST"
	IVerification       Key = "IVERIFICATION"
	LocationPermissions Key = "LOCATION_PERMISSIONS"
	OneToOne            Key = "OTO"
	Finish              Key = "FINISH"
)

// Step describes one catalogue entry.
type Step struct {
	Key          Key    `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Dependencies []Key  `json:"dependencies,omitempty"`
}

var catalog = []Step{
	{Key: Welcome, Name: "Welcome", Description: "Landing page of the flow"},
	{Key: DocumentExtract, Name: "Document extraction", Description: "Extracts data from the identity document"},
	{Key: DocumentVerify, Name: "Document verification", Description: "Verifies the identity document"},
	{Key: Blacklist, Name: "Blacklist", Description: "Checks the person against blacklists"},
	{Key: IVerification, Name: "Liveness", Description: "Live identity verification with a selfie"},
	{Key: LocationPermissions, Name: "Location", Description: "Requests geolocation permission"},
	{Key: OneToOne, Name: "One-to-one", Description: "Face match between document and selfie",
		Dependencies: []Key{DocumentExtract, IVerification}},
	{Key: Finish, Name: "Finish", Description: "Explicit end of the flow"},
}

// Catalog returns the known steps in display order.
func Catalog() []Step {
	out := make([]Step, len(catalog))
	for i, s := range catalog {
		s.Dependencies = slices.Clone(s.Dependencies)
		out[i] = s
	}
	return out
}

// Lookup returns the catalogue entry for key.
func Lookup(key Key) (Step, bool) {
	for _, s := range catalog {
		if s.Key == key {
			s.Dependencies = slices.Clone(s.Dependencies)
			return s, true
		}
	}
	return Step{}, false
}

// Dependencies lists the steps key requires; nil for unknown keys.
func Dependencies(key Key) []Key {
	s, ok := Lookup(key)
	if !ok {
		return nil
	}
	return s.Dependencies
}

// Select adds key to selection along with any dependency not yet selected.
// Order of the existing selection is preserved; new keys are appended.
func Select(selection []Key, key Key) []Key {
	out := slices.Clone(selection)
	for _, dep := range Dependencies(key) {
		if !slices.Contains(out, dep) {
			out = append(out, dep)
		}
	}
	if !slices.Contains(out, key) {
		out = append(out, key)
	}
	return out
}

// Deselect removes key and every selected step that depends on it.
func Deselect(selection []Key, key Key) []Key {
	removed := map[Key]bool{key: true}
	for changed := true; changed; {
		changed = false
		for _, k := range selection {
			if removed[k] {
				continue
			}
			for _, dep := range Dependencies(k) {
				if removed[dep] {
					removed[k] = true
					changed = true
					break
				}
			}
		}
	}
	out := make([]Key, 0, len(selection))
	for _, k := range selection {
		if !removed[k] {
			out = append(out, k)
		}
	}
	return out
}

// MissingDependencies maps each selected step to the dependencies absent
// from the selection. An empty map means the selection is consistent.
func MissingDependencies(selection []Key) map[Key][]Key {
	missing := make(map[Key][]Key)
	for _, k := range selection {
		for _, dep := range Dependencies(k) {
			if !slices.Contains(selection, dep) {
				missing[k] = append(missing[k], dep)
			}
		}
	}
	return missing
}

// Keys converts raw strings to step keys.
func Keys(raw []string) []Key {
	out := make([]Key, len(raw))
	for i, r := range raw {
		out[i] = Key(r)
	}
	return out
}
