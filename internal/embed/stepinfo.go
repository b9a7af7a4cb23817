package embed

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
)

// stepDetails lists the user-facing facts worth logging for a completed step.
func stepDetails(key string, data json.RawMessage) []string {
	if !truthy(gjson.ParseBytes(data)) {
		return nil
	}
	get := func(path string) gjson.Result { return gjson.GetBytes(data, path) }

	var out []string
	switch steps.Key(key) {
	case steps.LocationPermissions:
		lat, long := get("latitude"), get("longitude")
		if truthy(lat) && truthy(long) {
			out = append(out, fmt.Sprintf("Location: %s, %s", lat.String(), long.String()))
		}
	case steps.DocumentExtract, steps.DocumentVerify:
		if truthy(get("face")) || truthy(get("document")) {
			out = append(out, "Document image captured")
		}
		if truthy(get("extractedText")) {
			out = append(out, "Text extracted from the document")
		}
	case steps.IVerification:
		if truthy(get("bestFrame")) || truthy(get("selfie")) {
			out = append(out, "Verification selfie captured")
		}
	case steps.OneToOne:
		if sim := get("similarity"); truthy(sim) {
			out = append(out, fmt.Sprintf("Face similarity: %s%%", sim.String()))
		}
	}
	return out
}

// truthy follows the widget's notion of a present value.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return r.Exists()
	}
}
