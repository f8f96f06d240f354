// internal/functions/notify/variables.go
package notify

import (
	"fmt"
	"strings"
)

// FlattenEventData turns an arbitrarily nested event payload into the flat
// UPPER_SNAKE variable map the email templates consume. Nested object keys
// are joined with an underscore (PARENT_CHILD), nil values are dropped,
// strings and numbers pass through unchanged, everything else is rendered
// with the default Go formatting. Flattening an already-flat map is a no-op.
func FlattenEventData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, data map[string]interface{}) {
	for key, value := range data {
		name := variableName(key)
		if prefix != "" {
			name = prefix + "_" + name
		}

		switch v := value.(type) {
		case nil:
			// dropped
		case map[string]interface{}:
			flattenInto(out, name, v)
		case string:
			out[name] = v
		case int, int32, int64, float32, float64:
			out[name] = v
		default:
			out[name] = fmt.Sprintf("%v", v)
		}
	}
}

func variableName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// ApplyReservedRemap renames the EMAIL variable so templates never confuse a
// submitter's address with the recipient's. Contact submissions keep their
// own alias for template compatibility.
func ApplyReservedRemap(vars map[string]interface{}, eventType string) {
	value, ok := vars["EMAIL"]
	if !ok {
		return
	}
	delete(vars, "EMAIL")
	if eventType == TypeContactSubmission {
		vars["CONTACT_EMAIL"] = value
	} else {
		vars["SUBMITTER_EMAIL"] = value
	}
}
