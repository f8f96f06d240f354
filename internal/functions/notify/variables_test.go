// internal/functions/notify/variables_test.go
package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenEventData_Nested(t *testing.T) {
	data := map[string]interface{}{
		"donor": map[string]interface{}{
			"name":   "Ann Mbeki",
			"amount": 25.5,
		},
		"message": "for the youth fund",
		"note":    nil,
		"tags":    []interface{}{"online", "recurring"},
	}

	vars := FlattenEventData(data)

	assert.Equal(t, "Ann Mbeki", vars["DONOR_NAME"])
	assert.Equal(t, 25.5, vars["DONOR_AMOUNT"])
	assert.Equal(t, "for the youth fund", vars["MESSAGE"])
	assert.Equal(t, "[online recurring]", vars["TAGS"])
	assert.NotContains(t, vars, "NOTE")
}

func TestFlattenEventData_DeepNesting(t *testing.T) {
	data := map[string]interface{}{
		"request": map[string]interface{}{
			"member": map[string]interface{}{
				"firstName": "Joel",
			},
		},
	}

	vars := FlattenEventData(data)

	assert.Equal(t, "Joel", vars["REQUEST_MEMBER_FIRSTNAME"])
	assert.Len(t, vars, 1)
}

func TestFlattenEventData_Idempotent(t *testing.T) {
	data := map[string]interface{}{
		"name":   "Ruth",
		"amount": 10,
		"nested": map[string]interface{}{"key": "value"},
	}

	once := FlattenEventData(data)
	twice := FlattenEventData(once)

	assert.Equal(t, once, twice)
}

func TestApplyReservedRemap(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		wantKey   string
	}{
		{"contact submission keeps its alias", TypeContactSubmission, "CONTACT_EMAIL"},
		{"every other type gets the submitter alias", TypeSuggestion, "SUBMITTER_EMAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := map[string]interface{}{"EMAIL": "person@example.org"}
			ApplyReservedRemap(vars, tt.eventType)

			assert.NotContains(t, vars, "EMAIL")
			assert.Equal(t, "person@example.org", vars[tt.wantKey])
		})
	}
}

func TestApplyReservedRemap_NoEmailVariable(t *testing.T) {
	vars := map[string]interface{}{"NAME": "Ruth"}
	ApplyReservedRemap(vars, TypeDonation)

	assert.Equal(t, map[string]interface{}{"NAME": "Ruth"}, vars)
}
