package jobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadParam(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantValid bool
	}{
		{
			name:      "listing snapshot binds as JSON",
			payload:   `{"listing_id":"lst-1","title":"Jacket"}`,
			wantValid: true,
		},
		{
			name: "empty payload binds as NULL",
			// DELETE jobs have no snapshot; '' is not valid jsonb input.
			payload:   "",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			param := payloadParam(tt.payload)
			assert.Equal(t, tt.wantValid, param.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.payload, param.String)
			}
		})
	}
}

func TestJobColumns_TolerateNullPayload(t *testing.T) {
	// Reads must map a NULL payload back to '' because Job.Payload is a
	// plain string.
	assert.Contains(t, jobColumns, "COALESCE(payload::text, '') AS payload")
}
