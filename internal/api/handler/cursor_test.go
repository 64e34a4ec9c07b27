package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslister/dispatch-be/internal/jobstore"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	cursor := &jobstore.JobCursor{
		CreatedAt: created,
		JobID:     "f0e9c3a1-8a25-4a8c-9d6b-2f1c3d4e5f60",
	}

	encoded, err := EncodeJobCursor(cursor)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, cursor.JobID, decoded.JobID)
	assert.True(t, decoded.CreatedAt.Equal(created))
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{
			name:   "not base64",
			cursor: "!!definitely-not-base64!!",
		},
		{
			name:   "missing separator",
			cursor: base64.StdEncoding.EncodeToString([]byte("no-separator-here")),
		},
		{
			name:   "non-numeric timestamp",
			cursor: base64.StdEncoding.EncodeToString([]byte("abc|some-job-id")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}
