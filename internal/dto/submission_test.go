package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionPayloadSnakeCaseKeys(t *testing.T) {
	var payload SubmissionPayload
	raw := `{"submitted_at":"2024-05-06T10:00:00Z","members":10,"children":4,"men":3,"women":3,"tithe_amount":125000.5}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	require.NotNil(t, payload.SubmittedAt)
	assert.Equal(t, 2024, payload.SubmittedAt.Year())
	assert.InDelta(t, 125000.5, payload.TitheAmount, 0.001)
}
