package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadenrich-connector/internal/api"
)

func sampleEnvelope() api.Envelope {
	return api.Envelope{
		Data:     json.RawMessage(`{"email":"ada@a.io","found":true}`),
		Metadata: map[string]any{"request_id": "r1", "poll_attempts": 2},
	}
}

func TestPrintResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "json", sampleEnvelope()))

	assert.JSONEq(t, `{"data":{"email":"ada@a.io","found":true},"metadata":{"request_id":"r1","poll_attempts":2}}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"data\"")
}

func TestPrintResult_DefaultIsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "", map[string]string{"a": "b"}))
	assert.JSONEq(t, `{"a":"b"}`, buf.String())
}

func TestPrintResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "yaml", sampleEnvelope()))

	want := `data:
  email: ada@a.io
  found: true
metadata:
  poll_attempts: 2
  request_id: r1
`
	assert.Equal(t, want, buf.String())
}

func TestPrintResult_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := printResult(&buf, "xml", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
	assert.Empty(t, buf.String())
}
