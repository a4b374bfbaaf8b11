package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "checkout", "info")

	Step(log, "create_order", time.Now(), errors.New("db down"), "customer_id", int64(4))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "checkout", line["service"])
	assert.Equal(t, "create_order", line["step"])
	assert.Equal(t, "failed", line["status"])
	assert.Equal(t, "db down", line["error"])
	assert.EqualValues(t, 4, line["customer_id"])
}

func TestStepSuccessOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	Step(NewWithWriter(&buf, "checkout", "info"), "snapshot_cart", time.Now(), nil)
	assert.Empty(t, buf.String())

	Step(NewWithWriter(&buf, "checkout", "debug"), "snapshot_cart", time.Now(), nil)
	assert.Contains(t, buf.String(), `"status":"ok"`)
}
