package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ProductionStdoutStaysJSONWithSink(t *testing.T) {
	var stdout, sink bytes.Buffer
	log, err := build("production", &stdout, &sink)
	require.NoError(t, err)

	log.Info("payment initialized")
	_ = log.Sync()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stdout.String())), &line))
	assert.Equal(t, "payment initialized", line["msg"])
	assert.Contains(t, sink.String(), `"msg":"payment initialized"`)
}

func TestBuild_DevelopmentStdoutIsConsole(t *testing.T) {
	var stdout, sink bytes.Buffer
	log, err := build("development", &stdout, &sink)
	require.NoError(t, err)

	log.Info("payment initialized")
	_ = log.Sync()

	assert.False(t, json.Valid(bytes.TrimSpace(stdout.Bytes())))
	assert.Contains(t, stdout.String(), "payment initialized")
}
