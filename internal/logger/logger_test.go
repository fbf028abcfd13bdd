package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(bytes.NewBuffer(nil))
		SetVerbosity(VerbosityNormal)
		SetFormat("text")
	})
	return buf
}

func TestVerbosity(t *testing.T) {
	buf := capture(t)

	SetVerbosity(VerbosityNormal)
	Info("hidden info")
	Warn("visible warning")
	assert.NotContains(t, buf.String(), "hidden info")
	assert.Contains(t, buf.String(), "visible warning")

	buf.Reset()
	SetVerbosity(VerbosityVerbose)
	Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")

	buf.Reset()
	SetVerbosity(VerbositySilent)
	Warn("quiet warning")
	Error("loud error")
	assert.NotContains(t, buf.String(), "quiet warning")
	assert.Contains(t, buf.String(), "loud error")
}

func TestComponentFieldsInJSON(t *testing.T) {
	buf := capture(t)
	SetFormat("json")
	SetVerbosity(VerbosityVerbose)

	Todo().WithField("title", "Buy milk").WithError(errors.New("boom")).Info("created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "todo", line["component"])
	assert.Equal(t, "Buy milk", line["title"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "created", line["msg"])
}

func TestWithFields(t *testing.T) {
	buf := capture(t)
	SetVerbosity(VerbosityDebug)

	WithFields(map[string]interface{}{"table": "todos", "rows": 2}).Infof("deleted %d rows", 2)
	out := buf.String()
	assert.Contains(t, out, "table=todos")
	assert.Contains(t, out, "rows=2")
	assert.Contains(t, out, "deleted 2 rows")
}
