package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.WithField("plugin", "org.example").Info("verified")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "verified", entry["msg"])
	assert.Equal(t, "org.example", entry["plugin"])

	buf.Reset()
	logger, err = New(Options{Format: "raw", Output: &buf})
	require.NoError(t, err)
	logger.WithField("ignored", true).Warn("plain line")
	assert.Equal(t, "plain line\n", buf.String())

	buf.Reset()
	logger, err = New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.Info("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, OrDiscard(nil))
	l := logrus.New()
	assert.Same(t, l, OrDiscard(l))
}
