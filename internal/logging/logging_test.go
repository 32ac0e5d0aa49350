package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvpi/MakeDiffSinger/internal/logging"
)

// ---------------------------------------------------------------------------
// TestNew
// ---------------------------------------------------------------------------

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		format   string
		wantJSON bool
	}{
		{name: "auto off terminal is json", format: "auto", wantJSON: true},
		{name: "empty is auto", format: "", wantJSON: true},
		{name: "json", format: "json", wantJSON: true},
		{name: "text", format: "text", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger, err := logging.New(logging.Options{Format: tt.format, Out: &buf})
			require.NoError(t, err)

			logger.WithField("recording", "rec01").Info("recording done")

			var entry map[string]any
			err = json.Unmarshal(buf.Bytes(), &entry)
			if tt.wantJSON {
				require.NoError(t, err)
				assert.Equal(t, "rec01", entry["recording"])
				assert.Equal(t, "recording done", entry["msg"])
				return
			}
			require.Error(t, err)
			assert.Contains(t, buf.String(), "recording=rec01")
			assert.NotContains(t, buf.String(), "\x1b[", "no colors off terminal")
		})
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warning", Format: "json", Out: &buf})
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := logging.New(logging.Options{Level: "loud"})
	require.Error(t, err)
	_, err = logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	logger := logging.Discard()
	logger.Error("dropped")
	assert.False(t, logging.IsTerminal(&bytes.Buffer{}))
}
