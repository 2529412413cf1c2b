package summarizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTranscript(t *testing.T) {
	got := NormalizeTranscript("Hello world.\n\n  Thanks for calling.  \n")
	assert.Equal(t, "Hello world.\nThanks for calling.", got)
}

func TestNormalizeTranscriptEmpty(t *testing.T) {
	assert.Equal(t, "", NormalizeTranscript("\n  \n\t\n"))
}

func TestPseudoTranscribeReadsTextFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "call.txt")
	require.NoError(t, os.WriteFile(path, []byte("Customer asked about billing."), 0o644))

	text, placeholder := pseudoTranscribe(path)
	assert.False(t, placeholder)
	assert.Equal(t, "Customer asked about billing.", text)
}

func TestPseudoTranscribePlaceholderForAudio(t *testing.T) {
	text, placeholder := pseudoTranscribe("/recordings/call-0042.wav")
	assert.True(t, placeholder)
	assert.Contains(t, text, "Transcription placeholder for call-0042.wav")
}

func TestPseudoTranscribePlaceholderForMissingFile(t *testing.T) {
	text, placeholder := pseudoTranscribe(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, placeholder)
	assert.Contains(t, text, "Transcription placeholder")
}

func TestPayloadValidate(t *testing.T) {
	assert.ErrorIs(t, Payload{AgentName: "Dana"}.Validate(), ErrInvalidInput)
	assert.NoError(t, Payload{Transcript: "hello"}.Validate())
	assert.NoError(t, Payload{AudioPath: "/a.wav"}.Validate())
}
