package summarizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Transcript is the structured transcript shared by downstream stages.
type Transcript struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	AudioPath      string `json:"audio_path,omitempty"`
	Placeholder    bool   `json:"placeholder,omitempty"`
}

// Transcriber converts an audio file into text. Failures are soft: the
// transcribe stage substitutes a labeled placeholder instead of failing
// the run.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// NormalizeTranscript trims each line and drops blank lines.
func NormalizeTranscript(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// placeholderTranscript is the clearly labeled fallback for audio that
// could not be transcribed.
func placeholderTranscript(audioPath string) string {
	return fmt.Sprintf("Transcription placeholder for %s. Connect a speech-to-text engine to replace this text.", filepath.Base(audioPath))
}

// pseudoTranscribe handles audio without a real transcriber: plain-text
// files are read directly, anything else gets the placeholder.
func pseudoTranscribe(audioPath string) (string, bool) {
	if strings.EqualFold(filepath.Ext(audioPath), ".txt") {
		data, err := os.ReadFile(audioPath)
		if err == nil {
			return string(data), false
		}
	}
	return placeholderTranscript(audioPath), true
}
