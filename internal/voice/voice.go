// Package voice handles speech in both directions: Whisper
// transcription for incoming voice notes and an HTTP TTS endpoint for
// spoken replies.
package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns audio into French text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Speaker turns text into MP3 bytes.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Whisper implements Transcriber over the OpenAI audio API.
type Whisper struct {
	client openai.Client
}

// NewWhisper creates the transcription client.
func NewWhisper(apiKey string) *Whisper {
	return &Whisper{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Transcribe sends the audio to Whisper, forcing French.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModelWhisper1,
		File:     openai.File(audio, filename, "application/octet-stream"),
		Language: openai.String("fr"),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// TTS implements Speaker against a local speech server that answers
// GET ?text=… with MP3 bytes. An empty URL disables it.
type TTS struct {
	client  *http.Client
	baseURL string
}

// NewTTS creates the speech client.
func NewTTS(baseURL string) *TTS {
	return &TTS{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// Enabled reports whether a TTS endpoint is configured.
func (t *TTS) Enabled() bool {
	return t.baseURL != ""
}

// Speak fetches the MP3 rendition of the text.
func (t *TTS) Speak(ctx context.Context, text string) ([]byte, error) {
	if !t.Enabled() {
		return nil, nil
	}
	u := t.baseURL + "?text=" + url.QueryEscape(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: statut %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
