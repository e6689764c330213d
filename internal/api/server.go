// Package api exposes the local HTTP front door used by the voice
// satellites: a single /ask endpoint plus a health probe.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/enola/internal/logging"
	"github.com/normanking/enola/internal/voice"
)

// Brain is the conversation entry point the server fronts.
type Brain interface {
	Process(ctx context.Context, convID, text string) string
}

// Server is the HTTP API.
type Server struct {
	brain   Brain
	speaker voice.Speaker
	logger  *logging.Logger
	srv     *http.Server
}

// New creates the server. speaker may be nil to disable audio replies.
func New(host string, port int, brain Brain, speaker voice.Speaker, logger *logging.Logger) *Server {
	s := &Server{brain: brain, speaker: speaker, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

type askRequest struct {
	Texte string `json:"texte"`
}

type askResponse struct {
	Reponse string `json:"reponse"`
	Audio   string `json:"audio"`
}

// handleAsk runs one conversation turn and attaches the spoken
// rendition when TTS is available. Every caller of /ask shares one
// conversation, like a single household voice line.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	s.logger.Info("ask received", "request_id", requestID, "length", len(req.Texte))

	reply := s.brain.Process(r.Context(), "api", req.Texte)

	audio := ""
	if s.speaker != nil {
		if data, err := s.speaker.Speak(r.Context(), reply); err != nil {
			s.logger.Error("tts failed", "request_id", requestID, "error", err)
		} else if len(data) > 0 {
			audio = base64.StdEncoding.EncodeToString(data)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(askResponse{Reponse: reply, Audio: audio}); err != nil {
		s.logger.Error("response encode failed", "request_id", requestID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
