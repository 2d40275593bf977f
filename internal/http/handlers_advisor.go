package http

import (
	"io"
	"net/http"
	"strings"

	"zenith/internal/log"
)

const maxQuestionLen = 500

type questionRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) readQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	q := sanitizeInput(req.Question)
	switch {
	case q == "":
		writeError(w, r, http.StatusUnprocessableEntity, "question is required")
		return "", false
	case len(q) > maxQuestionLen:
		writeError(w, r, http.StatusUnprocessableEntity, "question is too long")
		return "", false
	}
	return q, true
}

// handleFacts answers from the snapshot alone, without a model.
func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	q, ok := s.readQuestion(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Resolver.Resolve(r.Context(), q)
	if err != nil {
		writeInternal(w, r, log.OpSnapshot, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	q, ok := s.readQuestion(w, r)
	if !ok {
		return
	}

	if !isStreaming(r) {
		answer := s.deps.Advisor.Advice(r.Context(), q, nil)
		writeJSON(w, r, http.StatusOK, answerResponse{Answer: answer})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	var streamed strings.Builder
	onToken := func(tok string) {
		streamed.WriteString(tok)
		if _, err := io.WriteString(w, tok); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	answer := s.deps.Advisor.Advice(r.Context(), q, onToken)

	// The advisor may replace what the model produced; the replacement
	// follows the streamed text so the client ends on the final answer.
	if strings.TrimSpace(answer) != strings.TrimSpace(streamed.String()) && r.Context().Err() == nil {
		if streamed.Len() > 0 {
			io.WriteString(w, "\n\n")
		}
		io.WriteString(w, answer)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"tip": s.deps.Advisor.Tip(r.Context())})
}

func isStreaming(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("stream")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
