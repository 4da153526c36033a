package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type completionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

const (
	anomalyReply = `<answer>
The flight shows two short roll excursions and a period with only 4 satellites visible,
which lines up with the position drift in GLOBAL_POSITION_INT.
</answer>
<suggested_questions>
1. When did the satellite count drop?
2. Was the battery voltage stable during the roll excursions?
</suggested_questions>`

	metricReply = `<answer>
Based on the pre-computed metrics, the maximum altitude was reached mid-flight and the
ground speed stayed within normal limits.
</answer>
<suggested_questions>
1. What was the maximum climb rate?
2. How long did the flight last?
</suggested_questions>`

	generalReply = `<answer>
I can help with questions about this flight log, such as altitude, battery, GPS or anomalies.
</answer>
<suggested_questions>
- What was the highest altitude reached?
- Were there any anomalies?
</suggested_questions>`
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	delay := flag.Duration("delay", 0, "artificial latency per completion")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, `{"error":{"message":"missing api key"}}`, http.StatusUnauthorized)
			return
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":{"message":"invalid body"}}`, http.StatusBadRequest)
			return
		}
		if *delay > 0 {
			time.Sleep(*delay)
		}
		writeJSON(w, completionResponse{
			ID:      "chatcmpl-mock",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []choice{{Message: chatMessage{Role: "assistant", Content: replyFor(req)}, FinishReason: "stop"}},
		})
	})

	logger := log.New(log.Writer(), "llm-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func replyFor(req completionRequest) string {
	if len(req.Messages) == 0 {
		return generalReply
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(prompt, "Primitive anomaly flags"):
		return anomalyReply
	case strings.Contains(prompt, "Pre-computed Metrics"):
		return metricReply
	default:
		return generalReply
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
