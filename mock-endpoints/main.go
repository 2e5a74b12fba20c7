// Command mock-endpoints stands in for n8n during local runs. It accepts the
// automation webhook and keeps the last payloads for inspection.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const keepPayloads = 50

type received struct {
	Path      string          `json:"path"`
	Kind      string          `json:"kind"`
	SignedOK  *bool           `json:"signed_ok,omitempty"`
	Body      json.RawMessage `json:"body"`
	Timestamp time.Time       `json:"timestamp"`
}

type recorder struct {
	mu       sync.Mutex
	payloads []received
	count    atomic.Int64
	secret   string
	mode     string
	logger   *slog.Logger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	port := "5678"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	rec := &recorder{
		secret: os.Getenv("MOCK_SECRET"),
		mode:   os.Getenv("MOCK_MODE"), // "", "slow" or "fail"
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook/1/*", rec.webhook)
	r.Get("/received", rec.list)
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"total_requests": rec.count.Load()})
	})

	logger.Info("mock n8n starting", "port", port, "mode", rec.mode)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (rec *recorder) webhook(w http.ResponseWriter, r *http.Request) {
	n := rec.count.Add(1)

	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	entry := received{
		Path:      r.URL.EscapedPath(),
		Kind:      r.Header.Get("X-Automation-Kind"),
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	if rec.secret != "" {
		ok := validSignature(body, r.Header.Get("X-Webhook-Signature"), rec.secret)
		entry.SignedOK = &ok
	}
	rec.keep(entry)

	status := http.StatusOK
	switch rec.mode {
	case "slow":
		time.Sleep(3 * time.Second)
	case "fail":
		status = http.StatusInternalServerError
	}

	rec.logger.Info("webhook received",
		"n", n,
		"path", entry.Path,
		"kind", entry.Kind,
		"status", status,
		"bytes", len(body),
	)

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"message": "Workflow was started"})
}

func (rec *recorder) keep(entry received) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.payloads = append(rec.payloads, entry)
	if len(rec.payloads) > keepPayloads {
		rec.payloads = rec.payloads[len(rec.payloads)-keepPayloads:]
	}
}

func (rec *recorder) list(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	out := make([]received, len(rec.payloads))
	copy(out, rec.payloads)
	rec.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func validSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
