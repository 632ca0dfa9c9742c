package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type message struct {
	MessageID int64  `json:"message_id"`
	ChatID    string `json:"chat_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	status := flag.Int("status", http.StatusOK, "status code returned by sendMessage (use 4xx/5xx to exercise dispatch failures)")
	flag.Parse()

	logger := log.New(log.Writer(), "telegram-mock ", log.LstdFlags|log.Lmicroseconds)
	var nextID int64

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/bot{token}/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "description": err.Error()})
			return
		}
		chatID := r.PostForm.Get("chat_id")
		text := r.PostForm.Get("text")
		if chatID == "" || text == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "description": "Bad Request: chat_id and text are required"})
			return
		}
		logger.Printf("token=%s chat=%s parse_mode=%s\n%s", chi.URLParam(r, "token"), chatID, r.PostForm.Get("parse_mode"), text)

		if *status < 200 || *status >= 300 {
			writeJSON(w, *status, map[string]any{"ok": false, "error_code": *status, "description": http.StatusText(*status)})
			return
		}
		writeJSON(w, *status, map[string]any{
			"ok": true,
			"result": message{
				MessageID: atomic.AddInt64(&nextID, 1),
				ChatID:    chatID,
				Date:      time.Now().Unix(),
				Text:      text,
			},
		})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
