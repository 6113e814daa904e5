package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP research API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *agentEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/research", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Topic string `json:"topic"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Topic == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
			return
		}

		summary, err := env.Orchestrator.Run(req.Context(), body.Topic)
		if err != nil {
			zap.L().Error("research request failed",
				zap.String("topic", body.Topic),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "research failed"})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	r.Post("/feedback", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Topic    string `json:"topic"`
			Accurate bool   `json:"accurate"`
			Notes    string `json:"notes"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Topic == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
			return
		}

		if !env.Orchestrator.SubmitFeedback(req.Context(), body.Topic, body.Accurate, body.Notes) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending assessment for topic"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	})

	r.Get("/sources", func(w http.ResponseWriter, req *http.Request) {
		queryType := req.URL.Query().Get("query_type")
		if queryType == "" {
			queryType = "general"
		}

		domains := env.Memory.BestSources(queryType, 0)
		out := make([]model.SourceReliability, 0, len(domains))
		for _, domain := range domains {
			if src, ok := env.Memory.Reliability(domain); ok {
				out = append(out, src)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		stats := env.Memory.Stats(
			req.URL.Query().Get("domain"),
			req.URL.Query().Get("query_type"),
		)
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}
