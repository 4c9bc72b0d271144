package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"pokerroom/internal/config"
	"pokerroom/internal/gateway"
	"pokerroom/internal/httpapi"
	"pokerroom/internal/metrics"
	"pokerroom/internal/registry"
	"pokerroom/internal/store"
)

func main() {
	log := logrus.WithField("component", "server")
	cfg := config.Load()

	st, storeDriver, err := store.NewFromEnv()
	if err != nil {
		log.WithError(err).Fatal("init store failed")
	}
	defer st.Close()

	var gw *gateway.Gateway
	reg := registry.New(st, func(roomID string, connID uint64, data []byte) {
		gw.Send(roomID, connID, data)
	}, registry.WithPersistInterval(cfg.PersistInterval), registry.WithIdleWindow(cfg.RoomIdleWindow))
	gw = gateway.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recovered, err := reg.Recover(ctx)
	if err != nil {
		log.WithError(err).Error("room recovery failed")
	} else if recovered > 0 {
		log.WithField("count", recovered).Info("recovered rooms from snapshots")
	}
	go reg.Run(ctx)

	api := httpapi.NewHandler(reg, st)

	r := chi.NewRouter()
	r.Use(withCORS(cfg.CORSOrigins))
	api.Routes(r)
	r.Get("/ws/{room_id}", gw.HandleWebSocket)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}

	go func() {
		<-ctx.Done()
		reg.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PersistInterval)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(map[string]any{
		"addr":    cfg.Addr(),
		"store":   storeDriver,
		"db":      cfg.DBPath,
		"idle":    cfg.RoomIdleWindow,
		"persist": cfg.PersistInterval,
	}).Info("starting server")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 1 && origins[0] == "*"
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
