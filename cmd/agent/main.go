package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/gaadi-fleet/internal/ai"
	"github.com/ukydev/gaadi-fleet/internal/auth"
	"github.com/ukydev/gaadi-fleet/internal/config"
	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/gateway"
	"github.com/ukydev/gaadi-fleet/internal/handlers"
	"github.com/ukydev/gaadi-fleet/internal/middleware"
	"github.com/ukydev/gaadi-fleet/internal/realtime"
	"github.com/ukydev/gaadi-fleet/internal/sim"
	"github.com/ukydev/gaadi-fleet/internal/store"
	"github.com/ukydev/gaadi-fleet/internal/views"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	database := client.Database(cfg.MongoDB)

	vehicles := db.NewMongoTable(database, db.TableVehicles)
	bookings := db.NewMongoTable(database, db.TableBookings)
	emergencies := db.NewMongoTable(database, db.TableEmergencies)
	loads := db.NewMongoTable(database, db.TableLoads)
	users := &db.MongoUserCollection{Collection: database.Collection(db.TableUsers)}

	s := store.New()

	notifier := views.NewAlertNotifier(views.LogSink)
	feed := realtime.NewFeed(realtime.Config{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, s, func(table, id string) {
		log.WithFields(log.Fields{"table": table, "row_id": id}).Info("New row from realtime feed")
	})

	aiClient := ai.NewClient()
	gw := gateway.New(s, vehicles, bookings, emergencies, loads,
		gateway.WithPublisher(feed),
		gateway.WithAssessor(aiClient),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := feed.Connect(); err != nil {
		log.WithError(err).Warn("Realtime feed unavailable, continuing with polling only")
	} else {
		for _, table := range []string{db.TableVehicles, db.TableBookings, db.TableEmergencies, db.TableLoads} {
			if err := feed.Subscribe(table); err != nil {
				log.WithError(err).WithField("table", table).Warn("Subscribe failed")
			}
		}
		defer feed.Close()
	}

	refreshAll(ctx, gw)

	// alert edge detection over vehicle snapshots
	go func() {
		watch := s.Vehicles.Watch()
		for {
			select {
			case <-ctx.Done():
				return
			case <-watch:
				notifier.Observe(views.VehicleAlerts(s))
			}
		}
	}()

	poller := &sim.Poller{
		Interval: cfg.PollInterval,
		Refresh: func(ctx context.Context) error {
			return refreshAll(ctx, gw)
		},
	}
	go poller.Run(ctx)

	if cfg.SimEnabled {
		drift := sim.NewDrift(s, time.Now().UnixNano())
		go drift.Run(ctx, cfg.SimInterval)
	}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	authHandler := handlers.NewAuthHandler(authService, users)
	apiHandler := handlers.NewAPIHandler(gw, s, aiClient)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandler.GetProfile)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	apiHandler.Register(mux)

	authMw := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(300, 60)(authMw.Authenticate(mux))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Error("Mongo disconnect failed")
	}
}

func refreshAll(ctx context.Context, gw *gateway.Gateway) error {
	var firstErr error
	for name, refresh := range map[string]func(context.Context) error{
		"vehicles":    gw.RefreshVehicles,
		"bookings":    gw.RefreshBookings,
		"emergencies": gw.RefreshEmergencies,
		"loads":       gw.RefreshLoads,
	} {
		if err := refresh(ctx); err != nil {
			log.WithError(err).WithField("table", name).Warn("Refresh failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
