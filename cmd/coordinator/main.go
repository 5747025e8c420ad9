package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/sarayu-io/telemetrymon/internal/batcher"
	"github.com/sarayu-io/telemetrymon/internal/config"
	"github.com/sarayu-io/telemetrymon/internal/controlplane"
	"github.com/sarayu-io/telemetrymon/internal/coordinator"
	"github.com/sarayu-io/telemetrymon/internal/directory"
	"github.com/sarayu-io/telemetrymon/internal/mailer"
	"github.com/sarayu-io/telemetrymon/internal/mqtt/adapter/autopaho"
	"github.com/sarayu-io/telemetrymon/internal/store/mongostore"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
	"github.com/sarayu-io/telemetrymon/internal/thresholds"
)

func main() {
	telemetrylog.To(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log := telemetrylog.ForComponent("main")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.With(telemetrylog.Error(err)).Error("failed to load configuration")
		os.Exit(1)
	}

	store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.With(telemetrylog.Error(err)).Error("failed to connect to mongo")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := store.Disconnect(shutdownCtx); err != nil {
			log.With(telemetrylog.Error(err)).Error("failed to disconnect from mongo")
		}
	}()

	dir := directory.New(store)
	registry := thresholds.New(store)
	defer registry.Close()

	sampleBatcher := batcher.New(store)
	defer sampleBatcher.Close()

	gateway := mailer.NewSMTPGateway(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	emailQueue := mailer.New(gateway)
	defer emailQueue.Close()

	evaluator := thresholds.NewEvaluator(registry, dir, alertSink{emailQueue})

	var coord atomic.Pointer[coordinator.Coordinator]

	writer, subscriber, disconnect, err := autopaho.Dial(ctx, autopaho.Options{
		Host:         cfg.MQTT.Host,
		Port:         cfg.MQTT.Port,
		UseTLS:       cfg.MQTT.UseTLS,
		Username:     cfg.MQTT.Username,
		Password:     cfg.MQTT.Password,
		ClientID:     cfg.MQTT.ClientID,
		CleanSession: cfg.MQTT.CleanSession,
		OnConnect: func(ctx context.Context) {
			if c := coord.Load(); c != nil {
				c.OnConnected(ctx)
			}
		},
		OnReconnect: func(ctx context.Context) {
			if c := coord.Load(); c != nil {
				c.OnConnected(ctx)
			}
		},
	})
	if err != nil {
		log.With(telemetrylog.Error(err)).Error("failed to dial mqtt broker")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := disconnect(shutdownCtx); err != nil {
			log.With(telemetrylog.Error(err)).Error("failed to disconnect from mqtt")
		}
	}()

	c := coordinator.New(writer, subscriber, sampleBatcher, evaluator, registry)
	coord.Store(c)

	server := controlplane.New(c)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}
	go func() {
		log.With(slog.String("addr", cfg.HTTPAddr)).Info("starting control plane")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.With(telemetrylog.Error(err)).Error("control plane server failed")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.With(telemetrylog.Error(err)).Error("failed to shut down control plane")
		}
	}()

	log.Info("coordinator started")

	<-ctx.Done()
	log.Info("shutting down")
}

// alertSink adapts the threshold evaluator's alert output onto the email queue's primitive Enqueue signature.
type alertSink struct {
	queue *mailer.Queue
}

func (s alertSink) Enqueue(alert thresholds.Alert) {
	s.queue.Enqueue(alert.Recipients, alert.Subject, alert.Body)
}
