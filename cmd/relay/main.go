package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"

	"github.com/evswap/bss-relay/internal/broker"
	"github.com/evswap/bss-relay/internal/config"
	"github.com/evswap/bss-relay/internal/hub"
	"github.com/evswap/bss-relay/internal/observability"
	"github.com/evswap/bss-relay/internal/publish"
	"github.com/evswap/bss-relay/internal/record"
	"github.com/evswap/bss-relay/internal/relay"
	"github.com/evswap/bss-relay/internal/session"
	"github.com/evswap/bss-relay/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.Logger.Print(cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupGracefulShutdown(cancel, cfg.Logger)

	store := storage.NewClient(cfg.StorageBaseURL, time.Duration(cfg.StorageTimeoutMs)*time.Millisecond, cfg.Logger)
	subscribers := hub.NewHub(cfg.HubSendBuffer, cfg.Logger)

	var stream publish.EventStream
	var eventWriter *broker.EventWriter
	if cfg.KafkaEnabled() {
		if err := broker.EnsureTopic(ctx, cfg); err != nil {
			cfg.Logger.Fatalf("kafka ensure topic error: %v", err)
		}
		eventWriter = broker.NewEventWriter(cfg)
		stream = eventWriter
	} else {
		cfg.Logger.Println("kafka disabled — swap event stream off")
	}

	correlator := session.NewCorrelator(store, cfg.Logger)
	writer := record.NewWriter(store, cfg.Logger)

	sup := relay.NewSupervisor(cfg, correlator, writer)

	client := relay.BuildClient(cfg, sup)
	bus := relay.PahoBus{Client: client, Timeout: time.Duration(cfg.PublishTimeoutMs) * time.Millisecond}
	sup.SetPublisher(publish.NewPublisher(bus, subscribers, stream, cfg.Logger))

	sup.Start()
	relay.ConnectWithBackoff(ctx, cfg, client, 2*time.Second, 30*time.Second)

	httpServer := serveHTTP(cfg, subscribers, client)

	<-ctx.Done()

	// Stop inbound delivery first, then drain handlers, then tear down the
	// outward-facing surfaces.
	client.Disconnect(250)
	sup.Stop(time.Duration(cfg.ShutdownGraceMs) * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	subscribers.Close()
	if eventWriter != nil {
		eventWriter.Close()
	}

	cfg.Logger.Println("relay stopped")
}

func serveHTTP(cfg *config.Config, subscribers *hub.Hub, client mqtt.Client) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", subscribers)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !client.IsConnectionOpen() {
			http.Error(w, `{"status":"degraded","bus":"disconnected"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{Addr: cfg.HTTPListenAddr, Handler: mux}
	go func() {
		cfg.Logger.Printf("http listening on %s (/ws /metrics /healthz)", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cfg.Logger.Printf("http server error: %v", err)
		}
	}()
	return server
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Printf("received signal: %v — shutting down...", s)
		cancel()
	}()
}
