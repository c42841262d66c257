package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/example/redis-chat-relay/modules/bus"
	"github.com/example/redis-chat-relay/modules/history"
	"github.com/example/redis-chat-relay/modules/ratelimit"
	"github.com/example/redis-chat-relay/modules/relay"
	"github.com/example/redis-chat-relay/modules/wsserver"
)

const shutdownTimeout = 30 * time.Second

// Config is the externally supplied configuration surface.
type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	DefaultRoom     string        `envconfig:"DEFAULT_ROOM" default:"lobby"`
	RateLimitPerMin int           `envconfig:"RATE_LIMIT_PER_MIN" default:"20"`
	HistorySize     int           `envconfig:"HISTORY_SIZE" default:"50"`
	HistoryTTL      time.Duration `envconfig:"HISTORY_TTL" default:"24h"`
}

func main() {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("=== Redis Chat Relay ===")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Redis: %s", cfg.RedisAddr)
	log.Printf("Default room: %s", cfg.DefaultRoom)
	log.Printf("Rate limit: %d messages/minute", cfg.RateLimitPerMin)
	log.Printf("History: %d messages, TTL %s", cfg.HistorySize, cfg.HistoryTTL)

	// Create modules
	busModule := bus.NewModule(cfg.RedisAddr)
	historyModule := history.NewModule(busModule, cfg.HistorySize, cfg.HistoryTTL)
	ratelimitModule := ratelimit.NewModule(busModule, cfg.RateLimitPerMin)
	relayModule := relay.NewModule(busModule)
	wsModule := wsserver.NewModule(fmt.Sprintf(":%d", cfg.Port), cfg.DefaultRoom,
		relayModule, historyModule, ratelimitModule)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Register modules in dependency order: the bus first, then everything
	// built on it, the server last.
	app.Register(busModule)
	app.Register(historyModule)
	app.Register(ratelimitModule)
	app.Register(relayModule)
	app.Register(wsModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Printf("WebSocket endpoint: ws://localhost:%d/ws", cfg.Port)
	log.Printf("Health check:       http://localhost:%d/healthz", cfg.Port)
	log.Printf("Room discovery:     http://localhost:%d/rooms", cfg.Port)
	log.Println("Press Ctrl+C to shutdown gracefully")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
