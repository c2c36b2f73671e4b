package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	fmt.Println("Starting roomchat server...")

	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	config, err := server.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	app, err := server.New(*config, log)
	if err != nil {
		log.Error("Cannot build server", "error", err)
		os.Exit(1)
	}

	httpServer := server.CreateServer(config.Port, app.Routes())

	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return server.ShutdownServer(ctx, httpServer, log)
			},
			"realtime": func(ctx context.Context) error {
				return app.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}
