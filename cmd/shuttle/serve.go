package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
	httpadapter "github.com/wovenlab/shuttle/pkg/adapters/http"
	"github.com/wovenlab/shuttle/pkg/adapters/memory"
	redisadapter "github.com/wovenlab/shuttle/pkg/adapters/redis"
	"github.com/wovenlab/shuttle/pkg/agent/openai"
	"github.com/wovenlab/shuttle/pkg/observability"
	"github.com/wovenlab/shuttle/pkg/ports"

	"github.com/prometheus/client_golang/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the machine over a JSON API: definition inspection, run
execution and recorded trails, plus Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "8080", "Port to listen on")
	serveCmd.Flags().String("model", "", "Model for the decision agent")
	serveCmd.Flags().String("redis", "", "Redis address for trail recording (empty = in-memory)")
}

func serve(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("machine")
	port, _ := cmd.Flags().GetString("port")
	model, _ := cmd.Flags().GetString("model")
	redisAddr, _ := cmd.Flags().GetString("redis")

	logger := newLogger(cmd)

	var recorder ports.TrailRecorder
	if redisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: redisAddr})
		recorder = redisadapter.NewRecorder(client, "shuttle:", redisadapter.WithTTL(24*time.Hour))
	} else {
		recorder = memory.NewRecorder()
	}

	metrics := observability.NewMetrics("shuttle", prometheus.DefaultRegisterer)

	machine, err := shuttle.New(path,
		shuttle.WithLogger(logger),
		shuttle.WithTrailRecorder(recorder),
		shuttle.WithLifecycleHooks(metrics.Hooks()),
	)
	if err != nil {
		return err
	}
	if err := machine.Validate(context.Background()); err != nil {
		return fmt.Errorf("machine rejected: %w", err)
	}

	decider := openai.New(openai.Config{Model: model})
	server := httpadapter.NewServer(machine, decider,
		httpadapter.WithTrailRecorder(recorder),
		httpadapter.WithLogger(logger))

	srv := &http.Server{Addr: ":" + port, Handler: server.Handler()}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "machine", machine.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		return nil
	}
}
