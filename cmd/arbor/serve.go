package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	httpAdapter "github.com/aretw0/arbor/internal/adapters/http"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow HTTP server",
	Long:  `Loads the workflow document and exposes it over HTTP: trigger runs, inspect run records, visualize the graph, and scrape Prometheus metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		logLevel, _ := cmd.Flags().GetString("log-level")
		lenient, _ := cmd.Flags().GetBool("lenient")
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")

		metrics := observability.NewMetrics()

		app, err := cli.NewApp(cli.Options{
			LogLevel:  logLevel,
			RedisAddr: redisAddr,
			Lenient:   lenient,
		}, arbor.WithObserver(metrics))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		wf, err := app.LoadFile(file)
		if err != nil {
			fmt.Printf("Error loading workflow: %v\n", err)
			os.Exit(1)
		}

		handler := httpAdapter.NewHandler(wf, app.Store(),
			httpAdapter.WithMetricsHandler(metrics.Handler()),
			httpAdapter.WithLogger(app.Logger()))

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Arbor Server on %s\n", srv.Addr)
			fmt.Printf("Serving workflow: %s\n", file)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Arbor Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Persist run records to Redis at this address")
}
