package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/echokernel"
	"github.com/hupe1980/echokernel/config"
)

var (
	configPath string
	noDotEnv   bool
)

var rootCmd = &cobra.Command{
	Use:   "echokernel",
	Short: "AI agent orchestration engine",
	Long: `EchoKernel runs model-backed agents and composite agents (task decomposer,
router, specialist router, loop, memory and collaborative) declared in a
YAML configuration.

Configuration precedence: ECHOKERNEL_* environment variables, the file
given with --config, built-in defaults. .env.local and .env are loaded
first unless --no-dotenv is set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noDotEnv {
			return nil
		}
		return config.LoadDotEnv()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&noDotEnv, "no-dotenv", false, "Do not load .env.local and .env")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(interactiveCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// open loads the configuration and builds an EchoKernel. The returned
// cleanup closes the kernel and stops the metrics server.
func open(ctx context.Context) (*echokernel.EchoKernel, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	ek, err := echokernel.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	stop := serveMetrics(ek)

	return ek, func() {
		stop()
		if err := ek.Close(); err != nil {
			ek.Logger().Warn("echokernel.close_failed", "error", err.Error())
		}
	}, nil
}

// serveMetrics exposes the Prometheus registry when metrics are enabled.
func serveMetrics(ek *echokernel.EchoKernel) func() {
	g := ek.Gatherer()
	if g == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ek.Config().Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ek.Logger().Error("metrics.serve_failed", "addr", srv.Addr, "error", err.Error())
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
