// Azure Boards Assistant server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siddhartha-04/itcprj/internal/config"
	"github.com/siddhartha-04/itcprj/internal/mcptools"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewSource()

	root := &cobra.Command{
		Use:           "boards-assistant",
		Short:         "Chat assistant for Azure DevOps Boards",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	_ = v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	serve.Flags().String("port", "", "HTTP listen port (env PORT)")
	_ = v.BindPFlag("PORT", serve.Flags().Lookup("port"))
	serve.Flags().String("grpc-health-addr", "", "gRPC health listen address, empty disables (env GRPC_HEALTH_ADDR)")
	_ = v.BindPFlag("GRPC_HEALTH_ADDR", serve.Flags().Lookup("grpc-health-addr"))

	mcp := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the read-only Boards tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), v)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "boards-assistant %s\n", mcptools.Version)
		},
	}

	root.AddCommand(serve, mcp, version)
	return root
}

// loadConfig reads .env and the environment, then installs the JSON logger on w.
func loadConfig(v *viper.Viper, w io.Writer) (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
