// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cocowh/iohook/core/config"
	"github.com/cocowh/iohook/core/control"
	"github.com/cocowh/iohook/pkg/logger"
)

var (
	configPath string
	verbose    bool
	logLevel   string
	watch      bool
	dumpFormat string
)

var rootCmd = &cobra.Command{
	Use:   "iohook",
	Short: "iohook runs TCP/UDP echo servers with a process-wide I/O hook",
	Long: `iohook registers a single process-wide observer that is told about every
completed socket read and write, and exposes the totals as Prometheus metrics.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo servers and the metrics endpoint",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of iohook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "iohook version %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (trace, debug, info, warn, error, fatal)")

	serveCmd.Flags().BoolVarP(&watch, "watch", "w", true, "reload the hook when the config file changes")
	configCmd.Flags().StringVarP(&dumpFormat, "format", "f", "yaml", "output format (yaml, toml)")
}

func runServer(cmd *cobra.Command, args []string) error {
	builder, err := control.NewControlPlaneBuilderWithLogConfig(configPath, logLevel, verbose)
	if err != nil {
		return fmt.Errorf("failed to create control plane builder: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting iohook server...")
	if configPath != "" {
		logger.Infof("Using configuration file: %s", configPath)
	}

	controlPlane, err := builder.WithWatch(watch).Build()
	if err != nil {
		return fmt.Errorf("failed to build control plane: %w", err)
	}
	if err := controlPlane.Start(); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}

	logger.Infof("iohook server started, tcp=%v udp=%v metrics=%v",
		controlPlane.TCPAddr(), controlPlane.UDPAddr(), controlPlane.MetricsAddr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down iohook server...")
	if err := controlPlane.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
		return err
	}
	logger.Info("iohook server stopped gracefully")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	m, err := config.NewManager(configPath)
	if err != nil {
		return err
	}

	var out []byte
	switch dumpFormat {
	case "yaml", "yml":
		out, err = m.Dump()
	case "toml":
		out, err = m.DumpTOML()
	default:
		return fmt.Errorf("unknown format %q", dumpFormat)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
