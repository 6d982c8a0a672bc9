package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/sensorguard/internal/config"
	"github.com/BrandonDHaskell/sensorguard/internal/httpapi"
)

var (
	configPath string
	apiAddr    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, falling back to
// defaults when it does not exist.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newClient builds an API client for the daemon named by --addr or, failing
// that, by the config file.
func newClient() (*httpapi.Client, error) {
	if apiAddr != "" {
		return httpapi.NewClient(apiAddr), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return httpapi.NewClient(cfg.Server.HTTPAddr), nil
}

var rootCmd = &cobra.Command{
	Use:           "sensorguard",
	Short:         "Watch which apps use the camera, microphone and other sensors",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath, config.Default()); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := &config.Manager{}
		return m.Write(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "Daemon API address (defaults to server.http_addr from the config)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	addClientCommands(rootCmd)
}
