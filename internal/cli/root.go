// Package cli implements the edgeid command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/project-kessel/edgeid/internal/config"
)

// ConfigEnvVar names the config file when --config is not set
const ConfigEnvVar = config.EnvPrefix + "CONFIG"

// Version is injected at build time
var Version = "dev"

// configFile is the --config persistent flag
var configFile string

// NewRootCmd creates the edgeid root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edgeid",
		Short: "Resolve caller identity from authentication proxy signals",
		Long: `edgeid turns the identity signals an authentication proxy attaches to a
request (principal headers, bearer tokens, the proxy's auth document) into a
normalized identity with roles.

It serves the identity to Envoy over ext_authz and to HTTP clients.

Use "edgeid [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (yaml, json or toml); defaults to $"+ConfigEnvVar)

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInspectCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// configPath returns the config file from --config, then the environment.
// Empty means defaults, environment and flags only.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv(ConfigEnvVar)
}

// loadConfig loads the configuration with cmd's flags applied
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoaderWithFlags(configPath(), cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Get()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}
