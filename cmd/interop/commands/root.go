// Package commands implements the interop CLI's subcommand tree.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "interop",
	Short: "Interop test harness for the framewire RPC runtime",
	Long: `interop exercises framewire's signaling, WebRTC peering, and RPC
transport end to end: pairing a device, serving the example services over a
DataChannel, and inspecting a registry's routes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.framewire-interop.yaml)")
	rootCmd.PersistentFlags().String("server", "wss://localhost:8787/ws/app", "signaling server WebSocket URL")
	rootCmd.PersistentFlags().String("credentials", defaultCredentialsPath(), "path to the saved API key / app ID file")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "default per-request timeout")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("credentials", rootCmd.PersistentFlags().Lookup("credentials"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(setupCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".framewire-interop")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FRAMEWIRE_INTEROP")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".framewire-interop-credentials"
	}
	return filepath.Join(home, ".framewire-interop-credentials")
}
