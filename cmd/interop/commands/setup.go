package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/framewire/framewire/signaling"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Pair this device with the signaling server and save credentials",
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	baseURL := signalingBaseURL(viper.GetString("server"))
	credPath := viper.GetString("credentials")

	logger.Info("starting device pairing", zap.String("server", baseURL))

	result, err := signaling.Pair(context.Background(), signaling.PairingConfig{
		ServerURL: baseURL,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("pairing failed: %w", err)
	}

	if err := signaling.SaveCredentials(credPath, result); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	logger.Info("pairing complete", zap.String("appId", result.AppID), zap.String("credentials", credPath))
	return nil
}

// signalingBaseURL derives the HTTP(S) base URL the pairing endpoints live
// at from the WebSocket URL used for the signaling session itself.
func signalingBaseURL(wsURL string) string {
	baseURL := strings.Replace(wsURL, "wss://", "https://", 1)
	baseURL = strings.Replace(baseURL, "ws://", "http://", 1)
	if idx := strings.Index(baseURL, "/ws"); idx != -1 {
		baseURL = baseURL[:idx]
	}
	return baseURL
}
