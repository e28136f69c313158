package signaling

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PairingConfig configures the device-pairing flow performed by Pair.
type PairingConfig struct {
	ServerURL    string
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

// PairingResult is the credential pair issued once pairing completes.
type PairingResult struct {
	APIKey string
	AppID  string
}

type pairingInitResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type pairingPollResponse struct {
	Status string `json:"status"`
	APIKey string `json:"apiKey,omitempty"`
	AppID  string `json:"appId,omitempty"`
}

// Pair performs the browser-based device pairing flow: it asks the
// signaling server to mint a one-time pairing token, opens a browser so the
// user can approve the device, and polls until the server reports the
// pairing complete (or the context/timeout elapses).
func Pair(ctx context.Context, config PairingConfig) (*PairingResult, error) {
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	initResp, err := pairingInit(ctx, config.ServerURL)
	if err != nil {
		return nil, err
	}

	logger.Info("opening browser for device pairing", zap.String("url", initResp.URL))
	if err := openBrowser(initResp.URL); err != nil {
		logger.Warn("failed to open browser automatically", zap.Error(err), zap.String("url", initResp.URL))
	}

	return pollPairing(ctx, config, initResp.Token, logger)
}

func pairingInit(ctx context.Context, serverURL string) (*pairingInitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/setup/init", nil)
	if err != nil {
		return nil, fmt.Errorf("build init request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pairing init request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pairing init failed with status %d: %s", resp.StatusCode, string(body))
	}

	var initResp pairingInitResponse
	if err := jsonCodec.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}
	if initResp.Token == "" || initResp.URL == "" {
		return nil, fmt.Errorf("init response missing token or url")
	}
	return &initResp, nil
}

func pollPairing(ctx context.Context, config PairingConfig, token string, logger *zap.Logger) (*PairingResult, error) {
	pollURL, err := url.Parse(config.ServerURL + "/setup/poll")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := pollURL.Query()
	q.Set("token", token)
	pollURL.RawQuery = q.Encode()

	timeoutCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("pairing cancelled")
			}
			return nil, fmt.Errorf("pairing timed out after %v", config.Timeout)

		case <-ticker.C:
			result, pending, err := pollOnce(timeoutCtx, pollURL.String())
			if err != nil {
				return nil, err
			}
			if pending {
				continue
			}
			logger.Info("pairing complete", zap.String("appId", result.AppID))
			return result, nil
		}
	}
}

func pollOnce(ctx context.Context, pollURL string) (*PairingResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("poll failed with status %d: %s", resp.StatusCode, string(body))
	}

	var poll pairingPollResponse
	if err := jsonCodec.NewDecoder(resp.Body).Decode(&poll); err != nil {
		return nil, false, fmt.Errorf("decode poll response: %w", err)
	}

	switch poll.Status {
	case "complete":
		if poll.APIKey == "" || poll.AppID == "" {
			return nil, false, fmt.Errorf("poll response missing apiKey or appId")
		}
		return &PairingResult{APIKey: poll.APIKey, AppID: poll.AppID}, false, nil
	case "pending":
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("unknown pairing status: %s", poll.Status)
	}
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// SaveCredentials writes the pairing result to path as a simple KEY=value
// file, restricted to owner read/write.
func SaveCredentials(path string, result *PairingResult) error {
	data := fmt.Sprintf("API_KEY=%s\nAPP_ID=%s\n", result.APIKey, result.AppID)
	return os.WriteFile(path, []byte(data), 0o600)
}

// LoadCredentials reads a credentials file written by SaveCredentials.
func LoadCredentials(path string) (*PairingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := &PairingResult{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "API_KEY":
			result.APIKey = value
		case "APP_ID":
			result.AppID = value
		}
	}

	if result.APIKey == "" {
		return nil, fmt.Errorf("API_KEY not found in %s", path)
	}
	return result, nil
}
