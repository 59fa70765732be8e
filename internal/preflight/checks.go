package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sys/unix"

	"tubescribe/internal/config"
	"tubescribe/internal/services/whisperx"
)

// CheckOpenAI verifies that the transcription API is reachable and the key
// is accepted. It uses a 30-second timeout and a single attempt.
func CheckOpenAI(ctx context.Context, apiKey, baseURL string) Result {
	const name = "OpenAI API"

	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	client := openai.NewClientWithConfig(clientConfig)

	if _, err := client.ListModels(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckModelWeights reports whether the default model's weights are already
// cached. Missing weights are downloaded on first use, so the check passes
// with a note rather than failing.
func CheckModelWeights(cfg *config.Config) Result {
	name := fmt.Sprintf("Model weights (%s)", cfg.Recognition.DefaultModel)
	svc := whisperx.NewService(whisperx.Config{ModelDir: cfg.Recognition.ModelCacheDir}, nil)
	if svc.Available(cfg.Recognition.DefaultModel) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("cached in %s", cfg.Recognition.ModelCacheDir)}
	}
	return Result{Name: name, Passed: true, Detail: "not cached yet (downloaded on first transcription)"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeAPIError produces a human-readable summary for API check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			return "auth failed (invalid api key)"
		}
		return fmt.Sprintf("API error (%d)", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 401 || reqErr.HTTPStatusCode == 403 {
			return "auth failed (invalid api key)"
		}
		return fmt.Sprintf("request failed (%d)", reqErr.HTTPStatusCode)
	}
	return err.Error()
}
