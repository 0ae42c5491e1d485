package monitors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mindmap-dev/mindmap/internal/types"
)

const defaultHTTPTimeout = 5 * time.Second

// CheckHTTP sends one request to config.URL. With ExpectedStatus unset any
// status below 500 counts as reachable.
func CheckHTTP(ctx context.Context, config *types.HttpConfig) error {
	timeout := time.Duration(config.Timeout) * time.Second

	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	client := &http.Client{
		Timeout: timeout,
	}

	method := config.Method

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, config.URL, nil)

	if err != nil {
		return err
	}

	for key, value := range config.Headers {
		req.Header.Add(key, value)
	}

	resp, err := client.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if config.ExpectedStatus == 0 {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status code: %s", resp.Status)
		}
		return nil
	}

	if resp.StatusCode != config.ExpectedStatus {
		return fmt.Errorf("unexpected status code: %s", resp.Status)
	}

	return nil
}
