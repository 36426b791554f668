package shared

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPClientFactory hands out pooled HTTP clients keyed by timeout
type HTTPClientFactory struct {
	defaultTimeout time.Duration
	mutex          sync.RWMutex
	clients        map[string]*http.Client
}

// NewHTTPClientFactory creates a new HTTP client factory
func NewHTTPClientFactory(defaultTimeout time.Duration) *HTTPClientFactory {
	return &HTTPClientFactory{
		defaultTimeout: defaultTimeout,
		clients:        make(map[string]*http.Client),
	}
}

// Client returns a shared client for the given timeout, creating it on first use
func (f *HTTPClientFactory) Client(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	clientKey := fmt.Sprintf("timeout_%d", timeout.Milliseconds())

	f.mutex.RLock()
	if client, exists := f.clients[clientKey]; exists {
		f.mutex.RUnlock()
		return client
	}
	f.mutex.RUnlock()

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if client, exists := f.clients[clientKey]; exists {
		return client
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	f.clients[clientKey] = client

	logrus.WithFields(logrus.Fields{
		"component":  "HTTPClientFactory",
		"timeout":    timeout,
		"client_key": clientKey,
	}).Debug("Created new HTTP client")

	return client
}

// CloseIdleConnections releases pooled connections of every cached client
func (f *HTTPClientFactory) CloseIdleConnections() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for key, client := range f.clients {
		client.CloseIdleConnections()
		delete(f.clients, key)
	}
}

// RetryBackoff is the delay before retry attempt n (n >= 1)
var RetryBackoff = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// ExecuteHTTPRequestWithRetry sends request, retrying network errors, 429s and 5xx with
// exponential backoff. Request bodies are rewound through GetBody between attempts.
func ExecuteHTTPRequestWithRetry(ctx context.Context, client *http.Client, request *http.Request, maxRetryAttempts int) (*http.Response, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "HTTPClientFactory",
		"method":    request.Method,
		"url":       request.URL.Redacted(),
	})

	var lastExecutionError error

	for attemptNumber := 0; attemptNumber <= maxRetryAttempts; attemptNumber++ {
		if attemptNumber > 0 {
			backoff := RetryBackoff(attemptNumber)
			logger.WithFields(logrus.Fields{
				"attempt":          attemptNumber + 1,
				"backoff_duration": backoff,
			}).Debug("Retrying HTTP request after backoff")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled before attempt %d: %w", attemptNumber+1, ctx.Err())
			case <-time.After(backoff):
			}

			if request.GetBody != nil {
				body, err := request.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				request.Body = body
			}
		}

		httpResponse, err := client.Do(request.WithContext(ctx))
		if err == nil && httpResponse.StatusCode >= 200 && httpResponse.StatusCode < 300 {
			return httpResponse, nil
		}

		if err != nil {
			lastExecutionError = fmt.Errorf("attempt %d failed with network error: %w", attemptNumber+1, err)
			logger.WithError(lastExecutionError).Debug("HTTP request failed with network error")
			continue
		}

		httpResponse.Body.Close()
		lastExecutionError = fmt.Errorf("attempt %d failed with HTTP %d: %s", attemptNumber+1, httpResponse.StatusCode, http.StatusText(httpResponse.StatusCode))
		if httpResponse.StatusCode < 500 && httpResponse.StatusCode != http.StatusTooManyRequests {
			break
		}
	}

	logger.WithError(lastExecutionError).Warn("HTTP request failed after retries")
	return nil, fmt.Errorf("HTTP request failed: %w", lastExecutionError)
}
