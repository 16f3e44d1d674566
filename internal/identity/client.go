package identity

import (
	"fmt"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

const identityMaxRetryDelay = 2 * time.Second

// NewRetryClient creates the HTTP client used to reach PocketBase.
// PocketBase takes the superuser token per request, so the transport itself
// carries no authentication.
func NewRetryClient(
	timeout time.Duration,
	maxRetries int,
	retryDelay time.Duration,
) (*retry.Client, error) {
	client, err := httpclient.NewAuthClient(
		httpclient.AuthModeNone,
		"",
		httpclient.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity http client: %w", err)
	}

	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(maxRetries),
		retry.WithInitialRetryDelay(retryDelay),
		retry.WithMaxRetryDelay(identityMaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity retry client: %w", err)
	}

	return retryClient, nil
}
