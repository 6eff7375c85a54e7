package llm

import (
	"context"
	"log/slog"
)

// FallbackClient wraps a primary Client with a secondary provider. If the
// primary fails, it retries with the secondary before giving up.
type FallbackClient struct {
	primary   Client
	secondary Client
	logger    *slog.Logger
}

// NewFallbackClient creates a fallback-enabled client. secondary may be nil.
func NewFallbackClient(primary, secondary Client, logger *slog.Logger) *FallbackClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClient{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Complete sends the request to the primary provider, retrying with the
// secondary on failure.
func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.secondary != nil,
	)
	if c.secondary == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := c.secondary.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}
	return fallbackResp, nil
}
