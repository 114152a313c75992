package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type limitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit 以每分钟 rpm 次的速率限制调用；rpm<=0 时原样返回
func WithRateLimit(client Client, rpm int) Client {
	if rpm <= 0 {
		return client
	}
	return &limitedClient{
		next:    client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (c *limitedClient) Complete(ctx context.Context, apiKey string, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.next.Complete(ctx, apiKey, req)
}
