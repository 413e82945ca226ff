package postgresql

import (
	"context"
	"time"
)

// HealthCheck represents database health information
type HealthCheck struct {
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	AcquiredConn int32         `json:"acquired_connections"`
	IdleConns    int32         `json:"idle_connections"`
	Error        string        `json:"error,omitempty"`
}

// CheckHealth pings the pool and reports its connection stats.
func (c *Client) CheckHealth(ctx context.Context) HealthCheck {
	start := time.Now()
	stats := c.pool.Stat()
	health := HealthCheck{
		AcquiredConn: stats.AcquiredConns(),
		IdleConns:    stats.IdleConns(),
	}

	var one int
	if err := c.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		health.Error = err.Error()
	} else {
		health.Healthy = true
	}
	health.ResponseTime = time.Since(start)
	return health
}
