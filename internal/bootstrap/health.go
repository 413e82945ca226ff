package bootstrap

import (
	"context"
	"time"

	"github.com/muhammadchandra19/kwanza-exchange/internal/app/engine"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/grpclib/health"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

// PairHealth mirrors pair halts into the gRPC health service. Each pair is a
// service named BASE/QUOTE; a halted pair reports NOT_SERVING.
type PairHealth struct {
	engine   *engine.Engine
	health   *health.Server
	interval time.Duration
	logger   logger.Interface
}

// NewPairHealth creates a PairHealth polling every interval.
func NewPairHealth(e *engine.Engine, h *health.Server, interval time.Duration, log logger.Interface) *PairHealth {
	if interval <= 0 {
		interval = time.Second
	}
	return &PairHealth{engine: e, health: h, interval: interval, logger: log}
}

// Sync publishes the current status of every pair once and returns the
// halted ones.
func (p *PairHealth) Sync() map[string]string {
	halted := p.engine.HaltedPairs()
	for _, pair := range p.engine.TradingPairs() {
		_, down := halted[pair.String()]
		p.health.SetServing(pair.String(), !down)
	}
	return halted
}

// Run syncs until ctx is done.
func (p *PairHealth) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	reported := 0
	for {
		if halted := p.Sync(); len(halted) != reported {
			reported = len(halted)
			p.logger.WarnContext(ctx, "halted pairs changed", logger.NewField("halted", halted))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
