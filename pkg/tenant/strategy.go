package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/multitenant/pkg/logger"
)

// Strategy extracts a candidate tenant identifier from a request.
// It returns "" when the request carries no identifier it understands.
// Strategies are shared across requests and must be safe for concurrent use.
type Strategy interface {
	Name() string
	Identify(ctx context.Context, req Request) (string, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, req Request) (string, error)

// Func wraps fn as a named Strategy.
func Func(name string, fn StrategyFunc) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type funcStrategy struct {
	name string
	fn   StrategyFunc
}

func (s funcStrategy) Name() string { return s.name }

func (s funcStrategy) Identify(ctx context.Context, req Request) (string, error) {
	if s.fn == nil {
		return "", nil
	}
	return s.fn(ctx, req)
}

// Chain evaluates strategies in registration order. The first strategy that
// yields a non-empty identifier wins; later strategies are not consulted.
// A strategy that errors or panics counts as no match.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds an immutable chain. Nil strategies are dropped.
func NewChain(log *slog.Logger, strategies ...Strategy) *Chain {
	out := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			out = append(out, s)
		}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chain{strategies: out, logger: log}
}

// Len returns the number of strategies in the chain.
func (c *Chain) Len() int { return len(c.strategies) }

// Names returns strategy names in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Identify returns the first identifier produced by the chain along with the
// name of the strategy that produced it. Both are empty when nothing matched.
func (c *Chain) Identify(ctx context.Context, req Request) (identifier, strategy string) {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return "", ""
		}

		id, err := c.try(ctx, s, req)
		if err != nil {
			c.logger.WarnContext(ctx, "tenant strategy failed",
				logger.Strategy(s.Name()),
				logger.Error(err),
			)
			continue
		}
		if id != "" {
			c.logger.DebugContext(ctx, "tenant identifier found",
				logger.Strategy(s.Name()),
				logger.Identifier(id),
			)
			return id, s.Name()
		}
	}
	return "", ""
}

func (c *Chain) try(ctx context.Context, s Strategy, req Request) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrStrategyFailed, s.Name(), r)
		}
	}()
	return s.Identify(ctx, req)
}
