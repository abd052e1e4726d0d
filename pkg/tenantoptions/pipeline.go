package tenantoptions

import (
	"context"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
)

// DefaultName is the name of the unnamed options instance.
const DefaultName = ""

// ConfigureFunc mutates an options value while it is being built.
type ConfigureFunc[T any] func(ctx context.Context, opts *T) error

type step[T any] struct {
	name string
	all  bool
	fn   ConfigureFunc[T]
}

// Pipeline builds named options values. Configure steps run first in
// registration order, then post-configure steps in registration order.
// Steps registered for all names interleave with named steps by position.
type Pipeline[T any] struct {
	mu   sync.RWMutex
	pre  []step[T]
	post []step[T]
}

func NewPipeline[T any]() *Pipeline[T] {
	return &Pipeline[T]{}
}

// Configure registers a step for the instance called name.
func (p *Pipeline[T]) Configure(name string, fn ConfigureFunc[T]) *Pipeline[T] {
	return p.add(&p.pre, step[T]{name: name, fn: fn})
}

// ConfigureAll registers a step that runs for every name.
func (p *Pipeline[T]) ConfigureAll(fn ConfigureFunc[T]) *Pipeline[T] {
	return p.add(&p.pre, step[T]{all: true, fn: fn})
}

// PostConfigure registers a step that runs after all configure steps for name.
func (p *Pipeline[T]) PostConfigure(name string, fn ConfigureFunc[T]) *Pipeline[T] {
	return p.add(&p.post, step[T]{name: name, fn: fn})
}

// PostConfigureAll registers a post-configure step that runs for every name.
func (p *Pipeline[T]) PostConfigureAll(fn ConfigureFunc[T]) *Pipeline[T] {
	return p.add(&p.post, step[T]{all: true, fn: fn})
}

func (p *Pipeline[T]) add(list *[]step[T], s step[T]) *Pipeline[T] {
	if s.fn == nil {
		return p
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*list = append(*list, s)
	return p
}

// Build creates a zero T and runs every matching step on it.
func (p *Pipeline[T]) Build(ctx context.Context, name string) (*T, error) {
	p.mu.RLock()
	pre, post := p.pre, p.post
	p.mu.RUnlock()

	opts := new(T)
	for _, phase := range [][]step[T]{pre, post} {
		for _, s := range phase {
			if !s.all && s.name != name {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.fn(ctx, opts); err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrConfigureFailed, name, err)
			}
		}
	}
	return opts, nil
}

// FromEnv returns a step that fills env-tagged fields of T from environment
// variables carrying prefix.
func FromEnv[T any](prefix string) ConfigureFunc[T] {
	return func(_ context.Context, opts *T) error {
		return env.ParseWithOptions(opts, env.Options{Prefix: prefix})
	}
}

// Defaults returns a step that copies v into the options value.
func Defaults[T any](v T) ConfigureFunc[T] {
	return func(_ context.Context, opts *T) error {
		*opts = v
		return nil
	}
}
