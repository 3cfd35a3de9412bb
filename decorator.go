package awaitable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-awaitable/core"
)

// ErrNilPool is returned by New for FromPool(nil).
var ErrNilPool = errors.New("awaitable: nil pool")

// =============================================================================
// PoolSource: Tagged description of where a Decorator gets its pool
// =============================================================================

// SourceKind is the role of the argument a Decorator is built from.
type SourceKind int

const (
	// SourceDefault builds a pool with the default configuration.
	SourceDefault SourceKind = iota
	// SourcePool binds an existing executor owned by the caller.
	SourcePool
	// SourceConfig builds a pool from an explicit configuration.
	SourceConfig
)

func (k SourceKind) String() string {
	switch k {
	case SourceDefault:
		return "default"
	case SourcePool:
		return "pool"
	case SourceConfig:
		return "config"
	default:
		return "unknown"
	}
}

// PoolSource says which pool a Decorator binds. Build one with DefaultPool,
// FromPool or FromConfig.
type PoolSource struct {
	kind   SourceKind
	pool   core.Executor
	config PoolConfig
}

// DefaultPool selects a new pool with the zero PoolConfig.
func DefaultPool() PoolSource {
	return PoolSource{kind: SourceDefault}
}

// FromPool selects ex. The Decorator never starts or stops it.
func FromPool(ex core.Executor) PoolSource {
	return PoolSource{kind: SourcePool, pool: ex}
}

// FromConfig selects a new pool built from cfg.
func FromConfig(cfg PoolConfig) PoolSource {
	return PoolSource{kind: SourceConfig, config: cfg}
}

// Kind returns the role of this source.
func (s PoolSource) Kind() SourceKind {
	return s.kind
}

// =============================================================================
// Decorator
// =============================================================================

// Decorator binds functions to one pool. Every function wrapped through the
// same Decorator shares that pool's workers.
//
// A Decorator that built its pool owns it and must be released with Close
// or Shutdown. One bound to FromPool leaves the pool to its owner.
type Decorator struct {
	pool  core.Executor
	owned *GoroutineThreadPool
}

// New resolves src into a Decorator. Pool construction errors are returned
// unchanged apart from wrapping.
func New(src PoolSource) (*Decorator, error) {
	switch src.kind {
	case SourcePool:
		if src.pool == nil {
			return nil, ErrNilPool
		}
		return &Decorator{pool: src.pool}, nil
	case SourceConfig, SourceDefault:
		pool, err := NewGoroutineThreadPoolWithConfig(src.config)
		if err != nil {
			return nil, fmt.Errorf("awaitable: build %s pool: %w", src.kind, err)
		}
		pool.Start(context.Background())
		return &Decorator{pool: pool, owned: pool}, nil
	default:
		return nil, fmt.Errorf("awaitable: unknown pool source kind %d", src.kind)
	}
}

// MustNew is New that panics on error, for package-level wrapped functions.
func MustNew(src PoolSource) *Decorator {
	d, err := New(src)
	if err != nil {
		panic(err)
	}
	return d
}

// newDefaultDecorator builds the default pool. It cannot fail: the zero
// config always passes validation.
func newDefaultDecorator() *Decorator {
	return MustNew(DefaultPool())
}

// Pool returns the executor wrapped functions submit to.
func (d *Decorator) Pool() core.Executor {
	return d.pool
}

// Owned reports whether the Decorator built, and therefore releases, its pool.
func (d *Decorator) Owned() bool {
	return d.owned != nil
}

// Close stops an owned pool: queued calls are cancelled and running calls
// are waited for. It is a no-op for a borrowed pool. Close always returns nil;
// the error is there so a Decorator can be used as an io.Closer.
func (d *Decorator) Close() error {
	if d.owned != nil {
		d.owned.Stop()
	}
	return nil
}

// Shutdown drains an owned pool, waiting up to timeout for queued and running
// calls before stopping it. It is a no-op for a borrowed pool.
func (d *Decorator) Shutdown(timeout time.Duration) error {
	if d.owned == nil {
		return nil
	}
	return d.owned.StopGraceful(timeout)
}
