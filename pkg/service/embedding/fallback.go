package embedding

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

// DefaultTimeout bounds one call to the primary provider
const DefaultTimeout = 10 * time.Second

// Fallback tries the primary embedder under a timeout and answers with the
// Hash embedder on any failure. Embed never returns an error.
type Fallback struct {
	primary  interfaces.Embedder
	fallback *Hash
	timeout  time.Duration
}

var _ interfaces.Embedder = &Fallback{}

type FallbackOption func(*Fallback)

func WithTimeout(d time.Duration) FallbackOption {
	return func(f *Fallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFallback builds the embedder used by the brain. primary may be nil, in
// which case every call uses the hash embedding.
func NewFallback(primary interfaces.Embedder, opts ...FallbackOption) *Fallback {
	dimension := model.EmbeddingDimension
	if primary != nil {
		dimension = primary.Dimension()
	}

	f := &Fallback{
		primary:  primary,
		fallback: NewHash(dimension),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.primary == nil {
		return f.fallback.Vector(text), nil
	}

	vec, err := f.embedPrimary(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("embedding provider unavailable, using hash embedding",
			"error", err,
			"timeout", f.timeout,
		)
		return f.fallback.Vector(text), nil
	}
	return vec, nil
}

func (f *Fallback) embedPrimary(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := f.primary.Embed(ctx, text)
		ch <- result{vec: vec, err: err}
	}()

	// a provider that ignores its context must not hold the caller
	select {
	case <-ctx.Done():
		return nil, goerr.Wrap(model.ErrProviderUnavailable, "embedding timed out", goerr.V("cause", ctx.Err()))
	case r := <-ch:
		if r.err != nil {
			return nil, goerr.Wrap(r.err, model.ErrProviderUnavailable.Error())
		}
		if len(r.vec) != f.fallback.Dimension() {
			return nil, goerr.Wrap(model.ErrProviderUnavailable, "unexpected embedding length",
				goerr.V("expected", f.fallback.Dimension()), goerr.V("actual", len(r.vec)))
		}
		return r.vec, nil
	}
}

func (f *Fallback) Dimension() int {
	return f.fallback.Dimension()
}
