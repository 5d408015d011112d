package embedding_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/service/embedding"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
)

type mockLLMClient struct {
	calls               atomic.Int32
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (m *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, nil
}

func (m *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	m.calls.Add(1)
	if m.generateEmbeddingFn != nil {
		return m.generateEmbeddingFn(ctx, dimension, input)
	}
	vec := make([]float64, dimension)
	for i := range vec {
		vec[i] = 0.1
	}
	return [][]float64{vec}, nil
}

func TestHash(t *testing.T) {
	ctx := context.Background()
	h := embedding.NewHash(0)
	gt.Value(t, h.Dimension()).Equal(model.EmbeddingDimension)

	t.Run("identical text gives bit-identical vectors", func(t *testing.T) {
		a, err := h.Embed(ctx, "buy the dip")
		gt.NoError(t, err).Required()
		b, err := embedding.NewHash(0).Embed(ctx, "buy the dip")
		gt.NoError(t, err).Required()
		gt.Value(t, a).Equal(b)
	})

	t.Run("different text gives different vectors", func(t *testing.T) {
		a := h.Vector("buy the dip")
		b := h.Vector("sell the rip")
		gt.Value(t, a).NotEqual(b)
	})

	t.Run("values follow the digest cycle", func(t *testing.T) {
		// md5("") = d41d8cd98f00b204e9800998ecf8427e
		vec := embedding.NewHash(20).Vector("")
		gt.Array(t, vec).Length(20)
		first, second := 0xd4, 0x1d
		gt.Value(t, vec[0]).Equal(float32(float64(first)/127.5 - 1))
		gt.Value(t, vec[1]).Equal(float32(float64(second)/127.5 - 1))
		gt.Value(t, vec[16]).Equal(vec[0])
		gt.Value(t, vec[19]).Equal(vec[3])
		for _, v := range vec {
			gt.Bool(t, v >= -1 && v <= 1).True()
		}
	})
}

func TestLLM(t *testing.T) {
	ctx := context.Background()

	t.Run("converts to float32", func(t *testing.T) {
		client := &mockLLMClient{}
		e := embedding.NewLLM(client, embedding.WithDimension(4))
		vec, err := e.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Value(t, vec).Equal([]float32{0.1, 0.1, 0.1, 0.1})
		gt.Value(t, e.Dimension()).Equal(4)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return [][]float64{{1, 2}}, nil
			},
		}
		_, err := embedding.NewLLM(client, embedding.WithDimension(4)).Embed(ctx, "hello")
		gt.Error(t, err).Is(model.ErrDimensionMismatch)
	})

	t.Run("empty response is an error", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, nil
			},
		}
		_, err := embedding.NewLLM(client).Embed(ctx, "hello")
		gt.Value(t, err).NotNil()
	})
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the primary when it works", func(t *testing.T) {
		client := &mockLLMClient{}
		f := embedding.NewFallback(embedding.NewLLM(client, embedding.WithDimension(8)))
		vec, err := f.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Value(t, vec[0]).Equal(float32(0.1))
		gt.Value(t, f.Dimension()).Equal(8)
	})

	t.Run("falls back on provider error", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, errors.New("quota exceeded")
			},
		}
		f := embedding.NewFallback(embedding.NewLLM(client, embedding.WithDimension(8)))
		vec, err := f.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Value(t, vec).Equal(embedding.NewHash(8).Vector("hello"))
	})

	t.Run("logs the provider error with its values", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, goerr.New("quota exceeded", goerr.V("retry_after", "42s"))
			},
		}
		buf := &bytes.Buffer{}
		ctx := logging.With(ctx, logging.NewWithFormat("warn", logging.FormatJSON, buf))

		f := embedding.NewFallback(embedding.NewLLM(client, embedding.WithDimension(8)))
		_, err := f.Embed(ctx, "hello")
		gt.NoError(t, err).Required()

		gt.String(t, buf.String()).Contains("quota exceeded")
		gt.String(t, buf.String()).Contains("retry_after")
		gt.String(t, buf.String()).Contains("42s")
	})

	t.Run("falls back when the provider hangs", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				time.Sleep(5 * time.Second)
				return nil, nil
			},
		}
		f := embedding.NewFallback(embedding.NewLLM(client), embedding.WithTimeout(20*time.Millisecond))

		start := time.Now()
		vec, err := f.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Bool(t, time.Since(start) < 2*time.Second).True()
		gt.Value(t, vec).Equal(embedding.NewHash(0).Vector("hello"))
	})

	t.Run("nil primary always hashes", func(t *testing.T) {
		f := embedding.NewFallback(nil)
		vec, err := f.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Array(t, vec).Length(model.EmbeddingDimension)
	})
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("second call is served from cache", func(t *testing.T) {
		client := &mockLLMClient{}
		c, err := embedding.NewCache(embedding.NewLLM(client, embedding.WithDimension(4)), 16)
		gt.NoError(t, err).Required()
		t.Cleanup(c.Close)

		_, err = c.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		c.Wait()
		_, err = c.Embed(ctx, "hello")
		gt.NoError(t, err).Required()

		gt.Value(t, client.calls.Load()).Equal(int32(1))
		gt.Value(t, c.Dimension()).Equal(4)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		var fail atomic.Bool
		fail.Store(true)
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				if fail.Load() {
					return nil, errors.New("down")
				}
				return [][]float64{{1, 2}}, nil
			},
		}
		c, err := embedding.NewCache(embedding.NewLLM(client, embedding.WithDimension(2)), 16)
		gt.NoError(t, err).Required()
		t.Cleanup(c.Close)

		_, err = c.Embed(ctx, "hello")
		gt.Value(t, err).NotNil()

		fail.Store(false)
		vec, err := c.Embed(ctx, "hello")
		gt.NoError(t, err).Required()
		gt.Value(t, vec).Equal([]float32{1, 2})
	})
}
