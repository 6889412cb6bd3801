// Package local provides a deterministic, offline embedding provider used
// when memory.embeddings_provider is "local": no network call, same text
// always yields the same vector, suitable for tests and air-gapped runs.
//
// No corpus library offers a deterministic, dependency-free embedder; the
// OpenAI provider is used whenever real semantic embeddings are needed.
package local

import (
	"context"
	"crypto/sha256"
	"math"
	"strings"

	"github.com/jadhavgaurav/agentcore/internal/memory/embeddings"
)

// Provider implements embeddings.Provider with feature hashing over
// whitespace-delimited tokens.
type Provider struct {
	dim int
}

var _ embeddings.Provider = (*Provider)(nil)

// Config configures the local provider.
type Config struct {
	Dimension int
}

// New creates a local embedding provider with the given dimension.
func New(cfg Config) (*Provider, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 256
	}
	return &Provider{dim: dim}, nil
}

func (p *Provider) Name() string      { return "local" }
func (p *Provider) Dimension() int    { return p.dim }
func (p *Provider) MaxBatchSize() int { return 1024 }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.hash(text), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.hash(t)
	}
	return out, nil
}

// hash maps text onto the unit sphere in p.dim dimensions by hashing each
// token into a bucket and accumulating a signed weight, feature-hashing
// style. Identical input always yields an identical, L2-normalized vector.
func (p *Provider) hash(text string) []float32 {
	vec := make([]float32, p.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(tok))
		bucket := int(sum[0])<<8 | int(sum[1])
		bucket %= p.dim
		sign := float32(1)
		if sum[2]&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
