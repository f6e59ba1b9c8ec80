// Package embed turns text into unit vectors and compares them against
// precomputed centroids.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Encoder maps texts to unit-length vectors. Implementations must be
// deterministic for a fixed input.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Service computes similarities between texts and centroids.
type Service struct {
	enc Encoder
}

// NewService wraps an encoder.
func NewService(enc Encoder) *Service {
	return &Service{enc: enc}
}

// Encode returns the unit vector for one text.
func (s *Service) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.enc.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("encoder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// Centroid encodes seeds and returns their normalized mean.
func (s *Service) Centroid(ctx context.Context, seeds []string) ([]float32, error) {
	if len(seeds) == 0 {
		return nil, errors.New("centroid needs at least one seed")
	}
	vecs, err := s.enc.Encode(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("encode seeds: %w", err)
	}
	return Normalize(Mean(vecs)), nil
}

// Similarity encodes text and returns its dot product with centroid along
// with the encoded vector.
func (s *Service) Similarity(ctx context.Context, text string, centroid []float32) (float64, []float32, error) {
	vec, err := s.Encode(ctx, text)
	if err != nil {
		return 0, nil, err
	}
	return Dot(vec, centroid), vec, nil
}

// Similarities encodes text once and scores it against every centroid, in order.
func (s *Service) Similarities(ctx context.Context, text string, centroids ...[]float32) ([]float64, error) {
	vec, err := s.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(centroids))
	for i, c := range centroids {
		out[i] = Dot(vec, c)
	}
	return out, nil
}

// Dot returns the dot product of a and b over their common length.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Mean returns the element-wise mean of vecs. Vectors shorter than the
// first are treated as zero-padded.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := 0; i < len(out) && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
