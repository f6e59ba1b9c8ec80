package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// genericWeight scales words that appear in almost every job title or
// sentence, so that "Sales Manager" does not look like "SEO Manager".
const genericWeight float32 = 0.25

var genericWords = toSet(
	"a", "an", "and", "the", "of", "for", "to", "in", "on", "at", "with", "by",
	"or", "like", "our", "your", "we", "you", "is", "are", "be", "as", "from",
	"senior", "sr", "junior", "jr", "lead", "head", "manager", "management",
	"specialist", "engineer", "engineering", "strategist", "director",
	"associate", "coordinator", "staff", "principal", "vp", "intern", "analyst",
	"executive", "officer", "assistant", "remote", "hybrid", "full", "time",
	"part", "contract", "team", "role", "job",
)

// acronyms expand to their phrases before hashing.
var acronyms = map[string][]string{
	"geo":  {"generative", "engine", "optimization"},
	"aeo":  {"answer", "engine", "optimization"},
	"sge":  {"search", "generative", "experience"},
	"llmo": {"llm", "optimization"},
}

// HashEncoder is a local, dependency-free encoder based on signed feature
// hashing of word unigrams, word bigrams and character trigrams. Texts that
// share vocabulary land close together, which is enough for seed-centroid
// scoring without a model server. Its scores run lower than those of sentence
// embeddings; see config for the thresholds calibrated to it.
type HashEncoder struct {
	dim int
}

// NewHashEncoder returns an encoder producing dim-dimensional unit vectors.
func NewHashEncoder(dim int) *HashEncoder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEncoder{dim: dim}
}

// Encode never fails; the error is part of the Encoder contract.
func (e *HashEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEncoder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := expandAcronyms(tokenize(text))

	for i, w := range words {
		weight := wordWeight(w)
		e.add(v, "w:"+w, weight)
		if i > 0 {
			e.add(v, "b:"+words[i-1]+" "+w, 0.7*bigramWeight(words[i-1], w))
		}
		padded := "^" + w + "$"
		runes := []rune(padded)
		for j := 0; j+3 <= len(runes); j++ {
			e.add(v, "c:"+string(runes[j:j+3]), 0.3*weight)
		}
	}
	return Normalize(v)
}

func (e *HashEncoder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func wordWeight(w string) float32 {
	if _, ok := genericWords[w]; ok {
		return genericWeight
	}
	return 1
}

func bigramWeight(prev, w string) float32 {
	a, b := wordWeight(prev) < 1, wordWeight(w) < 1
	switch {
	case a && b:
		return genericWeight
	case a || b:
		return 0.5
	}
	return 1
}

func expandAcronyms(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if exp, ok := acronyms[w]; ok {
			out = append(out, exp...)
			continue
		}
		out = append(out, w)
	}
	return out
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
