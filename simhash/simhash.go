// Package simhash computes 64-bit SimHash fingerprints used to tell whether
// two renderings of a page share the same layout.
package simhash

import (
	"hash"
	"hash/fnv"
	"math/bits"
)

// Builder accumulates weighted features into a fingerprint. The zero value
// is not usable; call NewBuilder.
type Builder struct {
	h     hash.Hash64
	votes [64]int
	n     int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{h: fnv.New64a()}
}

// Add hashes feature with FNV-64a and adds weight to every bit that is set in
// the hash, subtracting it from every bit that is clear. Non-positive
// weights are ignored.
func (b *Builder) Add(feature string, weight int) {
	if weight <= 0 {
		return
	}
	b.h.Reset()
	_, _ = b.h.Write([]byte(feature))
	sum := b.h.Sum64()

	for i := range b.votes {
		if sum>>i&1 == 1 {
			b.votes[i] += weight
		} else {
			b.votes[i] -= weight
		}
	}
	b.n++
}

// Fingerprint sets each bit whose vote total is positive. A Builder with no
// features yields 0.
func (b *Builder) Fingerprint() uint64 {
	if b.n == 0 {
		return 0
	}
	var fp uint64
	for i, v := range b.votes {
		if v > 0 {
			fp |= 1 << i
		}
	}
	return fp
}

// Sum fingerprints a bag of features of equal weight. Repeated features
// count once per occurrence.
func Sum(features []string) uint64 {
	b := NewBuilder()
	for _, f := range features {
		b.Add(f, 1)
	}
	return b.Fingerprint()
}

// Distance is the number of differing bits.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports Distance(a, b) <= maxBits.
func Similar(a, b uint64, maxBits int) bool {
	return Distance(a, b) <= maxBits
}
