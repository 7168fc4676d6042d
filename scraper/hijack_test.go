package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestNewResourcePolicy(t *testing.T) {
	p := NewResourcePolicy([]string{"Image", "Stylesheet", "Font", "Media", "Bogus", "Document"})

	for _, rt := range []proto.NetworkResourceType{
		proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeStylesheet,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeMedia,
	} {
		assert.Equal(t, Block, p.Decide(rt), rt)
	}
	for _, rt := range []proto.NetworkResourceType{
		proto.NetworkResourceTypeDocument,
		proto.NetworkResourceTypeScript,
		proto.NetworkResourceTypeXHR,
		proto.NetworkResourceTypeFetch,
	} {
		assert.Equal(t, Allow, p.Decide(rt), rt)
	}
	assert.True(t, p.blocksAnything())
}

func TestResourcePolicy_Empty(t *testing.T) {
	p := NewResourcePolicy(nil)
	assert.False(t, p.blocksAnything())
	assert.Equal(t, Allow, p.Decide(proto.NetworkResourceTypeImage))
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "block", Block.String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "navigating", StateNavigating.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
