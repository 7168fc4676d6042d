package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Document":   proto.NetworkResourceTypeDocument,
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
	"XHR":        proto.NetworkResourceTypeXHR,
	"Fetch":      proto.NetworkResourceTypeFetch,
}

// Verdict is what the page does with an intercepted request.
type Verdict int

const (
	Allow Verdict = iota
	Block
)

func (v Verdict) String() string {
	if v == Block {
		return "block"
	}
	return "allow"
}

// ResourcePolicy decides per resource type whether a sub-request is
// fetched. Types not listed are allowed.
type ResourcePolicy map[proto.NetworkResourceType]Verdict

// NewResourcePolicy blocks every configured type name. Unknown names are
// logged and ignored.
func NewResourcePolicy(blockedTypes []string) ResourcePolicy {
	p := make(ResourcePolicy, len(blockedTypes))
	for _, name := range blockedTypes {
		rt, ok := configToProto[name]
		if !ok {
			slog.Warn("unknown resource type in block list, ignored", "type", name)
			continue
		}
		if rt == proto.NetworkResourceTypeDocument {
			slog.Warn("documents cannot be blocked, ignored", "type", name)
			continue
		}
		p[rt] = Block
	}
	return p
}

// Decide returns the verdict for a request of type rt.
func (p ResourcePolicy) Decide(rt proto.NetworkResourceType) Verdict {
	return p[rt]
}

// blocksAnything reports whether installing the policy changes anything.
func (p ResourcePolicy) blocksAnything() bool {
	for _, v := range p {
		if v == Block {
			return true
		}
	}
	return false
}

// install mounts the policy as a request interceptor on page. It must run
// before navigation. It returns the running router so the caller can stop
// it, or nil when the policy allows everything.
func (p ResourcePolicy) install(page *rod.Page) *rod.HijackRouter {
	if !p.blocksAnything() {
		return nil
	}

	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per request.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if p.Decide(ctx.Request.Type()) == Block {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks until router.Stop().
	go router.Run()

	return router
}
