package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceAliases maps plural config spellings onto the singular CDP
// resource type names, so "images" and "image" configure the same block.
var resourceAliases = map[string]string{
	"images":      "image",
	"fonts":       "font",
	"scripts":     "script",
	"stylesheets": "stylesheet",
	"documents":   "document",
}

// blockList holds the canonical resource types a tab refuses to load.
// A nil list blocks nothing.
type blockList map[string]struct{}

func newBlockList(names []string) blockList {
	if len(names) == 0 {
		return nil
	}
	b := make(blockList, len(names))
	for _, n := range names {
		b[canonicalResource(n)] = struct{}{}
	}
	return b
}

func canonicalResource(name string) string {
	n := strings.ToLower(name)
	if c, ok := resourceAliases[n]; ok {
		return c
	}
	return n
}

func (b blockList) blocks(resType string) bool {
	_, ok := b[canonicalResource(resType)]
	return ok
}

// install hijacks the tab's requests and fails every one whose resource
// type is on the list. The router goroutine runs until the page closes.
func (b blockList) install(page *rod.Page) {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if b.blocks(string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}
