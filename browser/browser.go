// Package browser manages the Chrome instance and tabs that streamprobe
// observes through. It is the only package that talks to Rod directly;
// everything above it consumes the Driver surface: resolve an element,
// read its text, execute code inside the rendered document.
//
// browser drives, it does not decide. Stream-completion logic, latency
// accounting and similarity scoring live in their own packages and treat
// the page as a black box advancing on its own event loop.
package browser

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrElementNotFound reports that a Locator resolved to nothing, either
// when first resolving it or because the element left the document later.
var ErrElementNotFound = errors.New("browser: element not found")

// By is a locator strategy.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
	ByID    By = "id"
)

// Locator references a single element in the rendered document. It is
// opaque to the observation packages; only browser (and the injected
// observer script) interpret it.
type Locator struct {
	By    By     `json:"by" yaml:"by"`
	Value string `json:"value" yaml:"value"`
}

// CSS returns a CSS-selector locator.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath returns an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// ID returns an element-ID locator.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

func (l Locator) String() string { return string(l.By) + "=" + l.Value }

// Driver is the minimal automation surface the observation packages need.
// *Tab implements it against a live Chrome tab; tests implement it with
// scripted fakes.
//
// Eval executes a JS function expression inside the document's context.
// Arguments and results cross the boundary as serialisable values only,
// never shared memory with the page.
type Driver interface {
	Resolve(ctx context.Context, loc Locator) error
	ReadText(ctx context.Context, loc Locator) (string, error)
	Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error)
}
