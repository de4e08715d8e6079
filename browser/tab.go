package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with probe-specific setup: stealth, resource
// blocking, navigation with timeout. It implements Driver.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a stealth tab, navigates to the URL, and waits for the
// page load event.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if bl := newBlockList(mgr.cfg.ResourceBlocking); bl != nil {
		bl.install(page)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL}, nil
}

// Resolve checks that the locator currently matches an element.
func (t *Tab) Resolve(ctx context.Context, loc Locator) error {
	_, err := t.element(ctx, loc)
	return err
}

// ReadText returns the visible text of the located element.
func (t *Tab) ReadText(ctx context.Context, loc Locator) (string, error) {
	el, err := t.element(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("browser: read text of %s: %w", loc, err)
	}
	return text, nil
}

// Eval executes a JS function expression in the page and returns the
// JSON-encoded result. Arguments must be JSON-serialisable.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	data, err := json.Marshal(res.Value.Val())
	if err != nil {
		return nil, fmt.Errorf("browser: encode eval result: %w", err)
	}
	return data, nil
}

// Click clicks the located element once with the left button.
func (t *Tab) Click(ctx context.Context, loc Locator) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", loc, err)
	}
	return nil
}

// Type focuses the located element and types text into it.
func (t *Tab) Type(ctx context.Context, loc Locator, text string) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: type into %s: %w", loc, err)
	}
	return nil
}

// PressEnter focuses the located element and sends the Enter key.
func (t *Tab) PressEnter(ctx context.Context, loc Locator) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("browser: press enter on %s: %w", loc, err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// element resolves a locator to a Rod element without Rod's implicit
// wait-until-present retry: a missing element is an immediate
// ErrElementNotFound, which the quiescence loop depends on.
func (t *Tab) element(ctx context.Context, loc Locator) (*rod.Element, error) {
	page := t.Page.Context(ctx)

	var (
		has bool
		el  *rod.Element
		err error
	)
	switch loc.By {
	case ByXPath:
		has, el, err = page.HasX(loc.Value)
	case ByID:
		has, el, err = page.Has("#" + loc.Value)
	default:
		has, el, err = page.Has(loc.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: resolve %s: %w", loc, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return el, nil
}
