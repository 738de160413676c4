// Package browser is the page-driver layer the site drivers are written
// against: a Page interface and its chromedp implementation.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// WaitCondition names a page lifecycle milestone to wait for after a
// navigation is triggered.
type WaitCondition string

const (
	// WaitLoad waits for the document load event.
	WaitLoad WaitCondition = "load"
	// WaitNetworkIdle waits for network quiescence.
	WaitNetworkIdle WaitCondition = "networkIdle"
)

// Page is one browser tab. Element handles are DOM nodes; a nil root means
// the whole document.
type Page interface {
	Navigate(ctx context.Context, url string) error
	QueryAll(ctx context.Context, root *cdp.Node, selector string) ([]*cdp.Node, error)
	FindByLabel(ctx context.Context, label string) ([]*cdp.Node, error)

	Text(ctx context.Context, node *cdp.Node) (string, error)
	Attribute(ctx context.Context, node *cdp.Node, name string) (string, bool, error)

	Click(ctx context.Context, node *cdp.Node) error
	Type(ctx context.Context, node *cdp.Node, text string) error
	ClearAndType(ctx context.Context, node *cdp.Node, text string) error
	PressEnter(ctx context.Context, node *cdp.Node) error

	// WaitForNavigation runs action and returns once the navigation it
	// triggers has reached every condition. No conditions means WaitLoad.
	WaitForNavigation(ctx context.Context, action func(context.Context) error, conditions ...WaitCondition) error
	// WaitForResponse runs action and returns once a response for url has
	// been received.
	WaitForResponse(ctx context.Context, url string, action func(context.Context) error) error
}

// ByClassPrefix selects elements whose class attribute begins with prefix.
// Generated class names carry a build-specific suffix, so only the stable
// prefix can be matched.
func ByClassPrefix(prefix string) string {
	return fmt.Sprintf(`[class^="%s"]`, prefix)
}

// QueryOne returns the first node matching selector under root, or nil.
func QueryOne(ctx context.Context, p Page, root *cdp.Node, selector string) (*cdp.Node, error) {
	nodes, err := p.QueryAll(ctx, root, selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// ClickAndWait clicks the first control labelled label and waits for the
// resulting navigation.
func ClickAndWait(ctx context.Context, p Page, label string, conditions ...WaitCondition) error {
	nodes, err := p.FindByLabel(ctx, label)
	if err != nil {
		return fmt.Errorf("find %q: %w", label, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("find %q: no matching control", label)
	}
	return p.WaitForNavigation(ctx, func(ctx context.Context) error {
		return p.Click(ctx, nodes[0])
	}, conditions...)
}

// TypeInto types text into the first input labelled label.
func TypeInto(ctx context.Context, p Page, label, text string) error {
	nodes, err := p.FindByLabel(ctx, label)
	if err != nil {
		return fmt.Errorf("find %q: %w", label, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("find %q: no matching input", label)
	}
	return p.Type(ctx, nodes[0], text)
}

// labelXPath matches controls by visible text or aria-label and inputs by
// their <label>, aria-label or placeholder.
func labelXPath(label string) string {
	lit := xpathLiteral(label)
	return strings.Join([]string{
		fmt.Sprintf(`//*[self::button or self::a or @role="button"][normalize-space(.)=%s or @aria-label=%s]`, lit, lit),
		fmt.Sprintf(`//input[@type="submit" or @type="button"][@value=%s]`, lit),
		fmt.Sprintf(`//input[@id=//label[normalize-space(.)=%s]/@for]`, lit),
		fmt.Sprintf(`//label[normalize-space(.)=%s]//input`, lit),
		fmt.Sprintf(`//input[@aria-label=%s or @placeholder=%s]`, lit, lit),
	}, " | ")
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}
