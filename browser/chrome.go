package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromePage implements Page on top of a chromedp tab context.
type ChromePage struct {
	ctx        context.Context
	slowMo     time.Duration
	navTimeout time.Duration
}

var _ Page = (*ChromePage)(nil)

// NewChromePage wraps an already started chromedp tab context.
func NewChromePage(tabCtx context.Context, slowMo, navTimeout time.Duration) *ChromePage {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &ChromePage{ctx: tabCtx, slowMo: slowMo, navTimeout: navTimeout}
}

// scope derives a context from the tab that is also cancelled with ctx.
func (p *ChromePage) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	c, cancel := p.scope(ctx)
	defer cancel()

	if p.slowMo > 0 {
		actions = append([]chromedp.Action{chromedp.Sleep(p.slowMo)}, actions...)
	}
	return chromedp.Run(c, actions...)
}

func ids(node *cdp.Node) []cdp.NodeID {
	return []cdp.NodeID{node.NodeID}
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	c, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	if err := p.run(c, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) QueryAll(ctx context.Context, root *cdp.Node, selector string) ([]*cdp.Node, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if root != nil {
		opts = append(opts, chromedp.FromNode(root))
	}

	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return nodes, nil
}

func (p *ChromePage) FindByLabel(ctx context.Context, label string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(labelXPath(label), &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("find label %q: %w", label, err)
	}
	return nodes, nil
}

func (p *ChromePage) Text(ctx context.Context, node *cdp.Node) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.TextContent(ids(node), &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("text of %s: %w", node.LocalName, err)
	}
	return text, nil
}

func (p *ChromePage) Attribute(ctx context.Context, node *cdp.Node, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, chromedp.AttributeValue(ids(node), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, fmt.Errorf("attribute %s of %s: %w", name, node.LocalName, err)
	}
	return value, ok, nil
}

func (p *ChromePage) Click(ctx context.Context, node *cdp.Node) error {
	return p.run(ctx, chromedp.Click(ids(node), chromedp.ByNodeID))
}

func (p *ChromePage) Type(ctx context.Context, node *cdp.Node, text string) error {
	return p.run(ctx, chromedp.SendKeys(ids(node), text, chromedp.ByNodeID))
}

func (p *ChromePage) ClearAndType(ctx context.Context, node *cdp.Node, text string) error {
	return p.run(ctx,
		chromedp.Click(ids(node), chromedp.ByNodeID),
		chromedp.SetValue(ids(node), "", chromedp.ByNodeID),
		chromedp.SendKeys(ids(node), text, chromedp.ByNodeID),
	)
}

func (p *ChromePage) PressEnter(ctx context.Context, node *cdp.Node) error {
	return p.run(ctx, chromedp.SendKeys(ids(node), kb.Enter, chromedp.ByNodeID))
}

// WaitForNavigation only counts lifecycle events of the main frame that
// follow a new document commit ("init"). A further commit, such as a
// redirect, restarts the wait.
func (p *ChromePage) WaitForNavigation(ctx context.Context, action func(context.Context) error, conditions ...WaitCondition) error {
	if len(conditions) == 0 {
		conditions = []WaitCondition{WaitLoad}
	}

	c, cancel := p.scope(ctx)
	defer cancel()
	c, cancelTimeout := context.WithTimeout(c, p.navTimeout)
	defer cancelTimeout()

	t := chromedp.FromContext(p.ctx)
	if t == nil || t.Target == nil {
		return errors.New("wait for navigation: page is not attached")
	}
	mainFrame := cdp.FrameID(t.Target.TargetID)

	var (
		mu      sync.Mutex
		started bool
		pending map[WaitCondition]bool
		done    = make(chan struct{})
	)
	chromedp.ListenTarget(c, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || e.FrameID != mainFrame {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if pending != nil && len(pending) == 0 {
			return
		}
		if e.Name == "init" {
			started = true
			pending = conditionSet(conditions)
			return
		}
		if !started {
			return
		}
		delete(pending, WaitCondition(e.Name))
		if len(pending) == 0 {
			close(done)
		}
	})

	if err := action(c); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-c.Done():
		return fmt.Errorf("wait for navigation %v: %w", conditions, c.Err())
	}
}

func conditionSet(conditions []WaitCondition) map[WaitCondition]bool {
	set := make(map[WaitCondition]bool, len(conditions))
	for _, c := range conditions {
		set[c] = true
	}
	return set
}

// WaitForResponse fails when the matched response carries an HTTP error status.
func (p *ChromePage) WaitForResponse(ctx context.Context, url string, action func(context.Context) error) error {
	c, cancel := p.scope(ctx)
	defer cancel()
	c, cancelTimeout := context.WithTimeout(c, p.navTimeout)
	defer cancelTimeout()

	var (
		once   sync.Once
		status int64
		got    = make(chan struct{})
	)
	chromedp.ListenTarget(c, func(ev interface{}) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Response == nil || e.Response.URL != url {
			return
		}
		once.Do(func() {
			status = e.Response.Status
			close(got)
		})
	})

	if err := action(c); err != nil {
		return err
	}

	select {
	case <-got:
		if status >= 400 {
			return fmt.Errorf("response %s: HTTP %d", url, status)
		}
		return nil
	case <-c.Done():
		return fmt.Errorf("wait for response %s: %w", url, c.Err())
	}
}
