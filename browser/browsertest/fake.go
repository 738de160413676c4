// Package browsertest provides an in-memory browser.Page backed by an HTML
// document, recording every interaction for assertions.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"golang.org/x/net/html"

	"citybike-sync/browser"
)

// Action kinds recorded by FakePage.
const (
	KindNavigate   = "navigate"
	KindClick      = "click"
	KindType       = "type"
	KindClearType  = "clear-type"
	KindEnter      = "enter"
	KindNavigation = "navigation"
	KindResponse   = "response"
)

// Action is one recorded page interaction.
type Action struct {
	Kind  string
	Node  *cdp.Node
	Value string
}

// FakePage implements browser.Page over a parsed HTML document.
type FakePage struct {
	mu      sync.Mutex
	doc     *goquery.Document
	nextID  cdp.NodeID
	byHTML  map[*html.Node]*cdp.Node
	byID    map[cdp.NodeID]*html.Node
	values  map[cdp.NodeID]string
	actions []Action
	fail    map[string]error
}

var _ browser.Page = (*FakePage)(nil)

// New parses markup into a FakePage.
func New(markup string) (*FakePage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &FakePage{
		doc:    doc,
		byHTML: make(map[*html.Node]*cdp.Node),
		byID:   make(map[cdp.NodeID]*html.Node),
		values: make(map[cdp.NodeID]string),
		fail:   make(map[string]error),
	}, nil
}

// FailOn makes every action of the given kind return err.
func (f *FakePage) FailOn(kind string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = err
}

// Actions returns a copy of the recorded actions in order.
func (f *FakePage) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.actions...)
}

// ActionsOn returns the recorded actions that targeted node.
func (f *FakePage) ActionsOn(node *cdp.Node) []Action {
	var out []Action
	for _, a := range f.Actions() {
		if a.Node != nil && node != nil && a.Node.NodeID == node.NodeID {
			out = append(out, a)
		}
	}
	return out
}

// Kinds returns the kinds of the recorded actions in order.
func (f *FakePage) Kinds() []string {
	var out []string
	for _, a := range f.Actions() {
		out = append(out, a.Kind)
	}
	return out
}

// Value returns what was typed into node.
func (f *FakePage) Value(node *cdp.Node) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[node.NodeID]
}

// Select returns the handles of nodes matching a CSS selector in the document.
func (f *FakePage) Select(selector string) []*cdp.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles(f.doc.Find(selector))
}

func (f *FakePage) record(kind string, node *cdp.Node, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[kind]; err != nil {
		return err
	}
	f.actions = append(f.actions, Action{Kind: kind, Node: node, Value: value})
	return nil
}

// handles must be called with f.mu held.
func (f *FakePage) handles(sel *goquery.Selection) []*cdp.Node {
	out := make([]*cdp.Node, 0, sel.Length())
	for _, n := range sel.Nodes {
		h, ok := f.byHTML[n]
		if !ok {
			f.nextID++
			h = &cdp.Node{
				NodeID:    f.nextID,
				NodeName:  strings.ToUpper(n.Data),
				LocalName: n.Data,
			}
			for _, a := range n.Attr {
				h.Attributes = append(h.Attributes, a.Key, a.Val)
			}
			f.byHTML[n] = h
			f.byID[h.NodeID] = n
		}
		out = append(out, h)
	}
	return out
}

// selection must be called with f.mu held.
func (f *FakePage) selection(node *cdp.Node) (*goquery.Selection, error) {
	if node == nil {
		return f.doc.Selection, nil
	}
	n, ok := f.byID[node.NodeID]
	if !ok {
		return nil, fmt.Errorf("unknown node %d", node.NodeID)
	}
	return goquery.NewDocumentFromNode(n).Selection, nil
}

func (f *FakePage) Navigate(_ context.Context, url string) error {
	return f.record(KindNavigate, nil, url)
}

func (f *FakePage) QueryAll(_ context.Context, root *cdp.Node, selector string) ([]*cdp.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sel, err := f.selection(root)
	if err != nil {
		return nil, err
	}
	return f.handles(sel.Find(selector)), nil
}

func (f *FakePage) FindByLabel(_ context.Context, label string) ([]*cdp.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := f.doc.Find("button, a, [role=button], input").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if aria, _ := s.Attr("aria-label"); aria == label {
			return true
		}
		if goquery.NodeName(s) != "input" {
			return strings.TrimSpace(s.Text()) == label
		}
		if ph, _ := s.Attr("placeholder"); ph == label {
			return true
		}
		if typ, _ := s.Attr("type"); typ == "submit" || typ == "button" {
			v, _ := s.Attr("value")
			return v == label
		}
		if id, ok := s.Attr("id"); ok {
			found := false
			f.doc.Find("label").EachWithBreak(func(_ int, l *goquery.Selection) bool {
				if forID, _ := l.Attr("for"); forID == id && strings.TrimSpace(l.Text()) == label {
					found = true
				}
				return !found
			})
			return found
		}
		return false
	})
	return f.handles(matched), nil
}

func (f *FakePage) Text(_ context.Context, node *cdp.Node) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sel, err := f.selection(node)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (f *FakePage) Attribute(_ context.Context, node *cdp.Node, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sel, err := f.selection(node)
	if err != nil {
		return "", false, err
	}
	v, ok := sel.Attr(name)
	return v, ok, nil
}

func (f *FakePage) Click(_ context.Context, node *cdp.Node) error {
	return f.record(KindClick, node, "")
}

func (f *FakePage) Type(_ context.Context, node *cdp.Node, text string) error {
	if err := f.record(KindType, node, text); err != nil {
		return err
	}
	f.mu.Lock()
	f.values[node.NodeID] += text
	f.mu.Unlock()
	return nil
}

func (f *FakePage) ClearAndType(_ context.Context, node *cdp.Node, text string) error {
	if err := f.record(KindClearType, node, text); err != nil {
		return err
	}
	f.mu.Lock()
	f.values[node.NodeID] = text
	f.mu.Unlock()
	return nil
}

func (f *FakePage) PressEnter(_ context.Context, node *cdp.Node) error {
	return f.record(KindEnter, node, "")
}

func (f *FakePage) WaitForNavigation(ctx context.Context, action func(context.Context) error, conditions ...browser.WaitCondition) error {
	if err := action(ctx); err != nil {
		return err
	}
	names := make([]string, 0, len(conditions))
	for _, c := range conditions {
		names = append(names, string(c))
	}
	return f.record(KindNavigation, nil, strings.Join(names, ","))
}

func (f *FakePage) WaitForResponse(ctx context.Context, url string, action func(context.Context) error) error {
	if err := action(ctx); err != nil {
		return err
	}
	return f.record(KindResponse, nil, url)
}
