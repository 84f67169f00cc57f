// Package enginetest provides a scripted in-memory engine for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/spa-availability/internal/engine"
)

// ErrStale is returned when a handle from an earlier render is used.
var ErrStale = errors.New("enginetest: stale element handle")

// View is one rendered state of a page: XPath expressions mapped to the
// elements they return.
type View struct {
	Elements map[string][]*Element
	Eval     map[string]any
	Markup   string
}

// NewView returns an empty view.
func NewView() *View {
	return &View{Elements: map[string][]*Element{}, Eval: map[string]any{}}
}

// Set registers the result of an XPath query and returns the view.
func (v *View) Set(xpath string, els ...*Element) *View {
	v.Elements[xpath] = els
	return v
}

// SetEval registers the value of a JavaScript expression.
func (v *View) SetEval(expression string, value any) *View {
	v.Eval[expression] = value
	return v
}

// SetHTML sets the serialized document.
func (v *View) SetHTML(markup string) *View {
	v.Markup = markup
	return v
}

// Clone copies the view so a variant can be derived from it.
func (v *View) Clone() *View {
	out := NewView()
	for k, els := range v.Elements {
		out.Elements[k] = append([]*Element(nil), els...)
	}
	for k, val := range v.Eval {
		out.Eval[k] = val
	}
	out.Markup = v.Markup
	return out
}

// Element is a scripted DOM node.
type Element struct {
	Tag     string
	Content string
	Attrs   map[string]string
	// OnClick runs after the click is recorded, typically to Show a new view.
	OnClick func(f *Fake) error
}

// El is shorthand for an element with text content.
func El(tag, text string) *Element {
	return &Element{Tag: tag, Content: text, Attrs: map[string]string{}}
}

// WithAttr sets an attribute and returns the element.
func (e *Element) WithAttr(name, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[name] = value
	return e
}

// OnClickShow makes a click render v.
func (e *Element) OnClickShow(v *View) *Element {
	e.OnClick = func(f *Fake) error {
		f.Show(v)
		return nil
	}
	return e
}

// Fake implements engine.Engine over scripted views.
type Fake struct {
	mu sync.Mutex

	pages   map[string]*View
	navErrs map[string]error
	current *View
	gen     int

	// IdleResult is returned by WaitForNetworkIdle.
	IdleResult bool
	// QueryErr, when set, fails every query; wrap with engine.Unusable to
	// simulate a crashed browser.
	QueryErr error

	Navigations []string
	Clicks      []string
	Captures    []string
	CloseCalls  int
}

var _ engine.Engine = (*Fake)(nil)

// New returns a Fake showing an empty page.
func New() *Fake {
	return &Fake{
		pages:      map[string]*View{},
		navErrs:    map[string]error{},
		current:    NewView(),
		IdleResult: true,
	}
}

// AddPage registers the view rendered after navigating to url.
func (f *Fake) AddPage(url string, v *View) *Fake {
	f.pages[url] = v
	return f
}

// FailNavigation makes navigating to url return err.
func (f *Fake) FailNavigation(url string, err error) *Fake {
	f.navErrs[url] = err
	return f
}

// Show swaps the rendered view, invalidating earlier handles.
func (f *Fake) Show(v *View) {
	f.current = v
	f.gen++
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if err := f.navErrs[url]; err != nil {
		return err
	}
	if v, ok := f.pages[url]; ok {
		f.Show(v)
	} else {
		f.Show(NewView())
	}
	return nil
}

func (f *Fake) QueryAll(ctx context.Context, xpath string) ([]engine.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	els := f.current.Elements[xpath]
	out := make([]engine.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &handle{fake: f, el: el, gen: f.gen})
	}
	return out, nil
}

func (f *Fake) QueryOne(ctx context.Context, xpath string) (engine.Element, error) {
	els, err := f.QueryAll(ctx, xpath)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (f *Fake) Evaluate(ctx context.Context, expression string, out any) error {
	f.mu.Lock()
	val := f.current.Eval[expression]
	f.mu.Unlock()
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("enginetest: marshal eval result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (f *Fake) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) bool {
	return f.IdleResult
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Markup, nil
}

func (f *Fake) Screenshot(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Captures = append(f.Captures, path)
	return nil
}

func (f *Fake) DumpHTML(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Captures = append(f.Captures, path)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}

type handle struct {
	fake *Fake
	el   *Element
	gen  int
}

func (h *handle) Click(ctx context.Context) error {
	f := h.fake
	f.mu.Lock()
	if h.gen != f.gen {
		f.mu.Unlock()
		return ErrStale
	}
	label := h.el.Content
	if aria, ok := h.el.Attrs["aria-label"]; ok && aria != "" {
		label = aria
	}
	f.Clicks = append(f.Clicks, label)
	// any click re-renders the widget
	f.gen++
	onClick := h.el.OnClick
	f.mu.Unlock()

	if onClick != nil {
		return onClick(f)
	}
	return nil
}

func (h *handle) Text(ctx context.Context) (string, error) {
	if h.gen != h.fake.gen {
		return "", ErrStale
	}
	return h.el.Content, nil
}

func (h *handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	if h.gen != h.fake.gen {
		return "", false, ErrStale
	}
	v, ok := h.el.Attrs[name]
	return v, ok, nil
}

func (h *handle) TagName() string {
	return h.el.Tag
}
