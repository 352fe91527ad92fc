// Package domtest is an in-memory dom.Page backed by goquery documents. Tests
// render console pages as HTML, swap frame documents to simulate navigation,
// and hook clicks to play the remote side.
package domtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"orgsetup/internal/dom"
)

// ErrStale is returned by elements whose document has been replaced.
var ErrStale = errors.New("domtest: stale element")

// Document is one mutable HTML document: the top level of a Page or the
// content of one of its frames.
type Document struct {
	page *Page

	mu         sync.Mutex
	doc        *goquery.Document
	generation int
	detached   bool
}

func newDocument(p *Page, html string) *Document {
	d := &Document{page: p}
	d.SetHTML(html)
	return d
}

// SetHTML replaces the document content. Elements obtained before the call go
// stale.
func (d *Document) SetHTML(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("domtest: parse html: %v", err))
	}
	d.mu.Lock()
	d.doc = doc
	d.generation++
	d.mu.Unlock()
}

// QueryAll implements dom.Surface.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	doc, gen, detached := d.doc, d.generation, d.detached
	d.mu.Unlock()
	if detached {
		return nil, ErrStale
	}

	var out []dom.Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{doc: d, gen: gen, sel: s})
	})
	return out, nil
}

// ValueOf returns the value attribute of the first element whose id contains
// fragment.
func (d *Document) ValueOf(fragment string) string {
	s := d.byID(fragment)
	if s == nil {
		return ""
	}
	v, _ := s.Attr("value")
	return v
}

// CheckedOf reports whether the first element whose id contains fragment
// carries the checked attribute.
func (d *Document) CheckedOf(fragment string) bool {
	s := d.byID(fragment)
	if s == nil {
		return false
	}
	_, ok := s.Attr("checked")
	return ok
}

// SelectedOf returns the value of the selected option of the first select
// whose id contains fragment.
func (d *Document) SelectedOf(fragment string) string {
	s := d.byID(fragment)
	if s == nil {
		return ""
	}
	return selectValue(s)
}

func (d *Document) byID(fragment string) *goquery.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *goquery.Selection
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		if strings.Contains(id, fragment) {
			found = s
			return false
		}
		return true
	})
	return found
}

// FrameSpec describes one child frame of a Page.
type FrameSpec struct {
	Name  string
	ID    string
	Title string
	Src   string
	HTML  string
}

type frame struct {
	spec FrameSpec
	doc  *Document
}

// ClickFunc plays the remote side of a click. It runs after the element's own
// effect (checkbox toggle) and may mutate any document of the page.
type ClickFunc func(ctx context.Context, p *Page, el *Element) error

// Page implements dom.Page.
type Page struct {
	Top *Document

	// OnClick is invoked for every click.
	OnClick ClickFunc

	mu          sync.Mutex
	frames      []*frame
	navigations int
	screenshots int
	clicks      []string
}

// NewPage returns a page whose top-level document is html and which has no
// frames.
func NewPage(html string) *Page {
	p := &Page{}
	p.Top = newDocument(p, html)
	return p
}

// SetFrames replaces the frame tree. Surfaces and elements of the previous
// frames are detached and fail with ErrStale.
func (p *Page) SetFrames(specs ...FrameSpec) {
	frames := make([]*frame, 0, len(specs))
	for _, spec := range specs {
		frames = append(frames, &frame{spec: spec, doc: newDocument(p, spec.HTML)})
	}
	p.mu.Lock()
	old := p.frames
	p.frames = frames
	p.mu.Unlock()
	for _, f := range old {
		f.doc.detach()
	}
}

func (d *Document) detach() {
	d.mu.Lock()
	d.detached = true
	d.generation++
	d.mu.Unlock()
}

// Frame returns the document of the i-th frame.
func (p *Page) Frame(i int) *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.frames) {
		return nil
	}
	return p.frames[i].doc
}

// QueryAll implements dom.Surface over the top-level document.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return p.Top.QueryAll(ctx, selector)
}

// Frames implements dom.Page.
func (p *Page) Frames(ctx context.Context) ([]dom.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dom.Frame, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, dom.Frame{
			Name:    f.spec.Name,
			ID:      f.spec.ID,
			Title:   f.spec.Title,
			Src:     f.spec.Src,
			Surface: f.doc,
		})
	}
	return out, nil
}

// ClickAndWait implements dom.Page.
func (p *Page) ClickAndWait(ctx context.Context, el dom.Element) error {
	p.mu.Lock()
	p.navigations++
	p.mu.Unlock()
	return el.Click(ctx)
}

// Screenshot implements dom.Page with a fixed PNG signature.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.screenshots++
	p.mu.Unlock()
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Navigations counts ClickAndWait calls.
func (p *Page) Navigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigations
}

// Screenshots counts Screenshot calls.
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

// Clicks lists the id (or, lacking one, the tag name) of every clicked
// element in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) recordClick(name string) {
	p.mu.Lock()
	p.clicks = append(p.clicks, name)
	p.mu.Unlock()
}

// Element implements dom.Element over a goquery selection of one node.
type Element struct {
	doc *Document
	gen int
	sel *goquery.Selection
}

// Document returns the document that owns the element.
func (e *Element) Document() *Document { return e.doc }

// Attr returns an attribute of the underlying node.
func (e *Element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return v
}

func (e *Element) alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.detached() || e.gen != e.doc.generation {
		return ErrStale
	}
	return nil
}

func (e *Element) detached() bool { return e.doc.detached }

// Property implements dom.Element.
func (e *Element) Property(ctx context.Context, name string) (string, error) {
	if err := e.alive(ctx); err != nil {
		return "", err
	}
	switch name {
	case "textContent", "innerText":
		return e.sel.Text(), nil
	case "tagName":
		return strings.ToUpper(goquery.NodeName(e.sel)), nil
	case "checked":
		_, ok := e.sel.Attr("checked")
		return fmt.Sprint(ok), nil
	case "value":
		if goquery.NodeName(e.sel) == "select" {
			return selectValue(e.sel), nil
		}
		return e.Attr("value"), nil
	default:
		return e.Attr(name), nil
	}
}

// Children implements dom.Element.
func (e *Element) Children(ctx context.Context) ([]dom.Element, error) {
	if err := e.alive(ctx); err != nil {
		return nil, err
	}
	var out []dom.Element
	e.sel.Children().Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{doc: e.doc, gen: e.gen, sel: s})
	})
	return out, nil
}

// Click implements dom.Element. Checkboxes toggle before OnClick runs.
func (e *Element) Click(ctx context.Context) error {
	if err := e.alive(ctx); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) == "input" && e.Attr("type") == "checkbox" {
		if _, ok := e.sel.Attr("checked"); ok {
			e.sel.RemoveAttr("checked")
		} else {
			e.sel.SetAttr("checked", "checked")
		}
	}
	name := e.Attr("id")
	if name == "" {
		name = goquery.NodeName(e.sel)
	}
	p := e.doc.page
	p.recordClick(name)
	if p.OnClick != nil {
		return p.OnClick(ctx, p, e)
	}
	return nil
}

// Type implements dom.Element.
func (e *Element) Type(ctx context.Context, text string) error {
	if err := e.alive(ctx); err != nil {
		return err
	}
	e.sel.SetAttr("value", e.Attr("value")+text)
	return nil
}

// Clear implements dom.Element.
func (e *Element) Clear(ctx context.Context) error {
	if err := e.alive(ctx); err != nil {
		return err
	}
	e.sel.SetAttr("value", "")
	return nil
}

// Select implements dom.Element.
func (e *Element) Select(ctx context.Context, value string) error {
	if err := e.alive(ctx); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) != "select" {
		return fmt.Errorf("domtest: select on <%s>", goquery.NodeName(e.sel))
	}
	found := false
	e.sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if v, _ := opt.Attr("value"); v == value {
			opt.SetAttr("selected", "selected")
			found = true
		} else {
			opt.RemoveAttr("selected")
		}
	})
	if !found {
		return fmt.Errorf("domtest: no option %q", value)
	}
	return nil
}

func selectValue(s *goquery.Selection) string {
	opts := s.Find("option")
	selected := opts.Filter("[selected]").First()
	if selected.Length() == 0 {
		selected = opts.First()
	}
	v, _ := selected.Attr("value")
	return v
}
