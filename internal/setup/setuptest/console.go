// Package setuptest simulates the Setup pages the navigator and the
// reconciliation engine drive: the lightning shell with quick find, the
// picklist overview, the country table, the country edit page with its state
// table, the create forms and the deliverability settings, each rendered into
// a single content frame the way the console does.
package setuptest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"orgsetup/internal/credentials"
	"orgsetup/internal/dom/domtest"
	"orgsetup/internal/setup"
)

// IntValDefault is what the console pre-fills into a new entry's integer
// value field.
const IntValDefault = "4242"

// Element id fragments rendered by the simulator.
const (
	IDAccessSelect   = "thePage:theForm:editBlock:sendEmailAccessControlSection:sendEmailAccessControl:sendEmailAccessControlSelect"
	IDBounce         = "thePage:theForm:editBlock:bounceSection:cbHandleBouncedEmails"
	IDReturnToSender = "thePage:theForm:editBlock:bounceSection:cbReturnBouncedEmailsToSender"
	IDPrivacy        = "thePage:theForm:editBlock:privacySection:cbEnforceEmailPrivacy"
	IDSave           = "thePage:theForm:editBlock:buttons:saveBtn"
)

type Entry struct {
	Name    string
	IsoCode string
	IntVal  string
	Active  bool
	Visible bool
}

type Country struct {
	Entry
	States []Entry
}

// Email is the deliverability settings as saved.
type Email struct {
	Access         string
	Bounce         bool
	ReturnToSender bool
	Privacy        bool
}

// Console is the remote side. Fields may be changed between runs; a run sees
// them through rendered HTML only.
type Console struct {
	Page *domtest.Page

	mu sync.Mutex

	Countries       []*Country
	PicklistEnabled bool
	HideQuickFind   bool
	HideLinks       bool
	HideSaveButton  bool
	// HideOptionalCheckboxes drops the return-to-sender and privacy
	// checkboxes from the deliverability page.
	HideOptionalCheckboxes bool
	// WrapOverview breaks the picklist confirmation across source lines.
	WrapOverview bool
	// StuckEdit makes a country's edit link leave the country table in place.
	StuckEdit bool
	// ExtraFrames adds frames beside the content frame.
	ExtraFrames int
	// NoBanner lists iso-codes whose create is accepted without a banner.
	NoBanner map[string]bool
	// RejectCreate lists iso-codes whose create is refused.
	RejectCreate map[string]bool
	Email        Email

	// Creates logs every accepted create as "CA" or "CA/ON".
	Creates []string
	// Homes counts NavigateToHome calls.
	Homes int

	view    string
	current *Country
	banner  string
}

// NewConsole returns a console with picklists enabled and the given
// countries already configured.
func NewConsole(countries ...*Country) *Console {
	c := &Console{
		Countries:       countries,
		PicklistEnabled: true,
		NoBanner:        map[string]bool{},
		RejectCreate:    map[string]bool{},
		Email:           Email{Access: "1"},
	}
	c.Page = domtest.NewPage("<html><body></body></html>")
	c.Page.OnClick = c.onClick
	return c
}

// NavigateToHome implements setup.Home.
func (c *Console) NavigateToHome(ctx context.Context, _ credentials.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Homes++
	c.view = "home"
	c.render()
	return nil
}

// Country returns the remote country with iso, or nil.
func (c *Console) Country(iso string) *Country {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(iso)
}

// CreateLog returns a copy of Creates.
func (c *Console) CreateLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Creates...)
}

func (c *Console) find(iso string) *Country {
	for _, country := range c.Countries {
		if country.IsoCode == iso {
			return country
		}
	}
	return nil
}

func (c *Console) onClick(_ context.Context, p *domtest.Page, el *domtest.Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, href, value := el.Attr("id"), el.Attr("href"), el.Attr("value")
	if el.Attr("type") == "checkbox" {
		return nil
	}
	switch {
	case href == setup.StateCountryHref:
		c.view = "overview"
	case href == setup.EmailDeliverabilityHref:
		c.view = "email"
	case id == "configLink":
		c.view = "countries"
	case value == "New Country/Territory":
		c.view = "newCountry"
	case strings.HasPrefix(href, "/edit/"):
		if c.StuckEdit {
			return nil
		}
		c.current = c.find(strings.TrimPrefix(href, "/edit/"))
		c.banner = ""
		c.view = "countryEdit"
	case strings.Contains(id, "buttonAddNew"):
		c.view = "newState"
	case strings.Contains(id, "addButton"):
		c.submit(el.Document())
	case strings.Contains(id, "saveBtn"):
		doc := el.Document()
		c.Email = Email{
			Access:         doc.SelectedOf("sendEmailAccessControlSelect"),
			Bounce:         doc.CheckedOf("cbHandleBouncedEmails"),
			ReturnToSender: doc.CheckedOf("cbReturnBouncedEmailsToSender"),
			Privacy:        doc.CheckedOf("cbEnforceEmailPrivacy"),
		}
		c.banner = "Success: settings saved"
	default:
		return nil
	}
	c.render()
	return nil
}

func (c *Console) submit(form *domtest.Document) {
	entry := Entry{
		Name:    form.ValueOf("editName"),
		IsoCode: form.ValueOf("editIsoCode"),
		IntVal:  form.ValueOf("editIntVal"),
		Active:  form.CheckedOf("editActive"),
		Visible: form.CheckedOf("editVisible"),
	}
	key := entry.IsoCode
	if c.view == "newState" && c.current != nil {
		key = c.current.IsoCode + "/" + entry.IsoCode
	}
	if c.RejectCreate[entry.IsoCode] {
		c.banner = ""
		c.view = "error"
		return
	}

	switch c.view {
	case "newCountry":
		country := &Country{Entry: entry}
		c.Countries = append(c.Countries, country)
		c.current = country
	case "newState":
		if c.current == nil {
			return
		}
		c.current.States = append(c.current.States, entry)
	default:
		return
	}
	c.Creates = append(c.Creates, key)
	c.banner = "Success: " + entry.Name + " saved"
	if c.NoBanner[entry.IsoCode] {
		c.banner = ""
	}
	c.view = "countryEdit"
}

// render must be called with mu held.
func (c *Console) render() {
	c.Page.Top.SetHTML(c.shell())
	if c.view == "home" {
		c.Page.SetFrames()
		return
	}
	frames := []domtest.FrameSpec{{Name: "vfFrameId_1700000000000", Src: "https://acme--c.vf.force.com/setup", HTML: c.frameHTML()}}
	for i := 0; i < c.ExtraFrames; i++ {
		frames = append(frames, domtest.FrameSpec{Name: fmt.Sprintf("extra_%d", i), HTML: "<html><body></body></html>"})
	}
	c.Page.SetFrames(frames...)
	c.banner = ""
}

func (c *Console) shell() string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="setup-shell">`)
	if !c.HideQuickFind {
		b.WriteString(`<input id="quickfind-123" class="filter-box input" type="search" value="">`)
	}
	if !c.HideLinks {
		fmt.Fprintf(&b, `<a href="%s">State and Country/Territory Picklists</a>`, setup.StateCountryHref)
		fmt.Fprintf(&b, `<a href="%s">Deliverability</a>`, setup.EmailDeliverabilityHref)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func (c *Console) frameHTML() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if c.banner != "" {
		fmt.Fprintf(&b, `<div class="message confirmM3"><h4>%s</h4></div>`, html.EscapeString(c.banner))
	}
	switch c.view {
	case "overview":
		b.WriteString(`<h1>State and Country/Territory Picklists</h1>`)
		if c.PicklistEnabled && c.WrapOverview {
			b.WriteString("<p>State and Country/Territory\n\t\tPicklists are enabled for this org.</p>")
		} else if c.PicklistEnabled {
			b.WriteString(`<p>State and Country/Territory Picklists are enabled&nbsp;for this org.</p>`)
		} else {
			b.WriteString(`<p>Complete the steps to enable the picklists.</p>`)
		}
		b.WriteString(`<a id="configLink" href="#configure">Configure states and countries.</a>`)
	case "countries":
		b.WriteString(`<input type="submit" class="btn" value="New Country/Territory" name="new">`)
		writeTable(&b, "j_id0:countries", countryEntries(c.Countries), true)
	case "countryEdit":
		if c.current != nil {
			fmt.Fprintf(&b, `<h2>%s</h2>`, html.EscapeString(c.current.Name))
			b.WriteString(`<input type="submit" id="j_id0:stateBlock:buttonAddNew" value="New">`)
			writeTable(&b, "j_id0:states", c.current.States, false)
		}
	case "newCountry", "newState":
		fmt.Fprintf(&b, `<form>
<input type="text" id="configurecountry:form:editName" value="">
<input type="text" id="configurecountry:form:editIsoCode" value="">
<input type="text" id="configurecountry:form:editIntVal" value="%s">
<input type="checkbox" id="configurecountry:form:editActive">
<input type="checkbox" id="configurecountry:form:editVisible">
<input type="submit" id="configurecountry:form:addButton" value="Add">
</form>`, IntValDefault)
	case "email":
		b.WriteString(`<form><select id="` + IDAccessSelect + `">`)
		for _, opt := range [][2]string{{"0", "No access"}, {"1", "System email only"}, {"2", "All email"}} {
			sel := ""
			if opt[0] == c.Email.Access {
				sel = " selected"
			}
			fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`, opt[0], sel, opt[1])
		}
		b.WriteString(`</select>`)
		writeCheckbox(&b, IDBounce, c.Email.Bounce)
		if !c.HideOptionalCheckboxes {
			writeCheckbox(&b, IDReturnToSender, c.Email.ReturnToSender)
			writeCheckbox(&b, IDPrivacy, c.Email.Privacy)
		}
		if !c.HideSaveButton {
			b.WriteString(`<input type="submit" id="` + IDSave + `" value="Save">`)
		}
		b.WriteString(`</form>`)
	case "error":
		b.WriteString(`<div class="message errorM3"><h4>Error: Invalid Data.</h4></div>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func countryEntries(countries []*Country) []Entry {
	out := make([]Entry, 0, len(countries))
	for _, c := range countries {
		out = append(out, c.Entry)
	}
	return out
}

func writeTable(b *strings.Builder, prefix string, entries []Entry, editable bool) {
	b.WriteString(`<table class="list"><tr class="headerRow"><th>Action</th><th>Name</th><th>ISO Code</th></tr>`)
	for i, e := range entries {
		b.WriteString(`<tr class="dataRow">`)
		fmt.Fprintf(b, `<td class="dataCell" id="%s:%d:actionCol">`, prefix, i)
		if editable {
			fmt.Fprintf(b, `<a href="/edit/%s">Edit</a>`, html.EscapeString(e.IsoCode))
		} else {
			b.WriteString(`<span>Edit</span>`)
		}
		b.WriteString(`</td>`)
		fmt.Fprintf(b, `<td class="dataCell" id="%s:%d:nameCol"><span>%s</span></td>`, prefix, i, html.EscapeString(e.Name))
		fmt.Fprintf(b, `<td class="dataCell" id="%s:%d:isocodeCol"><span>%s</span></td>`, prefix, i, html.EscapeString(e.IsoCode))
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table>`)
}

func writeCheckbox(b *strings.Builder, id string, checked bool) {
	attr := ""
	if checked {
		attr = " checked"
	}
	fmt.Fprintf(b, `<input type="checkbox" id="%s"%s>`, id, attr)
}

// CountryWith builds a remote country with the given state iso-codes.
func CountryWith(iso string, states ...string) *Country {
	c := &Country{Entry: Entry{Name: iso, IsoCode: iso, IntVal: "1", Active: true, Visible: true}}
	for _, s := range states {
		c.States = append(c.States, Entry{Name: s, IsoCode: s, IntVal: "1", Active: true, Visible: true})
	}
	return c
}
