package dom_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/dom"
	"orgsetup/internal/dom/domtest"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "A\r\nB", "A\nB"},
		{"lone cr", "A\rB", "A\nB"},
		{"nbsp", "A\u00a0B", "A B"},
		{"space run", "Configure   states", "Configure states"},
		{"nbsp next to space", "A\u00a0 B", "A B"},
		{"untouched", "CA", "CA"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dom.Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, dom.Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestNormalizeIdempotentOnMixedInput(t *testing.T) {
	inputs := []string{
		"   \r\r\n  x",
		"     ",
		"a\r\n\r\nb   c  d",
	}
	for _, in := range inputs {
		once := dom.Normalize(in)
		assert.Equal(t, once, dom.Normalize(once), "input %q", in)
	}
}

const table = `<html><body>
<a id="link1" href="/a">Configure&nbsp;states and  countries.</a>
<a id="link2" href="/b">Other</a>
<table>
  <tr><td id="j_id0:row:0:isocodeCol"><span>CA</span></td><td id="j_id0:row:0:actionCol"><a href="/edit/ca">Edit</a></td></tr>
  <tr><td id="j_id0:row:1:isocodeCol"><span>USA</span></td><td id="j_id0:row:1:actionCol"><a href="/edit/usa">Edit</a></td></tr>
  <tr><td id="empty:isocodeCol"></td></tr>
</table>
<input id="thePage:editName" value="x">
<h4>Success: saved</h4>
</body></html>`

func TestFindByID(t *testing.T) {
	ctx := context.Background()
	p := domtest.NewPage(table)

	el, err := dom.FindByID(ctx, p, "input", "editName")
	require.NoError(t, err)
	require.NotNil(t, el)
	v, err := dom.ReadProperty(ctx, el, "value")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	el, err = dom.FindByID(ctx, p, "input", "editIsoCode")
	require.NoError(t, err)
	assert.Nil(t, el, "not found is nil without error")

	cells, err := dom.FindAllByID(ctx, p, "td", "isocodeCol")
	require.NoError(t, err)
	require.Len(t, cells, 3)

	text, err := dom.FirstChildText(ctx, cells[1])
	require.NoError(t, err)
	assert.Equal(t, "USA", text)

	text, err = dom.FirstChildText(ctx, cells[2])
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFindLinkByTextNormalizes(t *testing.T) {
	ctx := context.Background()
	p := domtest.NewPage(table)

	link, err := dom.FindLinkByText(ctx, p, "Configure states and countries.")
	require.NoError(t, err)
	require.NotNil(t, link)
	href, err := link.Property(ctx, "href")
	require.NoError(t, err)
	assert.Equal(t, "/a", href)

	link, err = dom.FindLinkByText(ctx, p, "Configure")
	require.NoError(t, err)
	assert.Nil(t, link, "link text match is exact")
}

func TestFindByText(t *testing.T) {
	ctx := context.Background()
	p := domtest.NewPage(table)

	el, err := dom.FindByText(ctx, p, "h4", "Success")
	require.NoError(t, err)
	assert.NotNil(t, el)

	el, err = dom.FindByText(ctx, p, "h4", "Error")
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestResolveFrame(t *testing.T) {
	ctx := context.Background()
	p := domtest.NewPage("<html></html>")

	_, err := dom.ResolveFrame(ctx, p, dom.ContentFrame)
	var topo *dom.UnexpectedFrameTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 0, topo.Found)
	assert.ErrorIs(t, err, dom.ErrUnexpectedFrameTopology)

	p.SetFrames(domtest.FrameSpec{Name: "vfFrameId_1", HTML: "<p id='inside'>x</p>"})
	s, err := dom.ResolveFrame(ctx, p, dom.ContentFrame)
	require.NoError(t, err)
	el, err := dom.FindByID(ctx, s, "p", "inside")
	require.NoError(t, err)
	assert.NotNil(t, el)

	p.SetFrames(
		domtest.FrameSpec{Name: "vfFrameId_1"},
		domtest.FrameSpec{Name: "analytics"},
	)
	_, err = dom.ResolveFrame(ctx, p, dom.ContentFrame)
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 2, topo.Found)

	s, err = dom.ResolveFrame(ctx, p, dom.NamePrefixRole("setup content", "vfFrameId"))
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestStaleElementAfterNavigation(t *testing.T) {
	ctx := context.Background()
	p := domtest.NewPage(table)
	el, err := dom.FindByID(ctx, p, "input", "editName")
	require.NoError(t, err)

	p.Top.SetHTML("<html></html>")
	_, err = el.Property(ctx, "value")
	assert.ErrorIs(t, err, domtest.ErrStale)
}

func TestPoll(t *testing.T) {
	ctx := context.Background()

	calls := 0
	ok, err := dom.Poll(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)

	calls = 0
	ok, err = dom.Poll(ctx, time.Millisecond, 0, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls, "condition runs at least once")

	boom := errors.New("boom")
	_, err = dom.Poll(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, dom.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, dom.Sleep(context.Background(), 0))
}
