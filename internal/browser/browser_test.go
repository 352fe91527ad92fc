package browser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/credentials"
	"orgsetup/pkg/chrome"
)

func TestFrontdoorURL(t *testing.T) {
	got := FrontdoorURL(credentials.Credential{
		InstanceURL: "https://acme.my.salesforce.com",
		AccessToken: "00D5g!AQ4AQ",
	}, SetupHomePath)
	assert.Equal(t,
		"https://acme.my.salesforce.com/secur/frontdoor.jsp?sid=00D5g%21AQ4AQ&retURL=%2Flightning%2Fsetup%2FSetupOneHome%2Fhome",
		got)
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &chromedpSession{}, s)

	s, err = New(Options{Driver: DriverRod, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &rodSession{}, s)

	_, err = New(Options{Driver: "playwright"})
	assert.Error(t, err)
}

func TestOptionDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 30*time.Second, o.NavigationTimeout)
	assert.Equal(t, 1200, o.Launch.Width)
	assert.Equal(t, 1200, o.Launch.Height)
	assert.Same(t, chrome.GlobalChromeManager, o.Manager)
}

func TestCloseUnopenedSession(t *testing.T) {
	for _, driver := range []string{DriverChromedp, DriverRod} {
		s, err := New(Options{Driver: driver, Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.NoError(t, s.Close(), driver)
	}
}

func TestScriptsQuoteArguments(t *testing.T) {
	sel := `input[type='submit'][value="New Country/Territory"]`
	script := queryScript(sel)
	quoted, _ := json.Marshal(sel)
	assert.Contains(t, script, string(quoted))

	script = elementScript("k3j9", 4, propertyBody("textContent"))
	assert.Contains(t, script, `d.__orgsetupGen !== "k3j9"`)
	assert.Contains(t, script, `d.__orgsetupNodes[4]`)
	assert.Contains(t, script, `el["textContent"]`)

	assert.Contains(t, selectBody(`2"); alert(1); ("`), `const v = "2\"); alert(1); (\"";`)
}
