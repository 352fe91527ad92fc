package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	cred, err := Static{InstanceURL: "https://acme.my.salesforce.com/", AccessToken: "00D!tok"}.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://acme.my.salesforce.com", cred.InstanceURL)
	assert.Equal(t, "00D!tok", cred.AccessToken)

	_, err = Static{InstanceURL: "acme"}.Credential(context.Background())
	assert.ErrorIs(t, err, ErrMissing)

	_, err = Static{InstanceURL: "not a url", AccessToken: "x"}.Credential(context.Background())
	assert.Error(t, err)
}

func TestCLI(t *testing.T) {
	var gotArgs []string
	src := &CLI{
		TargetOrg: "dev",
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte(`{"status":0,"result":{"instanceUrl":"https://dev.my.salesforce.com","accessToken":"00Dxx!abc","username":"admin@dev"}}`), nil
		},
	}
	cred, err := src.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sf", "org", "display", "--target-org", "dev", "--json"}, gotArgs)
	assert.Equal(t, Credential{InstanceURL: "https://dev.my.salesforce.com", AccessToken: "00Dxx!abc"}, cred)
}

func TestCLIReportsFailure(t *testing.T) {
	src := &CLI{
		TargetOrg: "gone",
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte(`{"status":1,"message":"No authorization information found for gone."}`), errors.New("exit status 1")
		},
	}
	_, err := src.Credential(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No authorization information")

	src.Run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	}
	_, err = src.Credential(context.Background())
	assert.ErrorContains(t, err, "executable file not found")
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig("https://x.my.salesforce.com", "tok", "")
	require.NoError(t, err)
	assert.IsType(t, Static{}, src)

	src, err = FromConfig("", "", "dev")
	require.NoError(t, err)
	assert.IsType(t, &CLI{}, src)

	_, err = FromConfig("", "", "")
	assert.ErrorIs(t, err, ErrMissing)
}
