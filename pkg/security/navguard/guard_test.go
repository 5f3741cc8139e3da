package navguard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Check(t *testing.T) {
	guard, err := New(Rules{
		Allowed: []string{"example.com", "*.example.com", "**.docs.test", "bücher.example"},
		Denied:  []string{"admin.example.com"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		url     string
		wantErr ViolationType
	}{
		{name: "exact host", url: "https://example.com/path"},
		{name: "one label wildcard", url: "http://www.example.com"},
		{name: "uppercase host", url: "https://WWW.Example.COM/"},
		{name: "deep wildcard", url: "https://a.b.docs.test/x"},
		{name: "unicode host", url: "https://bücher.example/"},
		{name: "punycode host", url: "https://xn--bcher-kva.example/"},
		{name: "denied wins", url: "https://admin.example.com", wantErr: ViolationDenied},
		{name: "single star is one label", url: "https://a.b.example.com", wantErr: ViolationNotListed},
		{name: "not listed", url: "https://evil.test", wantErr: ViolationNotListed},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: ViolationScheme},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: ViolationScheme},
		{name: "missing host", url: "https:///nohost", wantErr: ViolationMalformed},
		{name: "unparseable", url: "http://[::1", wantErr: ViolationMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Check(tt.url)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var v *Violation
			require.True(t, errors.As(err, &v), "expected violation, got %v", err)
			assert.Equal(t, tt.wantErr, v.Type)
		})
	}
}

func TestGuard_EmptyAllowListAllowsAll(t *testing.T) {
	guard, err := New(Rules{Denied: []string{"**.ads.test"}})
	require.NoError(t, err)

	assert.NoError(t, guard.Check("https://anything.test"))
	assert.Error(t, guard.Check("https://x.y.ads.test"))
}

func TestGuard_Update(t *testing.T) {
	guard, err := New(Rules{})
	require.NoError(t, err)
	require.NoError(t, guard.Check("https://site.test"))

	require.NoError(t, guard.Update(Rules{Denied: []string{"site.test"}}))
	assert.Error(t, guard.Check("https://site.test"))
	assert.Equal(t, []string{"site.test"}, guard.Rules().Denied)

	// invalid patterns keep the previous rules
	err = guard.Update(Rules{Allowed: []string{"bad host.example"}})
	require.Error(t, err)
	assert.Error(t, guard.Check("https://site.test"))
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Example.COM", want: "example.com"},
		{in: "example.com.", want: "example.com"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "127.0.0.1", want: "127.0.0.1"},
	}

	for _, tt := range tests {
		got, err := NormalizeHost(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
