package login

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRedirect(t *testing.T) {
	base, _ := url.Parse("https://intranet.example")

	tests := []struct {
		target string
		want   string
	}{
		{target: "", want: ""},
		{target: "/", want: "/"},
		{target: "/wiki?a=b#c", want: "/wiki?a=b#c"},
		{target: "wiki", want: ""},
		{target: "//evil.example/x", want: ""},
		{target: "/%2F%2Fevil.example", want: ""},
		{target: `/\evil.example`, want: ""},
		{target: "https://evil.example/x", want: ""},
		{target: "http://intranet.example/x", want: ""},
		{target: "https://INTRANET.example/x?y=1", want: "/x?y=1"},
		{target: "https://intranet.example", want: ""},
		{target: "%zz", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, safeRedirect(tt.target, base))
		})
	}

	assert.Empty(t, safeRedirect("https://intranet.example/x", nil))
}
