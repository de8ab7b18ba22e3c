package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name string
		ua   string
		want Client
	}{
		{
			"chrome windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Client{"desktop", "Chrome", "Windows"},
		},
		{
			"edge",
			"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0",
			Client{"desktop", "Edge", "Windows"},
		},
		{
			"safari iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
			Client{"mobile", "Safari", "iOS"},
		},
		{
			"ipad",
			"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 Safari/604.1",
			Client{"tablet", "Safari", "iOS"},
		},
		{
			"firefox android",
			"Mozilla/5.0 (Android 14; Mobile; rv:120.0) Gecko/120.0 Firefox/120.0",
			Client{"mobile", "Firefox", "Android"},
		},
		{
			"firefox linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
			Client{"desktop", "Firefox", "Linux"},
		},
		{
			"curl",
			"curl/8.4.0",
			Client{"desktop", "Unknown", "Unknown"},
		},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseUserAgent(tc.ua), tc.name)
	}
}
