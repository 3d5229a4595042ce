package utils_test

import (
	"testing"

	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name   string
		ua     string
		lang   string
		device string
		locale string
		bot    bool
	}{
		{
			name:   "desktop chrome",
			ua:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			lang:   "en-US,en;q=0.9",
			device: "Computer",
			locale: "en-US",
		},
		{
			name:   "iphone",
			ua:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			lang:   "es",
			device: "Phone",
			locale: "es",
		},
		{
			name: "googlebot",
			ua:   "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			bot:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := utils.ParseUserAgent(tt.ua, tt.lang)
			if tt.device != "" {
				assert.Equal(t, tt.device, info.Device)
			}
			assert.Equal(t, tt.locale, info.Locale)
			assert.Equal(t, tt.bot, info.Bot)
		})
	}
}

func TestParseUserAgent_Empty(t *testing.T) {
	info := utils.ParseUserAgent("", "")
	assert.NotNil(t, info)
	assert.False(t, info.Bot)
}
