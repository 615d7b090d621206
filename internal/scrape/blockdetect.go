package scrape

import (
	"net/http"
	"strings"
)

// BlockType names the anti-bot protection a response ran into.
type BlockType string

// Block types.
const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

var challengeMarkers = []string{
	"checking your browser",
	"cf-browser-verification",
	"just a moment...",
}

var captchaMarkers = []string{"g-recaptcha", "h-captcha", "hcaptcha.com", "please complete the recaptcha", "captcha-delivery"}

// DetectBlock reports whether a response is a challenge page rather than
// the site itself.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Cf-Ray") != "" || strings.EqualFold(resp.Header.Get("Server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return BlockCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if strings.Contains(lower, m) {
			return BlockCaptcha
		}
	}

	// A tiny page that only says "enable JavaScript" has nothing to scrape.
	if len(body) < 2000 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
		return BlockJSShell
	}
	return BlockNone
}
