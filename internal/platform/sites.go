package platform

import "strings"

// UnknownSite is reported when no known domain matches
const UnknownSite = "Other"

// knownSites maps URL substrings to display names. Only used for stats and
// captions; extraction support is decided by the engine, not this list.
var knownSites = map[string]string{
	"youtube.com":     "YouTube",
	"youtu.be":        "YouTube",
	"instagram.com":   "Instagram",
	"twitter.com":     "Twitter/X",
	"x.com":           "Twitter/X",
	"tiktok.com":      "TikTok",
	"facebook.com":    "Facebook",
	"reddit.com":      "Reddit",
	"pinterest.com":   "Pinterest",
	"dailymotion.com": "Dailymotion",
	"vimeo.com":       "Vimeo",
	"terabox.com":     "Terabox",
}

// SiteFromURL returns a display name for the platform a URL points at
func SiteFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for domain, name := range knownSites {
		if strings.Contains(lower, domain) {
			return name
		}
	}
	return UnknownSite
}
