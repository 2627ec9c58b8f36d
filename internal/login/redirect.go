package login

import (
	"net/url"
	"strings"
)

// safeRedirect returns target as a site relative path, or "" if it would leave the site.
// Absolute urls are accepted when they point at base.
func safeRedirect(target string, base *url.URL) string {
	if target == "" {
		return ""
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return ""
	}

	if parsed.Scheme != "" || parsed.Host != "" {
		if base == nil || !strings.EqualFold(parsed.Scheme, base.Scheme) || !strings.EqualFold(parsed.Host, base.Host) {
			return ""
		}

		parsed.Scheme = ""
		parsed.Host = ""
		parsed.User = nil
		target = parsed.String()
	}

	if !isValidRedirectPath(target) {
		return ""
	}

	return target
}

// isValidRedirectPath accepts local paths only.
func isValidRedirectPath(path string) bool {
	// decode to catch encoded bypass attempts like /%2f%2f
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.Contains(decoded, `\`) {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}
