package util

import (
	"net/url"
	"strings"
)

// schemes that can never act as a redirect target
var forbiddenRedirectSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// IsValidRedirectURI reports whether raw may be registered as an OAuth
// redirect URI: an absolute URL without a fragment (RFC 6749 section
// 3.1.2). Private-use schemes of native apps are accepted; http(s) URIs
// must name a host.
func IsValidRedirectURI(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, "\r\n") {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Fragment != "" || forbiddenRedirectSchemes[strings.ToLower(u.Scheme)] {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return u.Host != "" || u.Opaque != "" || u.Path != ""
	}
}
