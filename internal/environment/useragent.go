package environment

import "strings"

// IsTVPlatform detects the TV web runtimes (LG webOS and its NetCast predecessor).
// webOS spells itself "Web0S" with a zero in most firmware.
func IsTVPlatform(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "web0s") ||
		strings.Contains(ua, "webos") ||
		strings.Contains(ua, "netcast")
}

// IsNativeShell detects an Android WebView hosted inside an app shell.
// WebView marks itself with "; wv)" in the platform section.
func IsNativeShell(userAgent string) bool {
	return strings.Contains(userAgent, "Android") && strings.Contains(userAgent, "; wv)")
}
