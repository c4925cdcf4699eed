// Package privacy reduces request metadata to values that no longer identify
// a single person before it is stored next to consent records.
package privacy

import (
	"fmt"
	"net"
	"strings"

	"github.com/mssola/useragent"
)

// AnonymizeIP truncates an address to its network: /24 for IPv4 and /48 for
// IPv6. Empty input yields "unknown"; unparseable input yields "invalid".
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// SummarizeUserAgent keeps browser family, major version, OS and form factor,
// e.g. "Chrome 120 on Windows 10 (desktop)". The raw header is dropped.
func SummarizeUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	browser, version := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if major, _, _ := strings.Cut(version, "."); major != "" {
		browser += " " + major
	}
	osName := ua.OS()
	if osName == "" {
		osName = "Unknown OS"
	}
	form := "desktop"
	if ua.Mobile() {
		form = "mobile"
	}
	return fmt.Sprintf("%s on %s (%s)", browser, osName, form)
}
