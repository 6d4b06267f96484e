// Package useragent derives a best-effort device classification from a raw
// user-agent string. The result is low-confidence and descriptive only: it
// populates display fields on subscriber rows and must never participate in
// validation or business rules.
package useragent

import (
	"regexp"
	"strings"

	"pushdash-backend/internal/model"
)

// Classification is the structured result of sniffing a user-agent string.
// Zero-value fields mean the corresponding part could not be recognized.
type Classification struct {
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     model.DeviceType
}

var browserRes = []struct {
	name string
	re   *regexp.Regexp
}{
	// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
	{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?:OPR|Opera)/([\d.]+)`)},
	{"Samsung Internet", regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
	{"Firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`(?:Chrome|CriOS)/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`Version/([\d.]+).*Safari`)},
}

var tabletRe = regexp.MustCompile(`(?i)iPad|Tablet|Kindle|Silk|PlayBook`)
var mobileRe = regexp.MustCompile(`(?i)Mobi|iPhone|iPod|Android.*Mobile|Windows Phone`)

// Classify sniffs a raw user-agent string. An empty or unrecognized string
// yields a zero-value classification, never an error.
func Classify(ua string) Classification {
	var c Classification
	if strings.TrimSpace(ua) == "" {
		return c
	}

	for _, b := range browserRes {
		if m := b.re.FindStringSubmatch(ua); m != nil {
			c.Browser = b.name
			c.BrowserVersion = majorMinor(m[1])
			break
		}
	}

	switch {
	case strings.Contains(ua, "Windows"):
		c.OS = "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iPod"):
		c.OS = "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		c.OS = "macOS"
	case strings.Contains(ua, "Android"):
		c.OS = "Android"
	case strings.Contains(ua, "CrOS"):
		c.OS = "ChromeOS"
	case strings.Contains(ua, "Linux"):
		c.OS = "Linux"
	}

	switch {
	case tabletRe.MatchString(ua):
		c.DeviceType = model.DeviceTablet
	case mobileRe.MatchString(ua):
		c.DeviceType = model.DeviceMobile
	default:
		c.DeviceType = model.DeviceDesktop
	}

	return c
}

// majorMinor trims a dotted version down to at most two components.
func majorMinor(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}
