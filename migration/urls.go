package migration

import (
	"strings"

	"github.com/dropsight/catmig/target"
)

// Per-country CDN hosts used to complete non-absolute gallery URLs. AR and GT
// run dedicated CDNs; every other country shares the default host.
var cdnHosts = map[string]string{
	"AR": "https://cdn-ar.dropsight.io",
	"GT": "https://cdn-gt.dropsight.io",
}

// DefaultCDNHost completes URLs for countries without a dedicated CDN.
const DefaultCDNHost = "https://cdn.dropsight.io"

// CDNHosts returns a copy of the per-country host table, for the finalization pass.
func CDNHosts() map[string]string {
	out := make(map[string]string, len(cdnHosts))
	for k, v := range cdnHosts {
		out[k] = v
	}
	return out
}

// CDNHost returns the CDN host for a country code.
func CDNHost(countryCode string) string {
	if h, ok := cdnHosts[strings.ToUpper(countryCode)]; ok {
		return h
	}
	return DefaultCDNHost
}

// NormalizeURL leaves absolute URLs untouched and prefixes relative ones with
// the per-country CDN host, trimming any leading slash. Stable: normalizing a
// normalized URL is a no-op.
func NormalizeURL(raw, countryCode string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return CDNHost(countryCode) + "/" + strings.TrimLeft(u, "/")
}

var videoSuffixes = []string{".mp4", ".mov", ".avi", ".webm"}
var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// ClassifyMultimediaType classifies by URL suffix; unknown suffixes fall back
// to the entry's explicit type when valid, else image.
func ClassifyMultimediaType(url, explicit string) target.MultimediaType {
	lower := strings.ToLower(url)
	for _, s := range videoSuffixes {
		if strings.HasSuffix(lower, s) {
			return target.MultimediaVideo
		}
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(lower, s) {
			return target.MultimediaImage
		}
	}
	switch strings.ToLower(explicit) {
	case string(target.MultimediaVideo):
		return target.MultimediaVideo
	case string(target.MultimediaImage):
		return target.MultimediaImage
	}
	return target.MultimediaImage
}
