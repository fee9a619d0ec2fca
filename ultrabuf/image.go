package ultrabuf

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	imageURLRe    = regexp.MustCompile(`https?://[^\s<>"\x00-\x1f]+`)
	imageWidthRe  = regexp.MustCompile(`w=(\d+)`)
	imageHeightRe = regexp.MustCompile(`h=(\d+)`)
	imageTypeRe   = regexp.MustCompile(`type=([^&]+)`)
)

var imageHostMarkers = []string{"wdcdn", "qpic"}

var imageURLKeywords = []string{"wdcdn", "qpic", "image", "img"}

// IsImageHosted reports whether s references the document image CDN.
func IsImageHosted(s string) bool {
	for _, m := range imageHostMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ExtractImage returns the first image-looking URL in text, with width,
// height and mime type read from its query-like parameters.
func ExtractImage(text string) (ImageInfo, bool) {
	for _, u := range imageURLRe.FindAllString(text, -1) {
		u = trimImageURL(u)
		if len(u) <= 10 || !containsAny(u, imageURLKeywords) {
			continue
		}
		img := ImageInfo{URL: u}
		if m := imageWidthRe.FindStringSubmatch(u); m != nil {
			img.Width, _ = strconv.Atoi(m[1])
		}
		if m := imageHeightRe.FindStringSubmatch(u); m != nil {
			img.Height, _ = strconv.Atoi(m[1])
		}
		if m := imageTypeRe.FindStringSubmatch(u); m != nil {
			img.MimeType = m[1]
		}
		return img, true
	}
	return ImageInfo{}, false
}

func trimImageURL(u string) string {
	u = strings.TrimRightFunc(u, func(r rune) bool { return r == '*' || r < 0x20 })
	return strings.TrimRightFunc(u, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("/_-=&?", r))
	})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
