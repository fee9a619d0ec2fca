package opendoc

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParseCookies reads a cookie file. Three layouts are accepted, line by
// line: Netscape tab-separated (name and value in columns 6 and 7), a
// header-style "a=b; c=d" list, or a single name=value. Blank lines and
// lines starting with # are skipped. A later value for a name wins; order
// of first appearance is kept.
func ParseCookies(content string) []*http.Cookie {
	var out []*http.Cookie
	index := map[string]int{}
	set := func(name, value string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if i, ok := index[name]; ok {
			out[i].Value = value
			return
		}
		index[name] = len(out)
		out = append(out, &http.Cookie{Name: name, Value: value})
	}

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if parts := strings.Split(line, "\t"); len(parts) >= 7 {
			set(parts[5], parts[6])
			continue
		}
		if !strings.Contains(line, "=") {
			continue
		}
		for _, pair := range strings.Split(line, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok {
				set(name, value)
			}
		}
	}
	return out
}

// NewJar returns a cookie jar holding cookies for base and its
// subdomains.
func NewJar(base string, cookies []*http.Cookie) (http.CookieJar, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("opendoc: jar base url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("opendoc: cookie jar: %w", err)
	}
	scoped := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		cc := *c
		if cc.Path == "" {
			cc.Path = "/"
		}
		scoped[i] = &cc
	}
	jar.SetCookies(u, scoped)
	return jar, nil
}
