package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
)

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {},
	"utm_content": {}, "utm_id": {}, "gclid": {}, "dclid": {}, "fbclid": {},
	"msclkid": {}, "igshid": {},
}

// NormalizeURL canonicalises a URL for cache keying: lowercased scheme and
// host, default ports and fragments removed, tracking parameters stripped,
// remaining query parameters sorted. Unparseable input is returned trimmed
// so it still produces a stable key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	if h, p, found := strings.Cut(host, ":"); found {
		if (parsed.Scheme == "http" && p == "80") || (parsed.Scheme == "https" && p == "443") {
			host = h
		}
	}
	parsed.Host = host
	parsed.Fragment = ""

	if parsed.Path != "" {
		clean := path.Clean(parsed.Path)
		if clean == "." {
			clean = "/"
		}
		if strings.HasSuffix(parsed.Path, "/") && !strings.HasSuffix(clean, "/") {
			clean += "/"
		}
		parsed.Path = clean
	}

	query := parsed.Query()
	for key := range query {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			values := append([]string(nil), query[k]...)
			sort.Strings(values)
			for _, v := range values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = b.String()
	}
	return parsed.String()
}

// FetchKey derives the cache key for a page fetch.
func FetchKey(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return "fetch:" + hex.EncodeToString(sum[:])
}

// SearchKey derives the cache key for a search call.
func SearchKey(query string, limit int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "search:" + hex.EncodeToString(sum[:])[:32] + ":" + strconv.Itoa(limit)
}
