package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParamPrefixes and trackingParamNames are dropped during
// normalization; two URLs differing only in these must hash identically.
var trackingParamPrefixes = []string{"utm_"}

var trackingParamNames = map[string]struct{}{
	"ref":        {},
	"fbclid":     {},
	"gclid":      {},
	"msclkid":    {},
	"mc_cid":     {},
	"mc_eid":     {},
	"igshid":     {},
	"spm":        {},
	"_hsenc":     {},
	"_hsmi":      {},
	"ref_src":    {},
	"ref_url":    {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// Normalize applies the URL Catalog's canonical normalization (spec §4.1):
// lowercase scheme/host, strip default ports, remove fragment, drop
// tracking-parameter keys, collapse repeated slashes, remove the trailing
// slash except at root.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if host, port, ok := splitHostPort(u.Host); ok {
		if defaultPorts[u.Scheme] == port {
			u.Host = host
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if _, tracked := trackingParamNames[lower]; tracked {
				q.Del(key)
				continue
			}
			for _, prefix := range trackingParamPrefixes {
				if strings.HasPrefix(lower, prefix) {
					q.Del(key)
					break
				}
			}
		}
		u.RawQuery = encodeSortedQuery(q)
	}

	u.Path = repeatedSlashes.ReplaceAllString(u.Path, "/")
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}

	return u.String(), nil
}

func splitHostPort(host string) (h, port string, ok bool) {
	idx := strings.LastIndex(host, ":")
	if idx < 0 {
		return host, "", false
	}
	return host[:idx], host[idx+1:], true
}

func encodeSortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		for j, v := range q[k] {
			if i > 0 || j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// Hash returns the url_hash identity for a normalized URL: the hex-encoded
// SHA-256 digest, truncated to 32 hex characters (128 bits — comfortably
// more than the spec's "32+-bit hex" floor).
func Hash(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])[:32]
}

var videoHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"youtu.be":        {},
	"vimeo.com":       {},
	"www.vimeo.com":   {},
}

var repoHosts = map[string]struct{}{
	"github.com":    {},
	"gitlab.com":    {},
	"bitbucket.org": {},
	"codeberg.org":  {},
	"sr.ht":         {},
}

var docHostSuffixes = []string{"readthedocs.io", "gitbook.io", "readme.io", "notion.site"}

var docHostLabels = []string{"docs", "doc", "documentation", "wiki", "confluence"}

var docPathSegments = []string{"tutorial", "guide", "learn", "blog", "article", "post", "news"}

// DetectKind classifies a normalized URL per spec §4.1's kind-detection
// heuristics. crawled indicates the URL was itself discovered via crawling
// (in which case the doc-site promotion does not re-apply — the crawl
// origin already established the site as documentation-style).
func DetectKind(normalizedURL string, crawled bool) Kind {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return KindWebPage
	}
	host := strings.ToLower(u.Host)

	if _, ok := videoHosts[host]; ok {
		if isVideoChannelPath(host, u.Path) {
			return KindVideoChannel
		}
		return KindVideo
	}

	if _, ok := repoHosts[host]; ok && isRepoPath(u.Path) {
		return KindRepo
	}

	if !crawled && isDocumentationHost(host) {
		return KindDocSitePage
	}
	if !crawled && isDocumentationPath(u.Path) {
		return KindDocSitePage
	}

	return KindWebPage
}

func isVideoChannelPath(host, path string) bool {
	if host == "youtu.be" {
		return false
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return false
	}
	switch segments[0] {
	case "watch", "shorts", "embed":
		return false
	case "channel", "c", "user", "@":
		return true
	}
	return strings.HasPrefix(segments[0], "@")
}

func isRepoPath(path string) bool {
	segments := splitPath(path)
	return len(segments) >= 2
}

func isDocumentationHost(host string) bool {
	for _, suffix := range docHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		for _, want := range docHostLabels {
			if label == want || strings.HasPrefix(label, want) {
				return true
			}
		}
	}
	return false
}

func isDocumentationPath(path string) bool {
	segments := splitPath(path)
	for _, seg := range segments {
		seg = strings.ToLower(seg)
		for _, want := range docPathSegments {
			if seg == want {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
