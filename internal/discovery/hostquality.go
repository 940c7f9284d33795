package discovery

import "strings"

// hostQualityWeights biases aggregated search results towards
// documentation hosts and transcript-bearing platforms (spec §4.8:
// "scored by provider-supplied relevance and a per-host quality
// table"). The exact weighting scheme is left open by the spec (§9
// Open Questions); this is a simple weighted product recorded as a
// decision in DESIGN.md, config-overridable via HostQualityOverrides.
var hostQualityWeights = map[string]float64{
	"docs.rs":             1.4,
	"readthedocs.io":      1.4,
	"pkg.go.dev":          1.4,
	"devdocs.io":          1.3,
	"developer.mozilla.org": 1.3,
	"youtube.com":         1.2,
	"youtu.be":            1.2,
	"github.com":          1.15,
}

const defaultHostQualityWeight = 1.0

// HostQuality scores host by its documentation/transcript weight,
// falling back to a neutral weight, and matching the "docs." prefix and
// ".docs." subdomain conventions not covered by the exact-suffix table.
func HostQuality(host string, overrides map[string]float64) float64 {
	host = strings.ToLower(host)
	if overrides != nil {
		if w, ok := lookupHostWeight(host, overrides); ok {
			return w
		}
	}
	if w, ok := lookupHostWeight(host, hostQualityWeights); ok {
		return w
	}
	if strings.HasPrefix(host, "docs.") || strings.Contains(host, ".docs.") {
		return 1.3
	}
	return defaultHostQualityWeight
}

// lookupHostWeight matches host against table by exact host or by
// suffix (so "foo.readthedocs.io" matches a "readthedocs.io" entry).
func lookupHostWeight(host string, table map[string]float64) (float64, bool) {
	if w, ok := table[host]; ok {
		return w, true
	}
	for suffix, w := range table {
		if strings.HasSuffix(host, "."+suffix) {
			return w, true
		}
	}
	return 0, false
}
