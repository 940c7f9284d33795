package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostQuality_DocumentationHostWeightedHigher(t *testing.T) {
	assert.Greater(t, HostQuality("pkg.go.dev", nil), HostQuality("example.com", nil))
}

func TestHostQuality_SubdomainMatchesSuffix(t *testing.T) {
	assert.Equal(t, HostQuality("readthedocs.io", nil), HostQuality("myproject.readthedocs.io", nil))
}

func TestHostQuality_UnknownHostGetsNeutralWeight(t *testing.T) {
	assert.Equal(t, defaultHostQualityWeight, HostQuality("some-random-blog.net", nil))
}

func TestHostQuality_DocsPrefixHeuristic(t *testing.T) {
	assert.Greater(t, HostQuality("docs.somecompany.com", nil), defaultHostQualityWeight)
}

func TestHostQuality_OverridesTakePrecedence(t *testing.T) {
	overrides := map[string]float64{"example.com": 5.0}
	assert.Equal(t, 5.0, HostQuality("example.com", overrides))
}
