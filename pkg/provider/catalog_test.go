package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
providers:
  - name: relaybridge
    base_url: https://api.relaybridge.example.com
    api_key: k1
    timeout_seconds: 2
    routes:
      - source: ethereum
        destination: polygon
  - name: hopline
    base_url: https://quotes.hopline.example.io
    routes:
      - source: ethereum
        destination: optimism
      - source: optimism
        destination: ethereum
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, catalog.Providers, 2)

	relay := catalog.Providers[0]
	assert.Equal(t, "relaybridge", relay.Name)
	assert.Equal(t, "k1", relay.APIKey)
	assert.Equal(t, 2*time.Second, relay.Timeout())

	hop := catalog.Providers[1]
	assert.Equal(t, 3*time.Second, hop.Timeout(), "timeout_seconds defaults to 3")
	assert.Len(t, hop.Routes, 2)
}

func TestParseCatalog_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty catalog", "providers: []"},
		{"missing name", `
providers:
  - base_url: https://x.example.com
    routes:
      - source: a
        destination: b
`},
		{"missing base_url", `
providers:
  - name: p
    routes:
      - source: a
        destination: b
`},
		{"no routes", `
providers:
  - name: p
    base_url: https://x.example.com
`},
		{"incomplete route", `
providers:
  - name: p
    base_url: https://x.example.com
    routes:
      - source: a
`},
		{"duplicate name", `
providers:
  - name: p
    base_url: https://x.example.com
    routes:
      - source: a
        destination: b
  - name: p
    base_url: https://y.example.com
    routes:
      - source: a
        destination: b
`},
		{"malformed yaml", "providers: ["},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCatalog_Build(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	providers := catalog.Build()
	require.Len(t, providers, 2)
	assert.Equal(t, "relaybridge", providers[0].Name())
	assert.True(t, providers[0].SupportsRoute("ethereum", "polygon"))
	assert.False(t, providers[0].SupportsRoute("ethereum", "optimism"))
}

func TestRoute_MatchesCaseInsensitive(t *testing.T) {
	r := Route{Source: "Ethereum", Destination: "Polygon"}

	assert.True(t, r.Matches("ethereum", "polygon"))
	assert.True(t, r.Matches("ETHEREUM", "POLYGON"))
	assert.False(t, r.Matches("polygon", "ethereum"))
}
