package main

import (
	"bytes"
	"testing"

	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"titles=asthma OR copd", "lead=0", "pageSize=50"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"titles": "asthma OR copd", "lead": "0", "pageSize": "50"}, filters)

	_, err = parseFilters([]string{"titles"})
	assert.Error(t, err)

	_, err = parseFilters([]string{"sponsor=Acme"})
	assert.ErrorContains(t, err, "unknown filters")
}

func TestPrintResolution(t *testing.T) {
	var buf bytes.Buffer
	printResolution(&buf, "Acme Pharma", types.SponsorResolution{
		Ticker: types.StringPtr("ACM"),
		Status: types.PublicYes,
		Quote:  &types.Quote{ShortName: "Acme Pharma Inc", Exchange: "NMS", Sector: "Healthcare", MarketCap: 1.5e9},
	})
	assert.Contains(t, buf.String(), "Acme Pharma is publicly traded")
	assert.Contains(t, buf.String(), "ticker:     ACM")
	assert.Contains(t, buf.String(), "market cap: 1500000000")

	buf.Reset()
	printResolution(&buf, "Tiny Labs", types.SponsorResolution{
		Status:     types.PublicNo,
		Diagnostic: types.StringPtr("ticker not found"),
	})
	assert.Equal(t, "Tiny Labs is not publicly traded (ticker not found)\n", buf.String())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["check"])

	flag := runCmd.Flags().Lookup("pages")
	require.NotNil(t, flag)
	assert.Equal(t, "-1", flag.DefValue)
}
