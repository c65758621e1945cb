package pipeline

import (
	"fmt"
	"net/url"
	"sort"
)

// OmitFilter is the filter value meaning "leave this filter out"
const OmitFilter = "0"

// filterParams maps configured filter names to registry query parameters
var filterParams = map[string]string{
	"titles":        "query.titles",
	"locn":          "query.locn",
	"lead":          "query.lead",
	"overallStatus": "filter.overallStatus",
	"advanced":      "filter.advanced",
	"pageSize":      "pageSize",
}

// QueryParams converts named filters into search parameters. Empty values and
// OmitFilter are dropped; unknown filter names are an error.
func QueryParams(filters map[string]string) (url.Values, error) {
	params := url.Values{}
	var unknown []string
	for name, value := range filters {
		param, ok := filterParams[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if value == "" || value == OmitFilter {
			continue
		}
		params.Set(param, value)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown filters: %v", unknown)
	}
	return params, nil
}

// MergeFilters overlays overrides on base without modifying either
func MergeFilters(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
