package types

import (
	"encoding/json"
	"strings"
)

// Sentinels substituted for missing upstream data
const (
	Unknown            = "Unknown"
	UnknownDate        = "Unknown Date"
	NoConditions       = "No conditions listed"
	NoInterventions    = "No interventions listed"
	NoInterventionName = "No intervention name listed"
	NoLocations        = "No locations listed"
	NoCity             = "No City"
	NoCountry          = "No Country"
	NoPhases           = "Not Available"
)

// ListField is a list-valued record field. When the upstream container is
// absent the field collapses to a single sentinel string instead of a list;
// an empty or missing list inside a present container becomes a
// single-element placeholder list. Both render to the same text.
type ListField struct {
	Values   []string
	Sentinel string
}

// List builds a list-valued field
func List(values ...string) ListField {
	return ListField{Values: values}
}

// Absent builds the string sentinel form
func Absent(sentinel string) ListField {
	return ListField{Sentinel: sentinel}
}

// IsSentinel reports whether the field is the absent-container sentinel
func (f ListField) IsSentinel() bool {
	return f.Values == nil && f.Sentinel != ""
}

// String joins the values the way the CSV export shows them
func (f ListField) String() string {
	if f.IsSentinel() {
		return f.Sentinel
	}
	return strings.Join(f.Values, ", ")
}

// MarshalJSON encodes the sentinel form as a string and the list form as an
// array
func (f ListField) MarshalJSON() ([]byte, error) {
	if f.IsSentinel() {
		return json.Marshal(f.Sentinel)
	}
	if f.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.Values)
}

// UnmarshalJSON accepts either form
func (f *ListField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Absent(s)
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*f = List(values...)
	return nil
}

// TrialRecord is the flat, always fully populated view of one study
type TrialRecord struct {
	NCTID                 string    `json:"nct_id"`
	Acronym               string    `json:"acronym"`
	Sponsor               string    `json:"sponsor"`
	SponsorListed         bool      `json:"-"`
	OverallStatus         string    `json:"overall_status"`
	StartDate             string    `json:"start_date"`
	Conditions            ListField `json:"conditions"`
	Interventions         ListField `json:"interventions"`
	Locations             ListField `json:"locations"`
	PrimaryCompletionDate string    `json:"primary_completion_date"`
	StudyFirstPostDate    string    `json:"study_first_post_date"`
	LastUpdatePostDate    string    `json:"last_update_post_date"`
	StudyType             string    `json:"study_type"`
	Phases                ListField `json:"phases"`
}
