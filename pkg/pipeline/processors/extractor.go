package processors

import (
	"fmt"

	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/tidwall/gjson"
)

// scalarField is one optional string path in a study with its sentinel
type scalarField struct {
	path     string
	sentinel string
}

func (f scalarField) from(study gjson.Result) string {
	return scalarOr(study.Get(f.path), f.sentinel)
}

// Scalar paths, relative to the study root
var (
	nctIDField                 = scalarField{"protocolSection.identificationModule.nctId", types.Unknown}
	acronymField               = scalarField{"protocolSection.identificationModule.acronym", types.Unknown}
	overallStatusField         = scalarField{"protocolSection.statusModule.overallStatus", types.Unknown}
	startDateField             = scalarField{"protocolSection.statusModule.startDateStruct.date", types.UnknownDate}
	primaryCompletionDateField = scalarField{"protocolSection.statusModule.primaryCompletionDateStruct.date", types.UnknownDate}
	studyFirstPostDateField    = scalarField{"protocolSection.statusModule.studyFirstPostDateStruct.date", types.UnknownDate}
	lastUpdatePostDateField    = scalarField{"protocolSection.statusModule.lastUpdatePostDateStruct.date", types.UnknownDate}
	studyTypeField             = scalarField{"protocolSection.designModule.studyType", types.Unknown}
	leadSponsorField           = scalarField{"protocolSection.sponsorCollaboratorsModule.leadSponsor.name", types.Unknown}
)

// List paths
const (
	conditionsPath          = "protocolSection.conditionsModule.conditions"
	phasesPath              = "protocolSection.designModule.phases"
	interventionsModulePath = "protocolSection.armsInterventionsModule"
	locationsModulePath     = "protocolSection.contactsLocationsModule"
)

// ExtractRecord converts one raw study into a TrialRecord. It never fails:
// every missing or malformed field is replaced by its sentinel.
func ExtractRecord(study []byte) types.TrialRecord {
	root := gjson.ParseBytes(study)

	sponsor := root.Get(leadSponsorField.path)
	sponsorListed := isScalar(sponsor) && sponsor.String() != ""

	return types.TrialRecord{
		NCTID:                 nctIDField.from(root),
		Acronym:               acronymField.from(root),
		Sponsor:               leadSponsorField.from(root),
		SponsorListed:         sponsorListed,
		OverallStatus:         overallStatusField.from(root),
		StartDate:             startDateField.from(root),
		Conditions:            stringList(root.Get(conditionsPath), types.NoConditions),
		Interventions:         extractInterventions(root.Get(interventionsModulePath)),
		Locations:             extractLocations(root.Get(locationsModulePath)),
		PrimaryCompletionDate: primaryCompletionDateField.from(root),
		StudyFirstPostDate:    studyFirstPostDateField.from(root),
		LastUpdatePostDate:    lastUpdatePostDateField.from(root),
		StudyType:             studyTypeField.from(root),
		Phases:                stringList(root.Get(phasesPath), types.NoPhases),
	}
}

// extractInterventions returns the module-absent sentinel string, a
// placeholder list for a missing or empty interventions list, or one name per
// intervention
func extractInterventions(module gjson.Result) types.ListField {
	if !module.IsObject() {
		return types.Absent(types.NoInterventions)
	}

	items := module.Get("interventions")
	if !items.IsArray() || len(items.Array()) == 0 {
		return types.List(types.NoInterventions)
	}

	var names []string
	for _, item := range items.Array() {
		names = append(names, scalarOr(item.Get("name"), types.NoInterventionName))
	}
	return types.List(names...)
}

// extractLocations mirrors extractInterventions; each entry is "city - country"
func extractLocations(module gjson.Result) types.ListField {
	if !module.IsObject() {
		return types.Absent(types.NoLocations)
	}

	items := module.Get("locations")
	if !items.IsArray() || len(items.Array()) == 0 {
		return types.List(types.NoLocations)
	}

	var locations []string
	for _, item := range items.Array() {
		city := scalarOr(item.Get("city"), types.NoCity)
		country := scalarOr(item.Get("country"), types.NoCountry)
		locations = append(locations, fmt.Sprintf("%s - %s", city, country))
	}
	return types.List(locations...)
}

func stringList(items gjson.Result, placeholder string) types.ListField {
	if !items.IsArray() {
		return types.List(placeholder)
	}

	var values []string
	for _, item := range items.Array() {
		if isScalar(item) {
			values = append(values, item.String())
		}
	}
	if len(values) == 0 {
		return types.List(placeholder)
	}
	return types.List(values...)
}

func scalarOr(r gjson.Result, sentinel string) string {
	if !isScalar(r) {
		return sentinel
	}
	return r.String()
}

func isScalar(r gjson.Result) bool {
	switch r.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return true
	}
	return false
}
