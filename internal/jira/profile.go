package jira

// APIProfile captures the endpoint shapes and field paths of one tracker API
// revision. Profiles are immutable; the static table below is the full set of
// supported revisions, newest first.
type APIProfile struct {
	Name           string
	APIPath        string
	SearchEndpoint string
	FieldsEndpoint string
	// NativePaging means the search response carries startAt/total counters.
	// Without it the adapter emulates paging with an offset and stops on a
	// short page.
	NativePaging bool
	// Paths maps canonical field names to JSON paths within a raw issue.
	Paths map[string][]string
}

// Canonical field names used as keys in APIProfile.Paths.
const (
	fieldID          = "id"
	fieldType        = "type"
	fieldStatus      = "status"
	fieldResolution  = "resolution"
	fieldPriority    = "priority"
	fieldCreated     = "created"
	fieldSummary     = "summary"
	fieldDescription = "description"
)

// profiles is the fallback priority order: probe the newest first, step to
// the next older revision on a 404-class probe failure.
var profiles = []APIProfile{
	{
		Name:           "2",
		APIPath:        "rest/api/2/",
		SearchEndpoint: "search",
		FieldsEndpoint: "field",
		NativePaging:   true,
		Paths: map[string][]string{
			fieldID:          {"key"},
			fieldType:        {"fields", "issuetype", "name"},
			fieldStatus:      {"fields", "status", "name"},
			fieldResolution:  {"fields", "resolution", "name"},
			fieldPriority:    {"fields", "priority", "name"},
			fieldCreated:     {"fields", "created"},
			fieldSummary:     {"fields", "summary"},
			fieldDescription: {"fields", "description"},
		},
	},
	{
		Name:           "1",
		APIPath:        "rest/api/1/",
		SearchEndpoint: "search",
		FieldsEndpoint: "field",
		NativePaging:   false,
		Paths: map[string][]string{
			fieldID:          {"key"},
			fieldType:        {"fields", "issuetype", "name"},
			fieldStatus:      {"fields", "status", "name"},
			fieldResolution:  {"fields", "resolution", "name"},
			fieldPriority:    {"fields", "priority", "name"},
			fieldCreated:     {"fields", "created"},
			fieldSummary:     {"fields", "summary"},
			fieldDescription: {"fields", "description"},
		},
	},
	{
		// The 2.0.alpha1 revision wraps most field values in a {"value": ...}
		// envelope and has no changelog or paging counters.
		Name:           "2.0.alpha1",
		APIPath:        "rest/api/2.0.alpha1/",
		SearchEndpoint: "search",
		FieldsEndpoint: "field",
		NativePaging:   false,
		Paths: map[string][]string{
			fieldID:          {"key"},
			fieldType:        {"fields", "issuetype", "value", "name"},
			fieldStatus:      {"fields", "status", "value", "name"},
			fieldResolution:  {"fields", "resolution", "value", "name"},
			fieldPriority:    {"fields", "priority", "value", "name"},
			fieldCreated:     {"fields", "created", "value"},
			fieldSummary:     {"fields", "summary", "value"},
			fieldDescription: {"fields", "description", "value"},
		},
	},
}

func profileByName(name string) *APIProfile {
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i]
		}
	}
	return nil
}
