package model

// IssueType is the classified kind of a tracked item.
type IssueType string

const (
	TypeDefect      IssueType = "defect"
	TypeRequirement IssueType = "requirement"
	TypeOther       IssueType = "other"
	TypeUnknown     IssueType = "unknown"
)

// UnknownSentinel substitutes for optional issue fields missing from the
// source data, so a sparse issue never fails a whole page.
const UnknownSentinel = "unknown"

// Issue is the adapter-normalized view of one tracked item. It lives only
// for the duration of an aggregation pass and is never persisted.
type Issue struct {
	ID         string
	Type       IssueType // set by the classifier, TypeUnknown until then
	TypeName   string    // raw issue type name from the tracker
	Status     string
	Resolution string
	Priority   string
	CreatedAt  string // source date string, parsed by the measurement factory
	TextBody   string // summary and description concatenated
}

// FieldInfo describes one tracker field from the metadata endpoint.
type FieldInfo struct {
	ID     string
	Type   string
	Values []string // enumerated values, when the field declares them
}

// FieldMetadata maps field names to their descriptions.
type FieldMetadata map[string]FieldInfo
