package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSource names the delivery source a log line belongs to.
	FieldSource = "source"
	// FieldReleaseKey is the stable release identifier (ISRC, ICPN, or GRid).
	FieldReleaseKey = "release_key"
	// FieldReleaseRef is the in-document release reference.
	FieldReleaseRef = "release_ref"
	// FieldXMLURL is the origin document of a delivery.
	FieldXMLURL = "xml_url"
	// FieldBucket names an object-store bucket.
	FieldBucket = "bucket"
	// FieldPrefix names an object-store prefix.
	FieldPrefix = "prefix"
	// FieldPassID correlates the log lines of one ingest or publish pass.
	FieldPassID = "pass_id"
	// FieldStatus carries a release status.
	FieldStatus = "status"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)
