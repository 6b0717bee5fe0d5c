package instrumentation

import "strings"

// Gmail operation names used for google_api_* metrics and spans.
const (
	OperationListMessages  = "messages.list"
	OperationGetMessage    = "messages.get"
	OperationBatchModify   = "messages.batchModify"
	OperationModifyMessage = "messages.modify"
	OperationListLabels    = "labels.list"
	OperationCreateLabel   = "labels.create"
)

const maxLabelValueLen = 64

// LabelValue turns a user-configured Gmail label name into a bounded metric
// label value. Label names come from configuration, so the set is small, but
// they are free text and may be arbitrarily long.
//
//	LabelValue("AI/Low Priority") // "ai/low_priority"
//	LabelValue("")                // "unknown"
func LabelValue(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "unknown"
	}
	name = strings.Join(strings.Fields(name), "_")
	if len(name) > maxLabelValueLen {
		name = name[:maxLabelValueLen]
	}
	return name
}

// OutcomeValue maps an empty outcome to "unknown".
func OutcomeValue(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
