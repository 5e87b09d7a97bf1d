package reconcile

import "strings"

// CRM stage names for people and projects.
const (
	PersonStageActive = "current"

	ProjectStageActive = "current"
	ProjectStageWon    = "won"
)

// A person is kept active regardless of order status. A person can have a
// pending order and a separate processed one, so no single order status can
// decide their stage.
var personStages = map[string]string{
	"processed": PersonStageActive,
	"pending":   PersonStageActive,
}

// Project stages by order status. The numeric keys are the store's
// order_status_id values as observed in the REST admin API.
var projectStages = map[string]string{
	"processed": ProjectStageWon,
	"pending":   ProjectStageActive,
	"15":        ProjectStageWon,    // processed
	"1":         ProjectStageActive, // pending
}

// PersonStage maps an order status to a person stage.
func PersonStage(status string) string {
	if stage, ok := personStages[strings.ToLower(status)]; ok {
		return stage
	}
	return PersonStageActive
}

// ProjectStage maps an order status to a project stage.
func ProjectStage(status string) string {
	if stage, ok := projectStages[strings.ToLower(status)]; ok {
		return stage
	}
	return ProjectStageActive
}
