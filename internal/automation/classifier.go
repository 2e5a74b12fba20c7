package automation

import (
	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// Classify decides whether a change event is relevant to automation and, if
// so, describes what changed. It returns nil for irrelevant events.
func Classify(event domain.ChangeEvent) *domain.AutomationDecision {
	switch event.Type {
	case domain.EntityDeal:
		return changeDeal(event)
	case domain.EntityCompany:
		return changeList(domain.KindChangeListCompany, event.Action, event)
	case domain.EntityCustomer:
		return changeList(domain.KindChangeListCustomer, event.Action, event)
	case domain.EntityProduct:
		return changeList(domain.KindChangeListProduct, event.Action, event)
	case domain.EntityProductCategory:
		// Categories share the product kind; the action carries the distinction.
		return changeList(domain.KindChangeListProduct, event.Action+"Category", event)
	default:
		return nil
	}
}

// changeDeal only fires when the deal moved to a different, non-empty stage.
// Stage ids are compared as stored, so 1 and "1" are different stages.
func changeDeal(event domain.ChangeEvent) *domain.AutomationDecision {
	destinationStageID := event.Current().Get("stageId")
	if isBlank(destinationStageID) || sameValue(destinationStageID, event.Object.Get("stageId")) {
		return nil
	}

	return &domain.AutomationDecision{
		Kind: domain.KindChangeDeal,
		Body: map[string]any{
			"deal":               event.Object,
			"sourceStageId":      event.Object.Get("stageId"),
			"destinationStageId": destinationStageID,
		},
	}
}

func changeList(kind, action string, event domain.ChangeEvent) *domain.AutomationDecision {
	return &domain.AutomationDecision{
		Kind: kind,
		Body: map[string]any{
			"action":  action,
			"oldCode": event.Object.Get("code"),
			"doc":     event.Current(),
		},
	}
}

func isBlank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	default:
		return false
	}
}

// sameValue reports whether a and b hold the same scalar of the same type.
// Maps and slices never compare equal.
func sameValue(a, b any) bool {
	switch a.(type) {
	case string, bool, float64, int, int32, int64:
		return a == b
	default:
		return false
	}
}
