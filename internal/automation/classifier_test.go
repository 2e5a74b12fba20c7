package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

func TestClassify_DealStageChanged(t *testing.T) {
	event := domain.ChangeEvent{
		Type:    domain.EntityDeal,
		Action:  "update",
		Object:  domain.Document{"_id": "deal-1", "stageId": "A"},
		NewData: domain.Document{"stageId": "B"},
	}

	decision := Classify(event)
	require.NotNil(t, decision)
	assert.Equal(t, domain.KindChangeDeal, decision.Kind)
	assert.Equal(t, "A", decision.Body["sourceStageId"])
	assert.Equal(t, "B", decision.Body["destinationStageId"])
	assert.Equal(t, event.Object, decision.Body["deal"])
}

func TestClassify_DealUpdatedDocumentWinsOverNewData(t *testing.T) {
	decision := Classify(domain.ChangeEvent{
		Type:            domain.EntityDeal,
		Object:          domain.Document{"stageId": "A"},
		NewData:         domain.Document{"stageId": "B"},
		UpdatedDocument: domain.Document{"stageId": "C"},
	})
	require.NotNil(t, decision)
	assert.Equal(t, "C", decision.Body["destinationStageId"])
}

func TestClassify_DealWithoutStageChange(t *testing.T) {
	tests := []struct {
		name  string
		event domain.ChangeEvent
	}{
		{
			name: "same stage",
			event: domain.ChangeEvent{
				Type:    domain.EntityDeal,
				Object:  domain.Document{"stageId": "A"},
				NewData: domain.Document{"stageId": "A"},
			},
		},
		{
			name: "both unset",
			event: domain.ChangeEvent{
				Type:    domain.EntityDeal,
				Object:  domain.Document{},
				NewData: domain.Document{"name": "renamed"},
			},
		},
		{
			name: "destination empty",
			event: domain.ChangeEvent{
				Type:    domain.EntityDeal,
				Object:  domain.Document{"stageId": "A"},
				NewData: domain.Document{"stageId": ""},
			},
		},
		{
			name: "no new data compares object with itself",
			event: domain.ChangeEvent{
				Type:   domain.EntityDeal,
				Object: domain.Document{"stageId": "A"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Classify(tt.event))
		})
	}
}

func TestClassify_DealStageTypeChange(t *testing.T) {
	decision := Classify(domain.ChangeEvent{
		Type:    domain.EntityDeal,
		Object:  domain.Document{"stageId": float64(1)},
		NewData: domain.Document{"stageId": "1"},
	})
	require.NotNil(t, decision)
	assert.Equal(t, float64(1), decision.Body["sourceStageId"])
	assert.Equal(t, "1", decision.Body["destinationStageId"])
}

func TestClassify_DealFromUnsetStage(t *testing.T) {
	decision := Classify(domain.ChangeEvent{
		Type:    domain.EntityDeal,
		Object:  domain.Document{},
		NewData: domain.Document{"stageId": "B"},
	})
	require.NotNil(t, decision)
	assert.Nil(t, decision.Body["sourceStageId"])
	assert.Equal(t, "B", decision.Body["destinationStageId"])
}

func TestClassify_Lists(t *testing.T) {
	object := domain.Document{"code": "OLD-1"}
	updated := domain.Document{"code": "NEW-1"}

	tests := []struct {
		entity     domain.EntityType
		wantKind   string
		wantAction string
	}{
		{domain.EntityCompany, domain.KindChangeListCompany, "update"},
		{domain.EntityCustomer, domain.KindChangeListCustomer, "update"},
		{domain.EntityProduct, domain.KindChangeListProduct, "update"},
		{domain.EntityProductCategory, domain.KindChangeListProduct, "updateCategory"},
	}

	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			decision := Classify(domain.ChangeEvent{
				Type:            tt.entity,
				Action:          "update",
				Object:          object,
				UpdatedDocument: updated,
			})
			require.NotNil(t, decision)
			assert.Equal(t, tt.wantKind, decision.Kind)
			assert.Equal(t, tt.wantAction, decision.Body["action"])
			assert.Equal(t, "OLD-1", decision.Body["oldCode"])
			assert.Equal(t, updated, decision.Body["doc"])
		})
	}
}

func TestClassify_ListDocFallsBackToObject(t *testing.T) {
	object := domain.Document{"code": "C-1"}
	decision := Classify(domain.ChangeEvent{Type: domain.EntityCompany, Action: "create", Object: object})
	require.NotNil(t, decision)
	assert.Equal(t, object, decision.Body["doc"])
}

func TestClassify_UnknownType(t *testing.T) {
	assert.Nil(t, Classify(domain.ChangeEvent{Type: "ticket", Action: "update"}))
}
