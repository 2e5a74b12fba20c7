package domain

type EntityType string

const (
	EntityDeal            EntityType = "deal"
	EntityCompany         EntityType = "company"
	EntityCustomer        EntityType = "customer"
	EntityProduct         EntityType = "product"
	EntityProductCategory EntityType = "product-category"
)

type ChangeEvent struct {
	Type            EntityType `json:"type"`
	Action          string     `json:"action"`
	Object          Document   `json:"object"`
	UpdatedDocument Document   `json:"updatedDocument,omitempty"`
	NewData         Document   `json:"newData,omitempty"`
}

// Current returns the post-change document: updatedDocument, then newData,
// then the original object.
func (e ChangeEvent) Current() Document {
	if e.UpdatedDocument != nil {
		return e.UpdatedDocument
	}
	if e.NewData != nil {
		return e.NewData
	}
	return e.Object
}
