package domain

const (
	KindChangeDeal         = "changeDeal"
	KindChangeListCompany  = "changeListCompany"
	KindChangeListCustomer = "changeListCustomer"
	KindChangeListProduct  = "changeListProduct"
)

type AutomationDecision struct {
	Kind string         `json:"kind"`
	Body map[string]any `json:"body"`
}
