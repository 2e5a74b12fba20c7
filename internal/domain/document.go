package domain

// Document is an arbitrary CRM document as received from the backend.
type Document map[string]any

// Get returns the raw value stored under key, or nil.
func (d Document) Get(key string) any {
	if d == nil {
		return nil
	}
	return d[key]
}
