package domain

const RoleAdmin = "admin"

type User struct {
	ID          string `json:"_id"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	IsOwner     bool   `json:"isOwner,omitempty"`
	SessionCode string `json:"sessionCode,omitempty"`
}
