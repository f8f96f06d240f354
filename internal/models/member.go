package models

// Member is a congregation member row. AccountID links the member to an
// identity-provider account; members without one never receive digests.
type Member struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AccountID string `json:"accountId,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
}

// Recipient is a derived email target. Recipients are never persisted;
// duplicate emails across roles are passed through to the delivery provider
// as-is.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Member roles used by the recipient rules.
const (
	RoleElder   = "Elder"
	RoleApostle = "Apostle"
	RoleDeacon  = "Deacon"
)
