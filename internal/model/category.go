package model

// ServiceCategory groups services for browsing.
type ServiceCategory struct {
	Base
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Icon        string `db:"icon" json:"icon,omitempty"`
	Active      bool   `db:"active" json:"active"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	Icon        string `json:"icon" binding:"max=200"`
}
