package users

import "time"

// User maps an external identity to a premium flag. Rows are created
// lazily on first authenticated interaction and flipped to premium by the
// billing webhook.
type User struct {
	ExternalID string    `gorm:"column:external_id;primaryKey;size:190;not null" json:"external_id"`
	IsPremium  bool      `gorm:"column:is_premium;not null;default:false" json:"is_premium"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
