package user

import "time"

// User carries both the role foreign key and a comma-joined role-name list.
// The list is what the SuperAdmin uniqueness scan matches against; only the
// assignment service writes either field.
type User struct {
	ID           int64      `gorm:"primaryKey"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	Name         string     `gorm:"column:name;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	RoleID       *string    `gorm:"column:role_id"`
	Roles        string     `gorm:"column:roles;default:Users"`
	Status       string     `gorm:"column:status;default:inactive"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}

const (
	StatusActive     = "active"
	StatusInactive   = "inactive"
	StatusRestricted = "restricted"
)
