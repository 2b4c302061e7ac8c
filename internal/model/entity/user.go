package entity

import (
	"time"
)

// Role names
const (
	RoleSuperadmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleTester     = "TESTER"
	RoleNormal     = "NORMAL"
)

// User account, keyed by UUID and identified by mobile number.
type User struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	FirstName  string     `json:"first_name" gorm:"size:50"`
	MiddleName string     `json:"middle_name" gorm:"size:50"`
	LastName   string     `json:"last_name" gorm:"size:50"`
	DOB        *time.Time `json:"dob" gorm:"type:date"`
	Mobile     string     `json:"mobile" gorm:"size:15;not null;uniqueIndex"`
	Aadhar     string     `json:"aadhar" gorm:"size:12"`
	Gender     string     `json:"gender" gorm:"size:10"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Roles           []Role   `json:"roles,omitempty" gorm:"many2many:user_roles;"`
	EditableSurveys []Survey `json:"-" gorm:"many2many:survey_editors;"`
}

func (User) TableName() string {
	return "users"
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RoleNames returns the user's role names for token claims.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role is a named capability tag (SUPERADMIN, ADMIN, TESTER, NORMAL).
type Role struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:50;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Users []User `json:"-" gorm:"many2many:user_roles;"`
}

func (Role) TableName() string {
	return "roles"
}
