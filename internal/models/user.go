package models

import "time"

// Role is the closed set of user roles
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleDoctor      Role = "doctor"
	RoleNurse       Role = "nurse"
	RoleMedicalShop Role = "medical_shop"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDoctor, RoleNurse, RoleMedicalShop:
		return true
	}
	return false
}

// User represents the users table
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName     string     `gorm:"size:255;not null;index" json:"full_name"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         Role       `gorm:"size:32;not null;index" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	Speciality   string     `gorm:"size:255" json:"speciality,omitempty"`
	HospitalID   *uint      `gorm:"index" json:"hospital_id"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relationships
	Hospital *Hospital `gorm:"foreignKey:HospitalID" json:"hospital,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BelongsTo reports whether the user is affiliated with hospitalID
func (u *User) BelongsTo(hospitalID uint) bool {
	return u.HospitalID != nil && *u.HospitalID == hospitalID
}

// UserFilter narrows ListUsers queries
type UserFilter struct {
	HospitalID uint
	Role       Role
	IsActive   *bool
}
