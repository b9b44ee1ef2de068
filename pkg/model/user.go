package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAlumni  Role = "alumni"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAlumni:
		return true
	}
	return false
}

// User is a directory entry. The slot service only reads users: identity
// is established upstream at the gateway, the directory is consulted to
// resolve slot owners for listings.
type User struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	FullName  string    `json:"full_name" bson:"full_name" validate:"required,min=2,max=120"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Role      Role      `json:"role" bson:"role" validate:"required,oneof=student faculty alumni"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (u *User) OwnerInfo() OwnerInfo {
	return OwnerInfo{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
	}
}
