// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - ExternalID / external_id: The subject issued by the identity provider (Google "sub"),
//     or a synthesized "manual_<uuid>" value for accounts created by an administrator

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a principal in the directory.
//
// Users are never physically removed. A soft delete sets IsDeleted and
// DeletedAt; deleted users are hidden from every listing, count and
// uniqueness check but can still be loaded by ID for audit purposes.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email  string             `bson:"email" json:"email"`

	// ExternalID is provider-internal and never leaves the service.
	ExternalID string `bson:"external_id" json:"-"`

	Role        Role       `bson:"role" json:"role"`
	Department  Department `bson:"department" json:"department"`
	PhoneNumber string     `bson:"phone_number" json:"phoneNumber"`
	JoinDate    time.Time  `bson:"join_date" json:"joinDate"`
	LastLogin   *time.Time `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	IsActive    bool       `bson:"is_active" json:"isActive"`

	IsDeleted bool       `bson:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Role is the closed set of roles a user can hold.
type Role string

// User roles
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// AllRoles returns all valid user roles.
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleEditor,
		RoleViewer,
	}
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	for _, v := range AllRoles() {
		if v == r {
			return true
		}
	}
	return false
}

// Department is the closed set of departments a user can belong to.
type Department string

// Departments
const (
	DeptIT         Department = "IT"
	DeptHR         Department = "HR"
	DeptFinance    Department = "Finance"
	DeptMarketing  Department = "Marketing"
	DeptOperations Department = "Operations"
)

// DefaultDepartment is assigned to accounts created on first login.
const DefaultDepartment = DeptIT

// AllDepartments returns all valid departments.
func AllDepartments() []Department {
	return []Department{
		DeptIT,
		DeptHR,
		DeptFinance,
		DeptMarketing,
		DeptOperations,
	}
}

// IsValid reports whether d is one of the defined departments.
func (d Department) IsValid() bool {
	for _, v := range AllDepartments() {
		if v == d {
			return true
		}
	}
	return false
}

// PlaceholderPhone is stored for accounts created on first login, which
// have no phone number yet.
const PlaceholderPhone = "+1234567890"

// ManualExternalIDPrefix marks external IDs synthesized for accounts that
// were created directly rather than through the identity provider.
const ManualExternalIDPrefix = "manual_"
