package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// AccountStatus toggles whether a student may sign in.
type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

// User is the identity and profile record stored in the users table. An ADMIN row is the institution itself;
// a STUDENT row always carries the owning admin's id in InstitutionID.
type User struct {
	ID              string        `db:"id" json:"id"`
	Email           string        `db:"email" json:"email"`
	PasswordHash    string        `db:"password_hash" json:"-"`
	Role            UserRole      `db:"role" json:"role"`
	InstitutionID   *string       `db:"institution_id" json:"institution_id,omitempty"`
	InstitutionName string        `db:"institution_name" json:"institution_name,omitempty"`
	StudentName     string        `db:"student_name" json:"student_name,omitempty"`
	ParentName      string        `db:"parent_name" json:"parent_name,omitempty"`
	StudentCode     string        `db:"student_code" json:"student_code,omitempty"`
	Phone           string        `db:"phone" json:"phone,omitempty"`
	Address         string        `db:"address" json:"address,omitempty"`
	Status          AccountStatus `db:"status" json:"status"`
	PushToken       *string       `db:"push_token" json:"-"`
	LastLogin       *time.Time    `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the name shown for the account in lists and invoices.
func (u *User) DisplayName() string {
	if u.Role == RoleAdmin {
		return u.InstitutionName
	}
	return u.StudentName
}

// Institution returns the id of the institution that owns the account. Admins own themselves.
func (u *User) Institution() string {
	if u.Role == RoleAdmin || u.InstitutionID == nil {
		return u.ID
	}
	return *u.InstitutionID
}

// HasPushToken reports whether the user registered a device for push notifications.
func (u *User) HasPushToken() bool {
	return u.PushToken != nil && *u.PushToken != ""
}

// StudentCategory is the status filter applied to student lists.
type StudentCategory string

const (
	StudentCategoryAll      StudentCategory = "all"
	StudentCategoryActive   StudentCategory = "active"
	StudentCategoryInactive StudentCategory = "inactive"
)

// StudentFilter captures listing criteria for an institution's students.
type StudentFilter struct {
	Search   string
	Category StudentCategory
	Page     int
	PageSize int
}

// CreateStudentRequest is the admin-initiated student registration payload.
type CreateStudentRequest struct {
	Email       string `json:"email" validate:"required,email"`
	StudentName string `json:"student_name" validate:"required"`
	ParentName  string `json:"parent_name"`
	StudentCode string `json:"student_code"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Password    string `json:"password" validate:"omitempty,min=6"`
}

// CreateStudentResponse returns the new account and, when generated, its one-time password.
type CreateStudentResponse struct {
	Student           *User  `json:"student"`
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

// UpdateStatusRequest toggles an account's status.
type UpdateStatusRequest struct {
	Status AccountStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

// UpdateProfileRequest edits the caller's own profile fields.
type UpdateProfileRequest struct {
	InstitutionName *string `json:"institution_name"`
	StudentName     *string `json:"student_name"`
	ParentName      *string `json:"parent_name"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
}

// PushTokenRequest registers the caller's device push token. An empty token disables push.
type PushTokenRequest struct {
	Token string `json:"token" validate:"omitempty,max=255"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
