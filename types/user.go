package types

import (
	"encoding/json"
	"time"
)

// Roles a user can register with.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
)

// User represents an account in the system.
// It carries identity, credentials, pending codes and the scalar profile fields.
type User struct {
	// ID is the internal numeric identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the institutional email address used to sign in.
	Email string `json:"email" db:"email"`

	// CharusatID is the institutional identifier. It is the key used for
	// project hosts, members and mentors instead of ID.
	CharusatID string `json:"charusatId" db:"charusat_id"`

	FirstName  string `json:"firstName" db:"first_name"`
	LastName   string `json:"lastName" db:"last_name"`
	Role       string `json:"role" db:"role"`
	Institute  string `json:"institute" db:"institute"`
	Department string `json:"department" db:"department"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Verified is set once the registration code has been confirmed.
	Verified bool `json:"verified" db:"verified"`

	// VerificationCode is the pending registration code, empty once consumed.
	VerificationCode      string     `json:"-" db:"verification_code"`
	VerificationExpiresAt *time.Time `json:"-" db:"expires_at"`

	// ResetCode is the pending password reset code, empty when none is active.
	ResetCode      string     `json:"-" db:"reset_code"`
	ResetExpiresAt *time.Time `json:"-" db:"reset_expires_at"`

	Domain       string   `json:"domain" db:"domain"`
	AboutMe      string   `json:"aboutMe" db:"about_me"`
	CurrCGPA     *float64 `json:"currCgpa" db:"curr_cgpa"`
	PhoneNumber  string   `json:"phoneNumber" db:"phone_number"`
	ProfilePhoto string   `json:"profilePhoto" db:"profile_photo"`

	// Achievements and SocialLinks are free-form JSON documents supplied by
	// the frontend.
	Achievements json.RawMessage `json:"achievements" db:"achievements"`
	SocialLinks  json.RawMessage `json:"socialLinks" db:"social_links"`

	// CurrWorkingProjects lists the IDs of projects the user is a member of.
	CurrWorkingProjects []int `json:"currWorkingProjects" db:"curr_working_projects"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName joins the first and last name.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Claims is the identity carried by a session token.
type Claims struct {
	UserID     int    `json:"id"`
	CharusatID string `json:"charusatId"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}
