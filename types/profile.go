package types

import "encoding/json"

// Skill is a single skill label owned by a user.
type Skill struct {
	ID     int    `json:"id" db:"id"`
	UserID int    `json:"-" db:"user_id"`
	Skill  string `json:"skill" db:"skill"`
}

// Experience is a work or internship entry on a user's profile.
type Experience struct {
	ID          int    `json:"id" db:"id"`
	UserID      int    `json:"-" db:"user_id"`
	Title       string `json:"title" db:"title"`
	Company     string `json:"company" db:"company"`
	Duration    string `json:"duration" db:"duration"`
	Description string `json:"description" db:"description"`
}

// UserProject is a portfolio project listed on a user's profile. It is
// unrelated to the collaborative Project entity.
type UserProject struct {
	ID      int    `json:"id" db:"id"`
	UserID  int    `json:"-" db:"user_id"`
	Title   string `json:"title" db:"title"`
	Link    string `json:"link" db:"link"`
	Details string `json:"details" db:"details"`
}

// Certificate points at an uploaded certificate file.
type Certificate struct {
	ID     int    `json:"id" db:"id"`
	UserID int    `json:"userId" db:"user_id"`
	Title  string `json:"title" db:"title"`
	URL    string `json:"url" db:"url"`
}

// Profile is a user joined with every child collection.
type Profile struct {
	User                User             `json:"user"`
	Skills              []Skill          `json:"skills"`
	Experiences         []Experience     `json:"experiences"`
	Projects            []UserProject    `json:"projects"`
	Certificates        []Certificate    `json:"certificates"`
	CurrWorkingProjects []ProjectSummary `json:"currWorkingProjects"`
}

// ProfileUpdate is the replace-on-write payload of an update.
// Skills, Experiences and Projects replace the stored sets exactly;
// Certificates are appended.
type ProfileUpdate struct {
	Domain       string
	AboutMe      string
	CurrCGPA     *float64
	PhoneNumber  string
	Achievements json.RawMessage
	SocialLinks  json.RawMessage
	Skills       []string
	Experiences  []Experience
	Projects     []UserProject
	Certificates []Certificate
}

// Upload is an in-memory file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
