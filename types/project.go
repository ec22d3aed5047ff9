package types

import "time"

// Privacy values of a project.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// Project is a collaborative student project.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	Name        string `json:"pname" db:"pname"`
	Description string `json:"pdescription" db:"pdescription"`
	Definition  string `json:"pdefinition" db:"pdefinition"`

	// Host is the charusatId of the creator, the only user allowed to
	// mutate the project.
	Host string `json:"phost" db:"phost"`

	TeamSize int    `json:"teamSize" db:"team_size"`
	Duration string `json:"pduration" db:"pduration"`
	Privacy  string `json:"projectPrivacy" db:"project_privacy"`

	RequiredDomains []string `json:"requiredDomain" db:"required_domain"`
	TechStack       []string `json:"techStack" db:"tech_stack"`

	// Documentation lists the public paths of uploaded documents.
	Documentation []string `json:"documentation" db:"documentation"`

	Institute  string `json:"institute" db:"institute"`
	Department string `json:"department" db:"department"`

	Members []Member `json:"members,omitempty"`
	Mentors []Mentor `json:"mentors,omitempty"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProjectSummary is the compact view used inside profiles.
type ProjectSummary struct {
	ID          int      `json:"id"`
	Name        string   `json:"pname"`
	Description string   `json:"pdescription"`
	Host        string   `json:"phost"`
	TeamSize    int      `json:"teamSize"`
	TechStack   []string `json:"techStack"`
	Duration    string   `json:"pduration"`
}

// Summary returns the compact view of the project.
func (p Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Host:        p.Host,
		TeamSize:    p.TeamSize,
		TechStack:   p.TechStack,
		Duration:    p.Duration,
	}
}

// Member links a user (by charusatId) to a project.
type Member struct {
	ID         int    `json:"id" db:"id"`
	ProjectID  int    `json:"projectId" db:"project_id"`
	CharusatID string `json:"charusatId" db:"charusat_id"`
	Role       string `json:"role" db:"role"`

	// Name is resolved from the users table on detail reads.
	Name string `json:"name,omitempty"`
}

// Mentor is an advisor attached to a project.
type Mentor struct {
	ID         int    `json:"id" db:"id"`
	ProjectID  int    `json:"projectId" db:"project_id"`
	Name       string `json:"name" db:"name"`
	CharusatID string `json:"charusatId" db:"charusat_id"`
	Email      string `json:"email" db:"email"`
}

// ProjectInput holds the fields accepted on creation.
type ProjectInput struct {
	Name            string
	Description     string
	Definition      string
	TeamSize        int
	Duration        string
	Privacy         string
	RequiredDomains []string
	TechStack       []string
}

// ProjectUpdate holds optional field changes; nil means unchanged.
type ProjectUpdate struct {
	Name            *string
	Description     *string
	Definition      *string
	TeamSize        *int
	Duration        *string
	Privacy         *string
	RequiredDomains []string
	TechStack       []string
}

// ProjectFilter narrows getAllProjects. Zero values disable a filter.
type ProjectFilter struct {
	HostRole    string
	Domains     []string
	MinTeamSize *int
	MaxTeamSize *int
	Privacy     string
	Search      string
}
