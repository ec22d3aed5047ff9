package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/types"
)

const projectColumns = `
	p.id, p.pname, p.pdescription, p.pdefinition, p.phost, p.team_size,
	p.pduration, p.project_privacy, p.required_domain, p.tech_stack,
	p.documentation, p.institute, p.department, p.created_at, p.updated_at`

// ProjectRepository handles persistence for projects, members and mentors.
type ProjectRepository struct {
	db db.DBTX
}

func NewProjectRepository(db db.DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func scanProject(row rowScanner) (types.Project, error) {
	var (
		project       types.Project
		domains       pq.StringArray
		techStack     pq.StringArray
		documentation pq.StringArray
	)
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Definition,
		&project.Host,
		&project.TeamSize,
		&project.Duration,
		&project.Privacy,
		&domains,
		&techStack,
		&documentation,
		&project.Institute,
		&project.Department,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	project.RequiredDomains = nonNilStrings(domains)
	project.TechStack = nonNilStrings(techStack)
	project.Documentation = nonNilStrings(documentation)
	return project, nil
}

func (r *ProjectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]types.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []types.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.RequiredDomains = nonNilStrings(project.RequiredDomains)
	project.TechStack = nonNilStrings(project.TechStack)
	project.Documentation = nonNilStrings(project.Documentation)

	const query = `
		INSERT INTO projects (
			pname, pdescription, pdefinition, phost, team_size, pduration,
			project_privacy, required_domain, tech_stack, documentation,
			institute, department, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.Definition,
		project.Host,
		project.TeamSize,
		project.Duration,
		project.Privacy,
		pq.Array(project.RequiredDomains),
		pq.Array(project.TechStack),
		pq.Array(project.Documentation),
		project.Institute,
		project.Department,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, mapError(err)
	}
	return project, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	query := `SELECT` + projectColumns + ` FROM projects p WHERE p.id = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

// Update overwrites every mutable column of the project.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET pname = $1,
			pdescription = $2,
			pdefinition = $3,
			team_size = $4,
			pduration = $5,
			project_privacy = $6,
			required_domain = $7,
			tech_stack = $8,
			documentation = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.Definition,
		project.TeamSize,
		project.Duration,
		project.Privacy,
		pq.Array(nonNilStrings(project.RequiredDomains)),
		pq.Array(nonNilStrings(project.TechStack)),
		pq.Array(nonNilStrings(project.Documentation)),
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// likeEscaper makes a search term match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns projects matching filter, newest first.
func (r *ProjectRepository) List(ctx context.Context, filter types.ProjectFilter) ([]types.Project, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	from := ` FROM projects p`
	if filter.HostRole != "" {
		from += ` JOIN users u ON u.charusat_id = p.phost`
		conditions = append(conditions, "u.role = "+arg(filter.HostRole))
	}
	if len(filter.Domains) > 0 {
		conditions = append(conditions, "p.required_domain && "+arg(pq.Array(filter.Domains)))
	}
	if filter.MinTeamSize != nil {
		conditions = append(conditions, "p.team_size >= "+arg(*filter.MinTeamSize))
	}
	if filter.MaxTeamSize != nil {
		conditions = append(conditions, "p.team_size <= "+arg(*filter.MaxTeamSize))
	}
	if filter.Privacy != "" {
		conditions = append(conditions, "p.project_privacy = "+arg(filter.Privacy))
	}
	if filter.Search != "" {
		pattern := arg("%" + likeEscaper.Replace(filter.Search) + "%")
		conditions = append(conditions, "(p.pname ILIKE "+pattern+` ESCAPE '\' OR p.pdescription ILIKE `+pattern+` ESCAPE '\')`)
	}

	query := `SELECT` + projectColumns + from
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`
	return r.queryProjects(ctx, query, args...)
}

// ListByIDs returns the projects with the given IDs, newest first.
func (r *ProjectRepository) ListByIDs(ctx context.Context, ids []int) ([]types.Project, error) {
	if len(ids) == 0 {
		return []types.Project{}, nil
	}
	query := `SELECT` + projectColumns + ` FROM projects p WHERE p.id = ANY($1) ORDER BY p.created_at DESC, p.id DESC`
	return r.queryProjects(ctx, query, pq.Array(int64sFromInt(ids)))
}

// LatestHostedBy returns the most recently created project hosted by host.
func (r *ProjectRepository) LatestHostedBy(ctx context.Context, host string) (types.Project, error) {
	query := `SELECT` + projectColumns + ` FROM projects p WHERE p.phost = $1 ORDER BY p.created_at DESC, p.id DESC LIMIT 1`
	return scanProject(r.db.QueryRowContext(ctx, query, host))
}

// AddMember inserts a membership row unless one already exists for the
// (charusatId, project) pair. It reports whether a row was inserted.
func (r *ProjectRepository) AddMember(ctx context.Context, member types.Member) (bool, error) {
	const query = `
		INSERT INTO members (project_id, charusat_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (charusat_id, project_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, member.ProjectID, member.CharusatID, member.Role)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ProjectRepository) IsMember(ctx context.Context, projectID int, charusatID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM members WHERE project_id = $1 AND charusat_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, projectID, charusatID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListMembers returns the members of a project with display names resolved
// from users.
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int) ([]types.Member, error) {
	const query = `
		SELECT m.id, m.project_id, m.charusat_id, m.role,
			COALESCE(TRIM(u.first_name || ' ' || u.last_name), '')
		FROM members m
		LEFT JOIN users u ON u.charusat_id = m.charusat_id
		WHERE m.project_id = $1
		ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []types.Member{}
	for rows.Next() {
		var m types.Member
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.CharusatID, &m.Role, &m.Name); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ProjectRepository) AddMentor(ctx context.Context, mentor types.Mentor) (types.Mentor, error) {
	const query = `
		INSERT INTO mentors (project_id, name, charusat_id, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx, query, mentor.ProjectID, mentor.Name, mentor.CharusatID, mentor.Email,
	).Scan(&mentor.ID); err != nil {
		return types.Mentor{}, err
	}
	return mentor, nil
}

func (r *ProjectRepository) ListMentors(ctx context.Context, projectID int) ([]types.Mentor, error) {
	const query = `SELECT id, project_id, name, charusat_id, email FROM mentors WHERE project_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mentors := []types.Mentor{}
	for rows.Next() {
		var m types.Mentor
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.CharusatID, &m.Email); err != nil {
			return nil, err
		}
		mentors = append(mentors, m)
	}
	return mentors, rows.Err()
}
