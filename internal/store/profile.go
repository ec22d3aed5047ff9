package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/types"
)

// ProfileRepository handles the child collections of a user profile.
type ProfileRepository struct {
	db db.DBTX
}

func NewProfileRepository(db db.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) ListSkills(ctx context.Context, userID int) ([]types.Skill, error) {
	const query = `SELECT id, user_id, skill FROM user_skills WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []types.Skill{}
	for rows.Next() {
		var skill types.Skill
		if err := rows.Scan(&skill.ID, &skill.UserID, &skill.Skill); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

// ReplaceSkills deletes every skill of the user and inserts the given set.
// Callers run it inside a transaction.
func (r *ProfileRepository) ReplaceSkills(ctx context.Context, userID int, skills []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_skills WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(skills) == 0 {
		return nil
	}

	args := make([]any, 0, len(skills)*2)
	for _, skill := range skills {
		args = append(args, userID, skill)
	}
	query := `INSERT INTO user_skills (user_id, skill) VALUES ` + valuesPlaceholders(len(skills), 2)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *ProfileRepository) ListExperiences(ctx context.Context, userID int) ([]types.Experience, error) {
	const query = `
		SELECT id, user_id, title, company, duration, description
		FROM experiences
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	experiences := []types.Experience{}
	for rows.Next() {
		var exp types.Experience
		if err := rows.Scan(&exp.ID, &exp.UserID, &exp.Title, &exp.Company, &exp.Duration, &exp.Description); err != nil {
			return nil, err
		}
		experiences = append(experiences, exp)
	}
	return experiences, rows.Err()
}

// ReplaceExperiences deletes every experience of the user and inserts the given set.
func (r *ProfileRepository) ReplaceExperiences(ctx context.Context, userID int, experiences []types.Experience) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM experiences WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(experiences) == 0 {
		return nil
	}

	args := make([]any, 0, len(experiences)*5)
	for _, exp := range experiences {
		args = append(args, userID, exp.Title, exp.Company, exp.Duration, exp.Description)
	}
	query := `INSERT INTO experiences (user_id, title, company, duration, description) VALUES ` +
		valuesPlaceholders(len(experiences), 5)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *ProfileRepository) ListUserProjects(ctx context.Context, userID int) ([]types.UserProject, error) {
	const query = `SELECT id, user_id, title, link, details FROM user_projects WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []types.UserProject{}
	for rows.Next() {
		var p types.UserProject
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Link, &p.Details); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ReplaceUserProjects deletes every portfolio project of the user and inserts the given set.
func (r *ProfileRepository) ReplaceUserProjects(ctx context.Context, userID int, projects []types.UserProject) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_projects WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(projects) == 0 {
		return nil
	}

	args := make([]any, 0, len(projects)*4)
	for _, p := range projects {
		args = append(args, userID, p.Title, p.Link, p.Details)
	}
	query := `INSERT INTO user_projects (user_id, title, link, details) VALUES ` + valuesPlaceholders(len(projects), 4)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *ProfileRepository) ListCertificates(ctx context.Context, userID int) ([]types.Certificate, error) {
	const query = `SELECT id, user_id, title, url FROM certificates WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	certificates := []types.Certificate{}
	for rows.Next() {
		var c types.Certificate
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.URL); err != nil {
			return nil, err
		}
		certificates = append(certificates, c)
	}
	return certificates, rows.Err()
}

// AddCertificates appends certificate rows and returns them with IDs set.
func (r *ProfileRepository) AddCertificates(ctx context.Context, userID int, certificates []types.Certificate) ([]types.Certificate, error) {
	if len(certificates) == 0 {
		return []types.Certificate{}, nil
	}

	args := make([]any, 0, len(certificates)*3)
	for _, c := range certificates {
		args = append(args, userID, c.Title, c.URL)
	}
	query := `INSERT INTO certificates (user_id, title, url) VALUES ` +
		valuesPlaceholders(len(certificates), 3) + ` RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	created := make([]types.Certificate, 0, len(certificates))
	for i := 0; rows.Next(); i++ {
		if i >= len(certificates) {
			break
		}
		c := certificates[i]
		c.UserID = userID
		if err := rows.Scan(&c.ID); err != nil {
			return nil, err
		}
		created = append(created, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ProfileRepository) GetCertificate(ctx context.Context, id int) (types.Certificate, error) {
	const query = `SELECT id, user_id, title, url FROM certificates WHERE id = $1`
	var c types.Certificate
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Title, &c.URL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Certificate{}, ErrNotFound
		}
		return types.Certificate{}, err
	}
	return c, nil
}

func (r *ProfileRepository) DeleteCertificate(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
