package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
)

// ProfileRepository is the in-memory store of profile collections.
type ProfileRepository struct {
	s *Store
}

func (r *ProfileRepository) ListSkills(ctx context.Context, userID int) ([]types.Skill, error) {
	if err := r.s.lock("ListSkills"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return ownedBy(r.s.data.skills, func(v types.Skill) bool { return v.UserID == userID }), nil
}

func (r *ProfileRepository) ReplaceSkills(ctx context.Context, userID int, skills []string) error {
	if err := r.s.lock("ReplaceSkills"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	rows := slices.DeleteFunc(slices.Clone(r.s.data.skills), func(v types.Skill) bool { return v.UserID == userID })
	for _, skill := range skills {
		rows = append(rows, types.Skill{ID: r.s.data.nextID("user_skills"), UserID: userID, Skill: skill})
	}
	r.s.data.skills = rows
	return nil
}

func (r *ProfileRepository) ListExperiences(ctx context.Context, userID int) ([]types.Experience, error) {
	if err := r.s.lock("ListExperiences"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return ownedBy(r.s.data.experiences, func(v types.Experience) bool { return v.UserID == userID }), nil
}

func (r *ProfileRepository) ReplaceExperiences(ctx context.Context, userID int, experiences []types.Experience) error {
	if err := r.s.lock("ReplaceExperiences"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	rows := slices.DeleteFunc(slices.Clone(r.s.data.experiences), func(v types.Experience) bool { return v.UserID == userID })
	for _, exp := range experiences {
		exp.ID = r.s.data.nextID("experiences")
		exp.UserID = userID
		rows = append(rows, exp)
	}
	r.s.data.experiences = rows
	return nil
}

func (r *ProfileRepository) ListUserProjects(ctx context.Context, userID int) ([]types.UserProject, error) {
	if err := r.s.lock("ListUserProjects"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return ownedBy(r.s.data.userProjects, func(v types.UserProject) bool { return v.UserID == userID }), nil
}

func (r *ProfileRepository) ReplaceUserProjects(ctx context.Context, userID int, projects []types.UserProject) error {
	if err := r.s.lock("ReplaceUserProjects"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	rows := slices.DeleteFunc(slices.Clone(r.s.data.userProjects), func(v types.UserProject) bool { return v.UserID == userID })
	for _, p := range projects {
		p.ID = r.s.data.nextID("user_projects")
		p.UserID = userID
		rows = append(rows, p)
	}
	r.s.data.userProjects = rows
	return nil
}

func (r *ProfileRepository) ListCertificates(ctx context.Context, userID int) ([]types.Certificate, error) {
	if err := r.s.lock("ListCertificates"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	certificates := []types.Certificate{}
	for _, c := range r.s.data.certificates {
		if c.UserID == userID {
			certificates = append(certificates, c)
		}
	}
	sort.Slice(certificates, func(i, j int) bool { return certificates[i].ID < certificates[j].ID })
	return certificates, nil
}

func (r *ProfileRepository) AddCertificates(ctx context.Context, userID int, certificates []types.Certificate) ([]types.Certificate, error) {
	if err := r.s.lock("AddCertificates"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	created := make([]types.Certificate, 0, len(certificates))
	for _, c := range certificates {
		c.ID = r.s.data.nextID("certificates")
		c.UserID = userID
		r.s.data.certificates[c.ID] = c
		created = append(created, c)
	}
	return created, nil
}

func (r *ProfileRepository) GetCertificate(ctx context.Context, id int) (types.Certificate, error) {
	if err := r.s.lock("GetCertificate"); err != nil {
		return types.Certificate{}, err
	}
	defer r.s.mu.Unlock()

	c, ok := r.s.data.certificates[id]
	if !ok {
		return types.Certificate{}, store.ErrNotFound
	}
	return c, nil
}

func (r *ProfileRepository) DeleteCertificate(ctx context.Context, id int) error {
	if err := r.s.lock("DeleteCertificate"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.certificates[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.data.certificates, id)
	return nil
}

func ownedBy[T any](rows []T, keep func(T) bool) []T {
	out := []T{}
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}
