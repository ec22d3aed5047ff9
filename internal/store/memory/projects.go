package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
)

// ProjectRepository is the in-memory store of projects, members and mentors.
type ProjectRepository struct {
	s *Store
}

func cloneProject(p types.Project) types.Project {
	p.RequiredDomains = append([]string{}, p.RequiredDomains...)
	p.TechStack = append([]string{}, p.TechStack...)
	p.Documentation = append([]string{}, p.Documentation...)
	p.Members = nil
	p.Mentors = nil
	return p
}

// newestFirst orders projects like the SQL repository.
func newestFirst(projects []types.Project) {
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.After(projects[j].CreatedAt)
		}
		return projects[i].ID > projects[j].ID
	})
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	if err := r.s.lock("CreateProject"); err != nil {
		return types.Project{}, err
	}
	defer r.s.mu.Unlock()

	now := time.Now()
	project = cloneProject(project)
	project.ID = r.s.data.nextID("projects")
	project.CreatedAt = now
	project.UpdatedAt = now
	r.s.data.projects[project.ID] = project
	return project, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	if err := r.s.lock("GetProject"); err != nil {
		return types.Project{}, err
	}
	defer r.s.mu.Unlock()

	project, ok := r.s.data.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return cloneProject(project), nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	if err := r.s.lock("UpdateProject"); err != nil {
		return types.Project{}, err
	}
	defer r.s.mu.Unlock()

	current, ok := r.s.data.projects[project.ID]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	project = cloneProject(project)
	project.Host = current.Host
	project.Institute = current.Institute
	project.Department = current.Department
	project.CreatedAt = current.CreatedAt
	project.UpdatedAt = time.Now()
	r.s.data.projects[project.ID] = project
	return project, nil
}

func (r *ProjectRepository) List(ctx context.Context, filter types.ProjectFilter) ([]types.Project, error) {
	if err := r.s.lock("ListProjects"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	projects := []types.Project{}
	for _, p := range r.s.data.projects {
		if filter.HostRole != "" && r.hostRole(p.Host) != filter.HostRole {
			continue
		}
		if len(filter.Domains) > 0 && !slices.ContainsFunc(filter.Domains, func(d string) bool {
			return slices.Contains(p.RequiredDomains, d)
		}) {
			continue
		}
		if filter.MinTeamSize != nil && p.TeamSize < *filter.MinTeamSize {
			continue
		}
		if filter.MaxTeamSize != nil && p.TeamSize > *filter.MaxTeamSize {
			continue
		}
		if filter.Privacy != "" && p.Privacy != filter.Privacy {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		projects = append(projects, cloneProject(p))
	}
	newestFirst(projects)
	return projects, nil
}

func (r *ProjectRepository) hostRole(host string) string {
	for _, u := range r.s.data.users {
		if u.CharusatID == host {
			return u.Role
		}
	}
	return ""
}

func (r *ProjectRepository) ListByIDs(ctx context.Context, ids []int) ([]types.Project, error) {
	if err := r.s.lock("ListProjectsByIDs"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	projects := []types.Project{}
	for _, id := range ids {
		if p, ok := r.s.data.projects[id]; ok {
			projects = append(projects, cloneProject(p))
		}
	}
	newestFirst(projects)
	return projects, nil
}

func (r *ProjectRepository) LatestHostedBy(ctx context.Context, host string) (types.Project, error) {
	if err := r.s.lock("LatestHostedBy"); err != nil {
		return types.Project{}, err
	}
	defer r.s.mu.Unlock()

	hosted := []types.Project{}
	for _, p := range r.s.data.projects {
		if p.Host == host {
			hosted = append(hosted, p)
		}
	}
	if len(hosted) == 0 {
		return types.Project{}, store.ErrNotFound
	}
	newestFirst(hosted)
	return cloneProject(hosted[0]), nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, member types.Member) (bool, error) {
	if err := r.s.lock("AddMember"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	for _, m := range r.s.data.members {
		if m.ProjectID == member.ProjectID && m.CharusatID == member.CharusatID {
			return false, nil
		}
	}
	member.ID = r.s.data.nextID("members")
	member.Name = ""
	r.s.data.members = append(slices.Clone(r.s.data.members), member)
	return true, nil
}

func (r *ProjectRepository) IsMember(ctx context.Context, projectID int, charusatID string) (bool, error) {
	if err := r.s.lock("IsMember"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	for _, m := range r.s.data.members {
		if m.ProjectID == projectID && m.CharusatID == charusatID {
			return true, nil
		}
	}
	return false, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int) ([]types.Member, error) {
	if err := r.s.lock("ListMembers"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	members := []types.Member{}
	for _, m := range r.s.data.members {
		if m.ProjectID != projectID {
			continue
		}
		for _, u := range r.s.data.users {
			if u.CharusatID == m.CharusatID {
				m.Name = u.DisplayName()
				break
			}
		}
		members = append(members, m)
	}
	return members, nil
}

func (r *ProjectRepository) AddMentor(ctx context.Context, mentor types.Mentor) (types.Mentor, error) {
	if err := r.s.lock("AddMentor"); err != nil {
		return types.Mentor{}, err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.projects[mentor.ProjectID]; !ok {
		return types.Mentor{}, store.ErrNotFound
	}
	mentor.ID = r.s.data.nextID("mentors")
	r.s.data.mentors = append(slices.Clone(r.s.data.mentors), mentor)
	return mentor, nil
}

func (r *ProjectRepository) ListMentors(ctx context.Context, projectID int) ([]types.Mentor, error) {
	if err := r.s.lock("ListMentors"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	return ownedBy(r.s.data.mentors, func(m types.Mentor) bool { return m.ProjectID == projectID }), nil
}
