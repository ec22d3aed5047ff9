package services

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/projectplus/apiserver/internal/storage"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
)

// MaxDocumentationFiles caps the documents accepted by one upload.
const MaxDocumentationFiles = 5

// ProjectService encapsulates the project registry use-cases.
type ProjectService struct {
	tx     Transactor
	files  FileStore
	logger zerolog.Logger
}

func NewProjectService(tx Transactor, files FileStore, logger zerolog.Logger) *ProjectService {
	return &ProjectService{tx: tx, files: files, logger: logger}
}

func normalizeProjectInput(in types.ProjectInput) types.ProjectInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Definition = strings.TrimSpace(in.Definition)
	in.Duration = strings.TrimSpace(in.Duration)
	in.Privacy = strings.ToLower(strings.TrimSpace(in.Privacy))
	if in.Privacy == "" {
		in.Privacy = types.PrivacyPublic
	}
	in.RequiredDomains = uniqueStrings(in.RequiredDomains)
	in.TechStack = uniqueStrings(in.TechStack)
	return in
}

func validateProjectInput(in types.ProjectInput) error {
	err := validation.Errors{
		"pname":          validation.Validate(in.Name, validation.Required, validation.Length(1, 200)),
		"teamSize":       validation.Validate(in.TeamSize, validation.Required, validation.Min(1)),
		"projectPrivacy": validation.Validate(in.Privacy, validation.In(types.PrivacyPublic, types.PrivacyPrivate)),
	}.Filter()
	if err != nil {
		return ValidationError("%s", err.Error())
	}
	return nil
}

// CreateProject stores the documents and creates the project with the caller
// as host and first member.
func (s *ProjectService) CreateProject(ctx context.Context, userID int, in types.ProjectInput, docs []types.Upload) (types.Project, error) {
	in = normalizeProjectInput(in)
	if err := validateProjectInput(in); err != nil {
		return types.Project{}, err
	}
	if len(docs) > MaxDocumentationFiles {
		return types.Project{}, ValidationError("at most %d documentation files are allowed", MaxDocumentationFiles)
	}

	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return types.Project{}, mapNotFound(err, "user")
	}
	if strings.TrimSpace(user.Institute) == "" || strings.TrimSpace(user.Department) == "" {
		return types.Project{}, ValidationError("institute and department must be set on your profile before creating a project")
	}

	saved, err := s.saveDocuments(ctx, user.Institute, user.Department, user.CharusatID, in.Name, docs)
	if err != nil {
		return types.Project{}, err
	}

	var created types.Project
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		project, err := repos.Projects.Create(ctx, types.Project{
			Name:            in.Name,
			Description:     in.Description,
			Definition:      in.Definition,
			Host:            user.CharusatID,
			TeamSize:        in.TeamSize,
			Duration:        in.Duration,
			Privacy:         in.Privacy,
			RequiredDomains: in.RequiredDomains,
			TechStack:       in.TechStack,
			Documentation:   saved,
			Institute:       user.Institute,
			Department:      user.Department,
		})
		if err != nil {
			return err
		}
		if _, err := repos.Projects.AddMember(ctx, types.Member{
			ProjectID:  project.ID,
			CharusatID: user.CharusatID,
			Role:       user.Role,
		}); err != nil {
			return err
		}
		if err := repos.Users.AddWorkingProject(ctx, user.ID, project.ID); err != nil {
			return err
		}
		created = project
		return nil
	})
	if err != nil {
		s.removeFiles(ctx, saved)
		return types.Project{}, err
	}
	return s.GetProjectDetails(ctx, created.ID)
}

// UpdateProject applies a partial update. Only the host may update.
func (s *ProjectService) UpdateProject(ctx context.Context, userID, projectID int, update types.ProjectUpdate, deleteDocs []string, docs []types.Upload) (types.Project, error) {
	if len(docs) > MaxDocumentationFiles {
		return types.Project{}, ValidationError("at most %d documentation files are allowed", MaxDocumentationFiles)
	}

	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return types.Project{}, mapNotFound(err, "user")
	}
	project, err := repos.Projects.Get(ctx, projectID)
	if err != nil {
		return types.Project{}, mapNotFound(err, "project")
	}
	if project.Host != user.CharusatID {
		return types.Project{}, forbidden("only the project host can update the project")
	}

	next := applyProjectUpdate(project, update)
	if err := validateProjectInput(types.ProjectInput{
		Name:     next.Name,
		TeamSize: next.TeamSize,
		Privacy:  next.Privacy,
	}); err != nil {
		return types.Project{}, err
	}

	toDelete := make(map[string]bool, len(deleteDocs))
	for _, doc := range deleteDocs {
		toDelete[strings.TrimSpace(doc)] = true
	}
	kept := make([]string, 0, len(project.Documentation))
	var removed []string
	for _, doc := range project.Documentation {
		if toDelete[doc] {
			removed = append(removed, doc)
			continue
		}
		kept = append(kept, doc)
	}

	saved, err := s.saveDocuments(ctx, project.Institute, project.Department, project.Host, next.Name, docs)
	if err != nil {
		return types.Project{}, err
	}
	next.Documentation = appendUnique(kept, saved)

	if _, err := repos.Projects.Update(ctx, next); err != nil {
		s.removeFiles(ctx, saved)
		return types.Project{}, mapNotFound(err, "project")
	}
	// A re-uploaded filename overwrote the deleted object in place.
	s.removeFiles(ctx, without(removed, saved))
	return s.GetProjectDetails(ctx, projectID)
}

func applyProjectUpdate(project types.Project, update types.ProjectUpdate) types.Project {
	if update.Name != nil {
		project.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		project.Description = strings.TrimSpace(*update.Description)
	}
	if update.Definition != nil {
		project.Definition = strings.TrimSpace(*update.Definition)
	}
	if update.TeamSize != nil {
		project.TeamSize = *update.TeamSize
	}
	if update.Duration != nil {
		project.Duration = strings.TrimSpace(*update.Duration)
	}
	if update.Privacy != nil {
		project.Privacy = strings.ToLower(strings.TrimSpace(*update.Privacy))
	}
	if update.RequiredDomains != nil {
		project.RequiredDomains = uniqueStrings(update.RequiredDomains)
	}
	if update.TechStack != nil {
		project.TechStack = uniqueStrings(update.TechStack)
	}
	return project
}

// MentorInput is the payload of addMentor. ProjectID is optional.
type MentorInput struct {
	ProjectID  *int   `json:"projectId"`
	Name       string `json:"name"`
	CharusatID string `json:"charusatId"`
	Email      string `json:"email"`
}

// Validate will run validation rules
func (in MentorInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, is.Email),
	)
}

// AddMentor attaches a mentor to projectID, or to the caller's most recently
// created project when no project is given.
func (s *ProjectService) AddMentor(ctx context.Context, hostUserID int, in MentorInput) (types.Mentor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CharusatID = strings.TrimSpace(in.CharusatID)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return types.Mentor{}, ValidationError("%s", err.Error())
	}

	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, hostUserID)
	if err != nil {
		return types.Mentor{}, mapNotFound(err, "user")
	}

	var project types.Project
	if in.ProjectID != nil {
		project, err = repos.Projects.Get(ctx, *in.ProjectID)
		if err != nil {
			return types.Mentor{}, mapNotFound(err, "project")
		}
		if project.Host != user.CharusatID {
			return types.Mentor{}, forbidden("only the project host can add mentors")
		}
	} else {
		project, err = repos.Projects.LatestHostedBy(ctx, user.CharusatID)
		if err != nil {
			return types.Mentor{}, mapNotFound(err, "hosted project")
		}
	}

	return repos.Projects.AddMentor(ctx, types.Mentor{
		ProjectID:  project.ID,
		Name:       in.Name,
		CharusatID: in.CharusatID,
		Email:      in.Email,
	})
}

// GetAllProjects lists projects matching filter, newest first.
func (s *ProjectService) GetAllProjects(ctx context.Context, filter types.ProjectFilter) ([]types.Project, error) {
	filter.HostRole = strings.ToLower(strings.TrimSpace(filter.HostRole))
	filter.Privacy = strings.ToLower(strings.TrimSpace(filter.Privacy))
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Domains = uniqueStrings(filter.Domains)
	return s.tx.Repositories().Projects.List(ctx, filter)
}

// GetProjectDetails returns a project with its members and mentors.
func (s *ProjectService) GetProjectDetails(ctx context.Context, projectID int) (types.Project, error) {
	repos := s.tx.Repositories()
	project, err := repos.Projects.Get(ctx, projectID)
	if err != nil {
		return types.Project{}, mapNotFound(err, "project")
	}
	if project.Members, err = repos.Projects.ListMembers(ctx, projectID); err != nil {
		return types.Project{}, err
	}
	if project.Mentors, err = repos.Projects.ListMentors(ctx, projectID); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// GetUserCurrWorkingProjects returns the projects the user currently works on.
func (s *ProjectService) GetUserCurrWorkingProjects(ctx context.Context, userID int) ([]types.Project, error) {
	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "user")
	}
	return repos.Projects.ListByIDs(ctx, user.CurrWorkingProjects)
}

func (s *ProjectService) saveDocuments(ctx context.Context, institute, department, host, projectName string, docs []types.Upload) ([]string, error) {
	saved := make([]string, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Data) == 0 {
			continue
		}
		key := storage.DocumentationKey(institute, department, host, projectName, doc.Filename)
		publicPath, err := s.files.Save(ctx, key, doc)
		if err != nil {
			s.removeFiles(ctx, saved)
			return nil, err
		}
		saved = append(saved, publicPath)
	}
	return saved, nil
}

func (s *ProjectService) removeFiles(ctx context.Context, paths []string) {
	for _, p := range paths {
		removeFileBestEffort(ctx, s.files, s.logger, p)
	}
}

// uniqueStrings trims values and drops empty and repeated entries.
func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range cleanStrings(values) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// without returns the paths in paths that are not in exclude.
func without(paths, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		skip[p] = true
	}
	out := paths[:0:0]
	for _, p := range paths {
		if !skip[p] {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(base, extra []string) []string {
	return uniqueStrings(append(append([]string{}, base...), extra...))
}
