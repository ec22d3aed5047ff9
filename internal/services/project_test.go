package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/internal/store/memory"
	"github.com/projectplus/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectInput(name string, teamSize int) types.ProjectInput {
	return types.ProjectInput{
		Name:            name,
		Description:     "A project about " + name,
		TeamSize:        teamSize,
		Duration:        "3 months",
		RequiredDomains: []string{"AI", "Web", "AI"},
		TechStack:       []string{"go", " react "},
	}
}

func newProjects(t *testing.T) (*services.ProjectService, *memory.Store, string) {
	t.Helper()
	db := memory.New()
	files, dir := newFiles(t)
	return services.NewProjectService(db, files, nopLogger), db, dir
}

func TestCreateProject_HostBecomesMember(t *testing.T) {
	svc, db, dir := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))

	project, err := svc.CreateProject(ctx, host.ID, projectInput("Smart Campus", 4), []types.Upload{
		{Filename: "brief.pdf", Data: []byte("brief")},
	})
	require.NoError(t, err)

	assert.Equal(t, "22ce001", project.Host)
	assert.Equal(t, types.PrivacyPublic, project.Privacy)
	assert.Equal(t, []string{"AI", "Web"}, project.RequiredDomains)
	assert.Equal(t, []string{"go", "react"}, project.TechStack)
	assert.Equal(t, "CSPIT", project.Institute)
	require.Len(t, project.Members, 1)
	assert.Equal(t, "22ce001", project.Members[0].CharusatID)
	assert.Equal(t, types.RoleStudent, project.Members[0].Role)
	assert.Equal(t, "First22ce001 Last", project.Members[0].Name)

	require.Equal(t, []string{"/uploads/documentation/CSPIT/CE/22ce001/Smart Campus/brief.pdf"}, project.Documentation)
	_, err = os.Stat(filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "Smart Campus", "brief.pdf"))
	assert.NoError(t, err)

	working, err := svc.GetUserCurrWorkingProjects(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, working, 1)
	assert.Equal(t, project.ID, working[0].ID)
}

func TestCreateProject_Rejections(t *testing.T) {
	svc, db, _ := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))
	orphan := seedUser(t, db, types.User{Email: "x@charusat.edu.in", CharusatID: "x"})

	_, err := svc.CreateProject(ctx, orphan.ID, projectInput("Nowhere", 2), nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.CreateProject(ctx, host.ID, projectInput("", 2), nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.CreateProject(ctx, host.ID, projectInput("Zero", 0), nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	bad := projectInput("Hidden", 2)
	bad.Privacy = "secret"
	_, err = svc.CreateProject(ctx, host.ID, bad, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	docs := make([]types.Upload, services.MaxDocumentationFiles+1)
	_, err = svc.CreateProject(ctx, host.ID, projectInput("Heavy", 2), docs)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.CreateProject(ctx, 404, projectInput("Ghost", 2), nil)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestCreateProject_RollsBackAndRemovesFiles(t *testing.T) {
	svc, db, dir := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))

	db.Fail("AddMember", errors.New("boom"))
	_, err := svc.CreateProject(ctx, host.ID, projectInput("Smart Campus", 4), []types.Upload{
		{Filename: "brief.pdf", Data: []byte("brief")},
	})
	require.Error(t, err)
	db.Fail("AddMember", nil)

	all, err := svc.GetAllProjects(ctx, types.ProjectFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = os.Stat(filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "Smart Campus", "brief.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateProject(t *testing.T) {
	svc, db, dir := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))
	other := seedUser(t, db, student("22ce002"))

	project, err := svc.CreateProject(ctx, host.ID, projectInput("Smart Campus", 4), []types.Upload{
		{Filename: "a.pdf", Data: []byte("a")},
		{Filename: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, project.Documentation, 2)

	name := "Smarter Campus"
	_, err = svc.UpdateProject(ctx, other.ID, project.ID, types.ProjectUpdate{Name: &name}, nil, nil)
	require.ErrorIs(t, err, services.ErrForbidden)

	size := 6
	updated, err := svc.UpdateProject(ctx, host.ID, project.ID,
		types.ProjectUpdate{TeamSize: &size, TechStack: []string{"rust"}},
		[]string{project.Documentation[0]},
		[]types.Upload{{Filename: "c.pdf", Data: []byte("c")}},
	)
	require.NoError(t, err)
	assert.Equal(t, "Smart Campus", updated.Name)
	assert.Equal(t, 6, updated.TeamSize)
	assert.Equal(t, []string{"rust"}, updated.TechStack)
	assert.Equal(t, []string{"AI", "Web"}, updated.RequiredDomains)
	assert.Equal(t, []string{
		"/uploads/documentation/CSPIT/CE/22ce001/Smart Campus/b.pdf",
		"/uploads/documentation/CSPIT/CE/22ce001/Smart Campus/c.pdf",
	}, updated.Documentation)

	docDir := filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "Smart Campus")
	_, err = os.Stat(filepath.Join(docDir, "a.pdf"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(docDir, "c.pdf"))
	assert.NoError(t, err)

	zero := 0
	_, err = svc.UpdateProject(ctx, host.ID, project.ID, types.ProjectUpdate{TeamSize: &zero}, nil, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.UpdateProject(ctx, host.ID, 999, types.ProjectUpdate{}, nil, nil)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestUpdateProject_ReplaceDocumentWithSameName(t *testing.T) {
	svc, db, dir := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))

	project, err := svc.CreateProject(ctx, host.ID, projectInput("P", 2), []types.Upload{
		{Filename: "brief.pdf", Data: []byte("v1")},
	})
	require.NoError(t, err)
	require.Len(t, project.Documentation, 1)

	updated, err := svc.UpdateProject(ctx, host.ID, project.ID, types.ProjectUpdate{},
		project.Documentation,
		[]types.Upload{{Filename: "brief.pdf", Data: []byte("v2")}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/documentation/CSPIT/CE/22ce001/P/brief.pdf"}, updated.Documentation)

	data, err := os.ReadFile(filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "P", "brief.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestUpdateProject_RenameStoresUploadsUnderNewName(t *testing.T) {
	svc, db, dir := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))

	project, err := svc.CreateProject(ctx, host.ID, projectInput("Old Name", 2), nil)
	require.NoError(t, err)

	name := "New Name"
	updated, err := svc.UpdateProject(ctx, host.ID, project.ID, types.ProjectUpdate{Name: &name}, nil,
		[]types.Upload{{Filename: "plan.pdf", Data: []byte("plan")}},
	)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, []string{"/uploads/documentation/CSPIT/CE/22ce001/New Name/plan.pdf"}, updated.Documentation)

	_, err = os.Stat(filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "New Name", "plan.pdf"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "documentation", "CSPIT", "CE", "22ce001", "Old Name"))
	assert.True(t, os.IsNotExist(err))
}

func TestGetAllProjects_Filters(t *testing.T) {
	svc, db, _ := newProjects(t)
	ctx := context.Background()
	studentHost := seedUser(t, db, student("22ce001"))
	facultyUser := student("fac001")
	facultyUser.Role = types.RoleFaculty
	facultyHost := seedUser(t, db, facultyUser)

	small, err := svc.CreateProject(ctx, studentHost.ID, types.ProjectInput{Name: "Chat bot", TeamSize: 2, RequiredDomains: []string{"AI"}}, nil)
	require.NoError(t, err)
	mid, err := svc.CreateProject(ctx, studentHost.ID, types.ProjectInput{Name: "Portal", Description: "campus chat portal", TeamSize: 4, RequiredDomains: []string{"Web"}, Privacy: "private"}, nil)
	require.NoError(t, err)
	large, err := svc.CreateProject(ctx, facultyHost.ID, types.ProjectInput{Name: "Research", TeamSize: 8, RequiredDomains: []string{"AI", "HPC"}}, nil)
	require.NoError(t, err)

	ids := func(projects []types.Project) []int {
		out := make([]int, 0, len(projects))
		for _, p := range projects {
			out = append(out, p.ID)
		}
		return out
	}

	all, err := svc.GetAllProjects(ctx, types.ProjectFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int{large.ID, mid.ID, small.ID}, ids(all))

	lo, hi := 2, 4
	bySize, err := svc.GetAllProjects(ctx, types.ProjectFilter{MinTeamSize: &lo, MaxTeamSize: &hi})
	require.NoError(t, err)
	assert.Equal(t, []int{mid.ID, small.ID}, ids(bySize))

	byDomain, err := svc.GetAllProjects(ctx, types.ProjectFilter{Domains: []string{"AI"}})
	require.NoError(t, err)
	assert.Equal(t, []int{large.ID, small.ID}, ids(byDomain))

	byRole, err := svc.GetAllProjects(ctx, types.ProjectFilter{HostRole: "Faculty"})
	require.NoError(t, err)
	assert.Equal(t, []int{large.ID}, ids(byRole))

	byPrivacy, err := svc.GetAllProjects(ctx, types.ProjectFilter{Privacy: "PRIVATE"})
	require.NoError(t, err)
	assert.Equal(t, []int{mid.ID}, ids(byPrivacy))

	bySearch, err := svc.GetAllProjects(ctx, types.ProjectFilter{Search: "CHAT"})
	require.NoError(t, err)
	assert.Equal(t, []int{mid.ID, small.ID}, ids(bySearch))
}

func TestAddMentor(t *testing.T) {
	svc, db, _ := newProjects(t)
	ctx := context.Background()
	host := seedUser(t, db, student("22ce001"))
	other := seedUser(t, db, student("22ce002"))

	_, err := svc.AddMentor(ctx, host.ID, services.MentorInput{Name: "Dr. Mehta"})
	require.ErrorIs(t, err, services.ErrNotFound)

	first, err := svc.CreateProject(ctx, host.ID, projectInput("First", 3), nil)
	require.NoError(t, err)
	latest, err := svc.CreateProject(ctx, host.ID, projectInput("Second", 3), nil)
	require.NoError(t, err)

	mentor, err := svc.AddMentor(ctx, host.ID, services.MentorInput{Name: "Dr. Mehta", Email: "mehta@charusat.ac.in"})
	require.NoError(t, err)
	assert.Equal(t, latest.ID, mentor.ProjectID)

	_, err = svc.AddMentor(ctx, host.ID, services.MentorInput{ProjectID: &first.ID, Name: "Dr. Rao"})
	require.NoError(t, err)
	details, err := svc.GetProjectDetails(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, details.Mentors, 1)
	assert.Equal(t, "Dr. Rao", details.Mentors[0].Name)

	_, err = svc.AddMentor(ctx, other.ID, services.MentorInput{ProjectID: &first.ID, Name: "Dr. Iyer"})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = svc.AddMentor(ctx, host.ID, services.MentorInput{Name: ""})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.AddMentor(ctx, host.ID, services.MentorInput{Name: "Dr. Shah", Email: "not-an-email"})
	assert.ErrorIs(t, err, services.ErrValidation)
}
