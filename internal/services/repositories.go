package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByCharusatID(ctx context.Context, charusatID string) (types.User, error)
	ListByCharusatIDs(ctx context.Context, charusatIDs []string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	MarkVerified(ctx context.Context, id int) error
	SetResetCode(ctx context.Context, id int, code string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateProfileFields(ctx context.Context, id int, update types.ProfileUpdate) error
	SetProfilePhoto(ctx context.Context, id int, path string) error
	AddWorkingProject(ctx context.Context, userID, projectID int) error
	Delete(ctx context.Context, id int) error
	DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

// ProfileRepository defines persistence operations for profile collections.
type ProfileRepository interface {
	ListSkills(ctx context.Context, userID int) ([]types.Skill, error)
	ReplaceSkills(ctx context.Context, userID int, skills []string) error
	ListExperiences(ctx context.Context, userID int) ([]types.Experience, error)
	ReplaceExperiences(ctx context.Context, userID int, experiences []types.Experience) error
	ListUserProjects(ctx context.Context, userID int) ([]types.UserProject, error)
	ReplaceUserProjects(ctx context.Context, userID int, projects []types.UserProject) error
	ListCertificates(ctx context.Context, userID int) ([]types.Certificate, error)
	AddCertificates(ctx context.Context, userID int, certificates []types.Certificate) ([]types.Certificate, error)
	GetCertificate(ctx context.Context, id int) (types.Certificate, error)
	DeleteCertificate(ctx context.Context, id int) error
}

// ProjectRepository defines persistence operations for projects, members and mentors.
type ProjectRepository interface {
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	List(ctx context.Context, filter types.ProjectFilter) ([]types.Project, error)
	ListByIDs(ctx context.Context, ids []int) ([]types.Project, error)
	LatestHostedBy(ctx context.Context, host string) (types.Project, error)
	AddMember(ctx context.Context, member types.Member) (bool, error)
	IsMember(ctx context.Context, projectID int, charusatID string) (bool, error)
	ListMembers(ctx context.Context, projectID int) ([]types.Member, error)
	AddMentor(ctx context.Context, mentor types.Mentor) (types.Mentor, error)
	ListMentors(ctx context.Context, projectID int) ([]types.Mentor, error)
}

// JoinRequestRepository defines persistence operations for join requests.
type JoinRequestRepository interface {
	Create(ctx context.Context, req types.JoinRequest) (types.JoinRequest, error)
	Get(ctx context.Context, id int) (types.JoinRequest, error)
	UpdateStatus(ctx context.Context, id int, status types.RequestStatus) error
	ListByProject(ctx context.Context, projectID int) ([]types.JoinRequest, error)
	ListPendingForHost(ctx context.Context, host string) ([]types.JoinRequest, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users    UserRepository
	Profiles ProfileRepository
	Projects ProjectRepository
	Requests JoinRequestRepository
}

// Transactor runs fn with repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// SQLTransactor is the PostgreSQL Transactor.
type SQLTransactor struct {
	conn *sql.DB
}

func NewSQLTransactor(conn *sql.DB) *SQLTransactor {
	return &SQLTransactor{conn: conn}
}

// Repositories returns repositories bound to the connection pool.
func (t *SQLTransactor) Repositories() Repositories {
	return sqlRepositories(t.conn)
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return db.WithTx(ctx, t.conn, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, sqlRepositories(tx))
	})
}

func sqlRepositories(conn db.DBTX) Repositories {
	return Repositories{
		Users:    store.NewUserRepository(conn),
		Profiles: store.NewProfileRepository(conn),
		Projects: store.NewProjectRepository(conn),
		Requests: store.NewJoinRequestRepository(conn),
	}
}
