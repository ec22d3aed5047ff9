// Package memory is an in-memory implementation of the service repositories.
// It is used by tests and by local runs without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/types"
)

type state struct {
	users        map[int]types.User
	skills       []types.Skill
	experiences  []types.Experience
	userProjects []types.UserProject
	certificates map[int]types.Certificate
	projects     map[int]types.Project
	members      []types.Member
	mentors      []types.Mentor
	requests     map[int]types.JoinRequest
	seq          map[string]int
}

func newState() state {
	return state{
		users:        make(map[int]types.User),
		certificates: make(map[int]types.Certificate),
		projects:     make(map[int]types.Project),
		requests:     make(map[int]types.JoinRequest),
		seq:          make(map[string]int),
	}
}

func (s state) clone() state {
	out := state{
		users:        make(map[int]types.User, len(s.users)),
		skills:       append([]types.Skill(nil), s.skills...),
		experiences:  append([]types.Experience(nil), s.experiences...),
		userProjects: append([]types.UserProject(nil), s.userProjects...),
		certificates: make(map[int]types.Certificate, len(s.certificates)),
		projects:     make(map[int]types.Project, len(s.projects)),
		members:      append([]types.Member(nil), s.members...),
		mentors:      append([]types.Mentor(nil), s.mentors...),
		requests:     make(map[int]types.JoinRequest, len(s.requests)),
		seq:          make(map[string]int, len(s.seq)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.certificates {
		out.certificates[k] = v
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.seq {
		out.seq[k] = v
	}
	return out
}

func (s *state) nextID(table string) int {
	s.seq[table]++
	return s.seq[table]
}

// Store holds every table in memory. Stored values are never mutated in
// place, so a shallow clone is a consistent snapshot.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  state
	fails map[string]error
}

func New() *Store {
	return &Store{data: newState(), fails: make(map[string]error)}
}

// Fail makes the named repository method return err until cleared with a nil
// error.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fails, method)
		return
	}
	s.fails[method] = err
}

func (s *Store) lock(method string) error {
	s.mu.Lock()
	if err := s.fails[method]; err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

// Repositories returns repositories backed by the store.
func (s *Store) Repositories() services.Repositories {
	return services.Repositories{
		Users:    &UserRepository{s: s},
		Profiles: &ProfileRepository{s: s},
		Projects: &ProjectRepository{s: s},
		Requests: &JoinRequestRepository{s: s},
	}
}

// WithinTx serialises transactions and restores the previous snapshot when
// fn fails or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos services.Repositories) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, s.Repositories())
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}
