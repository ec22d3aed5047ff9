package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/internal/store/memory"
	"github.com/projectplus/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_RollsBack(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, repos services.Repositories) error {
		if _, err := repos.Users.Create(ctx, types.User{Email: "a@charusat.edu.in", CharusatID: "a"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = s.Repositories().Users.GetByEmail(ctx, "a@charusat.edu.in")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, repos services.Repositories) error {
			_, _ = repos.Users.Create(ctx, types.User{Email: "a@charusat.edu.in", CharusatID: "a"})
			panic("boom")
		})
	})

	_, err := s.Repositories().Users.GetByEmail(ctx, "a@charusat.edu.in")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_UniqueConstraints(t *testing.T) {
	users := memory.New().Repositories().Users
	ctx := context.Background()

	_, err := users.Create(ctx, types.User{Email: "a@charusat.edu.in", CharusatID: "a"})
	require.NoError(t, err)
	_, err = users.Create(ctx, types.User{Email: "a@charusat.edu.in", CharusatID: "b"})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = users.Create(ctx, types.User{Email: "b@charusat.edu.in", CharusatID: "a"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestProjects_AddMemberIsIdempotent(t *testing.T) {
	projects := memory.New().Repositories().Projects
	ctx := context.Background()

	p, err := projects.Create(ctx, types.Project{Name: "p", Host: "a", TeamSize: 2})
	require.NoError(t, err)

	inserted, err := projects.AddMember(ctx, types.Member{ProjectID: p.ID, CharusatID: "b"})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = projects.AddMember(ctx, types.Member{ProjectID: p.ID, CharusatID: "b"})
	require.NoError(t, err)
	assert.False(t, inserted)

	members, err := projects.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRequests_UpdateStatusOnlyFromPending(t *testing.T) {
	requests := memory.New().Repositories().Requests
	ctx := context.Background()

	req, err := requests.Create(ctx, types.JoinRequest{UserID: 1, ProjectID: 1})
	require.NoError(t, err)
	assert.Equal(t, types.RequestPending, req.Status)

	require.NoError(t, requests.UpdateStatus(ctx, req.ID, types.RequestApproved))
	assert.ErrorIs(t, requests.UpdateStatus(ctx, req.ID, types.RequestRejected), store.ErrConflict)
	assert.ErrorIs(t, requests.UpdateStatus(ctx, 42, types.RequestRejected), store.ErrConflict)
}

func TestFail_InjectsErrors(t *testing.T) {
	s := memory.New()
	boom := errors.New("boom")
	s.Fail("GetByID", boom)

	_, err := s.Repositories().Users.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	s.Fail("GetByID", nil)
	_, err = s.Repositories().Users.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
