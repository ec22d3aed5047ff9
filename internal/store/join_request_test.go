package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/projectplus/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRequestRepository_CreateDefaultsToPending(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewJoinRequestRepository(conn)

	mock.ExpectQuery(`INSERT INTO prequests \(user_id, project_id, status, created_at, updated_at\)`).
		WithArgs(3, 7, "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	req, err := repo.Create(context.Background(), types.JoinRequest{UserID: 3, ProjectID: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, req.ID)
	assert.Equal(t, types.RequestPending, req.Status)
}

func TestJoinRequestRepository_UpdateStatusGuardsPending(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewJoinRequestRepository(conn)

	query := `UPDATE prequests SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = 'PENDING'`
	mock.ExpectExec(query).
		WithArgs("APPROVED", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("REJECTED", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), 1, types.RequestApproved))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), 1, types.RequestRejected), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinRequestRepository_ListPendingForHost(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewJoinRequestRepository(conn)
	now := time.Now()

	mock.ExpectQuery(`FROM prequests r JOIN projects p ON p.id = r.project_id WHERE p.phost = \$1 AND r.status = 'PENDING'`).
		WithArgs("22CE001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "project_id", "status", "created_at", "updated_at"}).
			AddRow(4, 3, 7, "PENDING", now, now))

	requests, err := repo.ListPendingForHost(context.Background(), "22CE001")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, types.RequestPending, requests[0].Status)
	assert.Equal(t, 7, requests[0].ProjectID)
}
