package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/types"
)

// JoinRequestRepository handles persistence for project join requests.
type JoinRequestRepository struct {
	db db.DBTX
}

func NewJoinRequestRepository(db db.DBTX) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

func scanJoinRequest(row rowScanner) (types.JoinRequest, error) {
	var req types.JoinRequest
	err := row.Scan(&req.ID, &req.UserID, &req.ProjectID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.JoinRequest{}, ErrNotFound
		}
		return types.JoinRequest{}, err
	}
	return req, nil
}

func (r *JoinRequestRepository) Create(ctx context.Context, req types.JoinRequest) (types.JoinRequest, error) {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = types.RequestPending
	}

	const query = `
		INSERT INTO prequests (user_id, project_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx, query, req.UserID, req.ProjectID, req.Status, req.CreatedAt, req.UpdatedAt,
	).Scan(&req.ID); err != nil {
		return types.JoinRequest{}, err
	}
	return req, nil
}

func (r *JoinRequestRepository) Get(ctx context.Context, id int) (types.JoinRequest, error) {
	const query = `
		SELECT id, user_id, project_id, status, created_at, updated_at
		FROM prequests
		WHERE id = $1`
	return scanJoinRequest(r.db.QueryRowContext(ctx, query, id))
}

// UpdateStatus moves a PENDING request to status. It returns ErrConflict when
// the request has already been decided.
func (r *JoinRequestRepository) UpdateStatus(ctx context.Context, id int, status types.RequestStatus) error {
	const query = `
		UPDATE prequests
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ListByProject returns every request of a project, newest first.
func (r *JoinRequestRepository) ListByProject(ctx context.Context, projectID int) ([]types.JoinRequest, error) {
	const query = `
		SELECT id, user_id, project_id, status, created_at, updated_at
		FROM prequests
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, projectID)
}

// ListPendingForHost returns pending requests across every project hosted by
// the given charusatId, newest first.
func (r *JoinRequestRepository) ListPendingForHost(ctx context.Context, host string) ([]types.JoinRequest, error) {
	const query = `
		SELECT r.id, r.user_id, r.project_id, r.status, r.created_at, r.updated_at
		FROM prequests r
		JOIN projects p ON p.id = r.project_id
		WHERE p.phost = $1 AND r.status = 'PENDING'
		ORDER BY r.created_at DESC, r.id DESC`
	return r.query(ctx, query, host)
}

func (r *JoinRequestRepository) query(ctx context.Context, query string, args ...any) ([]types.JoinRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []types.JoinRequest{}
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
