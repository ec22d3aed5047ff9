package memory

import (
	"context"
	"sort"
	"time"

	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
)

// JoinRequestRepository is the in-memory prequest table.
type JoinRequestRepository struct {
	s *Store
}

func (r *JoinRequestRepository) Create(ctx context.Context, req types.JoinRequest) (types.JoinRequest, error) {
	if err := r.s.lock("CreateRequest"); err != nil {
		return types.JoinRequest{}, err
	}
	defer r.s.mu.Unlock()

	now := time.Now()
	req.ID = r.s.data.nextID("prequests")
	if req.Status == "" {
		req.Status = types.RequestPending
	}
	req.CreatedAt = now
	req.UpdatedAt = now
	r.s.data.requests[req.ID] = req
	return req, nil
}

func (r *JoinRequestRepository) Get(ctx context.Context, id int) (types.JoinRequest, error) {
	if err := r.s.lock("GetRequest"); err != nil {
		return types.JoinRequest{}, err
	}
	defer r.s.mu.Unlock()

	req, ok := r.s.data.requests[id]
	if !ok {
		return types.JoinRequest{}, store.ErrNotFound
	}
	return req, nil
}

func (r *JoinRequestRepository) UpdateStatus(ctx context.Context, id int, status types.RequestStatus) error {
	if err := r.s.lock("UpdateStatus"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	req, ok := r.s.data.requests[id]
	if !ok || req.Status != types.RequestPending {
		return store.ErrConflict
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	r.s.data.requests[id] = req
	return nil
}

func (r *JoinRequestRepository) ListByProject(ctx context.Context, projectID int) ([]types.JoinRequest, error) {
	if err := r.s.lock("ListByProject"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	return r.collect(func(req types.JoinRequest) bool { return req.ProjectID == projectID }), nil
}

func (r *JoinRequestRepository) ListPendingForHost(ctx context.Context, host string) ([]types.JoinRequest, error) {
	if err := r.s.lock("ListPendingForHost"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	return r.collect(func(req types.JoinRequest) bool {
		project, ok := r.s.data.projects[req.ProjectID]
		return ok && project.Host == host && req.Status == types.RequestPending
	}), nil
}

func (r *JoinRequestRepository) collect(keep func(types.JoinRequest) bool) []types.JoinRequest {
	requests := []types.JoinRequest{}
	for _, req := range r.s.data.requests {
		if keep(req) {
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID > requests[j].ID })
	return requests
}
