package services

import (
	"context"
	"errors"

	"github.com/projectplus/apiserver/internal/metrics"
	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
)

// JoinRequestService implements the join-request workflow:
// PENDING -> APPROVED | REJECTED.
type JoinRequestService struct {
	tx       Transactor
	notifier Notifier
	logger   zerolog.Logger
}

func NewJoinRequestService(tx Transactor, notifier Notifier, logger zerolog.Logger) *JoinRequestService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &JoinRequestService{tx: tx, notifier: notifier, logger: logger}
}

// SendRequest records a pending request and emails the project host.
func (s *JoinRequestService) SendRequest(ctx context.Context, userID, projectID int) (types.JoinRequest, error) {
	repos := s.tx.Repositories()
	candidate, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return types.JoinRequest{}, mapNotFound(err, "user")
	}
	project, err := repos.Projects.Get(ctx, projectID)
	if err != nil {
		return types.JoinRequest{}, mapNotFound(err, "project")
	}
	host, err := repos.Users.GetByCharusatID(ctx, project.Host)
	if err != nil {
		return types.JoinRequest{}, mapNotFound(err, "project host")
	}

	req, err := repos.Requests.Create(ctx, types.JoinRequest{
		UserID:    candidate.ID,
		ProjectID: project.ID,
		Status:    types.RequestPending,
	})
	if err != nil {
		return types.JoinRequest{}, err
	}
	metrics.JoinRequests.WithLabelValues(string(types.RequestPending)).Inc()

	if err := s.notifier.NotifyJoinRequest(ctx, host, candidate, project); err != nil {
		s.logger.Warn().Err(err).Int("request_id", req.ID).Msg("notify project host")
	}
	return req, nil
}

// RequestResult applies the host's decision. Approval adds the candidate as
// a member at most once. The candidate is emailed after commit.
func (s *JoinRequestService) RequestResult(ctx context.Context, hostUserID, requestID int, rawStatus string) (types.JoinRequest, error) {
	status, ok := types.ParseDecision(rawStatus)
	if !ok {
		return types.JoinRequest{}, ErrInvalidStatus
	}

	var (
		decided   types.JoinRequest
		candidate types.User
		project   types.Project
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		req, err := repos.Requests.Get(ctx, requestID)
		if err != nil {
			return mapNotFound(err, "request")
		}
		project, err = repos.Projects.Get(ctx, req.ProjectID)
		if err != nil {
			return mapNotFound(err, "project")
		}
		host, err := repos.Users.GetByID(ctx, hostUserID)
		if err != nil {
			return mapNotFound(err, "user")
		}
		if project.Host != host.CharusatID {
			return forbidden("only the project host can decide requests")
		}
		if req.Status.Terminal() {
			return ErrAlreadyDecided
		}
		candidate, err = repos.Users.GetByID(ctx, req.UserID)
		if err != nil {
			return mapNotFound(err, "user")
		}

		if status == types.RequestApproved {
			member, err := repos.Projects.IsMember(ctx, project.ID, candidate.CharusatID)
			if err != nil {
				return err
			}
			if !member {
				if _, err := repos.Projects.AddMember(ctx, types.Member{
					ProjectID:  project.ID,
					CharusatID: candidate.CharusatID,
					Role:       candidate.Role,
				}); err != nil {
					return err
				}
			}
			if err := repos.Users.AddWorkingProject(ctx, candidate.ID, project.ID); err != nil {
				return err
			}
		}

		if err := repos.Requests.UpdateStatus(ctx, req.ID, status); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrAlreadyDecided
			}
			return err
		}
		req.Status = status
		decided = req
		return nil
	})
	if err != nil {
		return types.JoinRequest{}, err
	}
	metrics.JoinRequests.WithLabelValues(string(status)).Inc()

	if err := s.notifier.NotifyRequestOutcome(ctx, candidate, project, status); err != nil {
		s.logger.Warn().Err(err).Int("request_id", decided.ID).Msg("notify candidate")
	}
	return decided, nil
}

// ShowHostedProjectRequests lists pending requests across the caller's
// hosted projects.
func (s *JoinRequestService) ShowHostedProjectRequests(ctx context.Context, userID int) ([]types.JoinRequestDetail, error) {
	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "user")
	}
	requests, err := repos.Requests.ListPendingForHost(ctx, user.CharusatID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, repos, requests)
}

// ShowProjectRequests lists every request of a project. Only the host may
// see them.
func (s *JoinRequestService) ShowProjectRequests(ctx context.Context, userID, projectID int) ([]types.JoinRequestDetail, error) {
	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "user")
	}
	project, err := repos.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, mapNotFound(err, "project")
	}
	if project.Host != user.CharusatID {
		return nil, forbidden("only the project host can view its requests")
	}
	requests, err := repos.Requests.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, repos, requests)
}

func (s *JoinRequestService) details(ctx context.Context, repos Repositories, requests []types.JoinRequest) ([]types.JoinRequestDetail, error) {
	users := make(map[int]types.User)
	projects := make(map[int]types.Project)

	out := make([]types.JoinRequestDetail, 0, len(requests))
	for _, req := range requests {
		user, ok := users[req.UserID]
		if !ok {
			var err error
			user, err = repos.Users.GetByID(ctx, req.UserID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			users[req.UserID] = user
		}
		project, ok := projects[req.ProjectID]
		if !ok {
			var err error
			project, err = repos.Projects.Get(ctx, req.ProjectID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			projects[req.ProjectID] = project
		}
		out = append(out, types.JoinRequestDetail{JoinRequest: req, User: user, Project: project})
	}
	return out, nil
}
