package notify

import (
	"context"

	"github.com/projectplus/apiserver/types"
)

// Gateway turns workflow events into email jobs.
type Gateway struct {
	dispatcher Dispatcher
}

func NewGateway(dispatcher Dispatcher) *Gateway {
	return &Gateway{dispatcher: dispatcher}
}

func (g *Gateway) SendVerificationCode(ctx context.Context, user types.User, code string) error {
	return g.dispatcher.Dispatch(ctx, Job{
		Kind: KindVerification,
		To:   user.Email,
		Name: user.FirstName,
		Code: code,
	})
}

func (g *Gateway) SendResetCode(ctx context.Context, user types.User, code string) error {
	return g.dispatcher.Dispatch(ctx, Job{
		Kind: KindReset,
		To:   user.Email,
		Name: user.FirstName,
		Code: code,
	})
}

func (g *Gateway) NotifyJoinRequest(ctx context.Context, host, candidate types.User, project types.Project) error {
	return g.dispatcher.Dispatch(ctx, Job{
		Kind:      KindJoinRequest,
		To:        host.Email,
		Name:      host.FirstName,
		Project:   project.Name,
		Candidate: candidate.DisplayName() + " (" + candidate.CharusatID + ")",
	})
}

func (g *Gateway) NotifyRequestOutcome(ctx context.Context, candidate types.User, project types.Project, status types.RequestStatus) error {
	return g.dispatcher.Dispatch(ctx, Job{
		Kind:    KindOutcome,
		To:      candidate.Email,
		Name:    candidate.FirstName,
		Project: project.Name,
		Status:  status,
	})
}
