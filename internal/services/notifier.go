package services

import (
	"context"

	"github.com/projectplus/apiserver/types"
)

// Notifier delivers the emails produced by the workflows. Delivery is best
// effort: services log failures and never roll back on them.
type Notifier interface {
	SendVerificationCode(ctx context.Context, user types.User, code string) error
	SendResetCode(ctx context.Context, user types.User, code string) error
	NotifyJoinRequest(ctx context.Context, host, candidate types.User, project types.Project) error
	NotifyRequestOutcome(ctx context.Context, candidate types.User, project types.Project, status types.RequestStatus) error
}

// FileStore persists uploaded files and returns their public paths.
type FileStore interface {
	Save(ctx context.Context, key string, upload types.Upload) (string, error)
	Remove(ctx context.Context, publicPath string) error
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationCode(context.Context, types.User, string) error { return nil }
func (noopNotifier) SendResetCode(context.Context, types.User, string) error        { return nil }
func (noopNotifier) NotifyJoinRequest(context.Context, types.User, types.User, types.Project) error {
	return nil
}
func (noopNotifier) NotifyRequestOutcome(context.Context, types.User, types.Project, types.RequestStatus) error {
	return nil
}
