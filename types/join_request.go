package types

import (
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a join request.
type RequestStatus string

// Supported request states. APPROVED and REJECTED are terminal.
const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// ParseDecision normalises a host decision. Only terminal states are valid.
func ParseDecision(raw string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case RequestApproved:
		return RequestApproved, true
	case RequestRejected:
		return RequestRejected, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// JoinRequest is a candidate's request to join a project.
type JoinRequest struct {
	ID        int           `json:"id" db:"id"`
	UserID    int           `json:"userId" db:"user_id"`
	ProjectID int           `json:"projectId" db:"project_id"`
	Status    RequestStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time     `json:"updatedAt" db:"updated_at"`
}

// JoinRequestDetail is a request loaded with its candidate and project.
type JoinRequestDetail struct {
	JoinRequest
	User    User    `json:"user"`
	Project Project `json:"project"`
}
