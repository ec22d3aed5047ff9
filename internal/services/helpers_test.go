package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/projectplus/apiserver/internal/storage"
	"github.com/projectplus/apiserver/internal/store/memory"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	Kind   string
	To     string
	Code   string
	Status types.RequestStatus
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) record(m sentMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return n.err
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, user types.User, code string) error {
	return n.record(sentMail{Kind: "verification", To: user.Email, Code: code})
}

func (n *recordingNotifier) SendResetCode(_ context.Context, user types.User, code string) error {
	return n.record(sentMail{Kind: "reset", To: user.Email, Code: code})
}

func (n *recordingNotifier) NotifyJoinRequest(_ context.Context, host, _ types.User, _ types.Project) error {
	return n.record(sentMail{Kind: "join_request", To: host.Email})
}

func (n *recordingNotifier) NotifyRequestOutcome(_ context.Context, candidate types.User, _ types.Project, status types.RequestStatus) error {
	return n.record(sentMail{Kind: "outcome", To: candidate.Email, Status: status})
}

func (n *recordingNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, m := range n.sent {
		if m.Kind == kind {
			total++
		}
	}
	return total
}

func newFiles(t *testing.T) (*storage.Storage, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewLocalDisk(dir)
	require.NoError(t, err)
	return storage.NewStorage(backend), dir
}

func seedUser(t *testing.T, db *memory.Store, user types.User) types.User {
	t.Helper()
	if user.Role == "" {
		user.Role = types.RoleStudent
	}
	user.Verified = true
	created, err := db.Repositories().Users.Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func student(charusatID string) types.User {
	return types.User{
		Email:      charusatID + "@charusat.edu.in",
		CharusatID: charusatID,
		FirstName:  "First" + charusatID,
		LastName:   "Last",
		Institute:  "CSPIT",
		Department: "CE",
	}
}

var nopLogger = zerolog.Nop()
