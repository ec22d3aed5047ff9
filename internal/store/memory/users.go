package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
)

// UserRepository is the in-memory user table.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	if err := r.s.lock("GetByID"); err != nil {
		return types.User{}, err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.data.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if err := r.s.lock("GetByEmail"); err != nil {
		return types.User{}, err
	}
	defer r.s.mu.Unlock()

	for _, user := range r.s.data.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByCharusatID(ctx context.Context, charusatID string) (types.User, error) {
	if err := r.s.lock("GetByCharusatID"); err != nil {
		return types.User{}, err
	}
	defer r.s.mu.Unlock()

	for _, user := range r.s.data.users {
		if user.CharusatID == charusatID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) ListByCharusatIDs(ctx context.Context, charusatIDs []string) ([]types.User, error) {
	if err := r.s.lock("ListByCharusatIDs"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	users := []types.User{}
	for _, user := range r.s.data.users {
		if slices.Contains(charusatIDs, user.CharusatID) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := r.s.lock("Create"); err != nil {
		return types.User{}, err
	}
	defer r.s.mu.Unlock()

	for _, existing := range r.s.data.users {
		if existing.Email == user.Email || existing.CharusatID == user.CharusatID {
			return types.User{}, store.ErrConflict
		}
	}

	now := time.Now()
	user.ID = r.s.data.nextID("users")
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.CurrWorkingProjects == nil {
		user.CurrWorkingProjects = []int{}
	}
	r.s.data.users[user.ID] = user
	return user, nil
}

// update applies fn to a copy of the user and stores the result.
func (r *UserRepository) update(method string, id int, fn func(u *types.User)) error {
	if err := r.s.lock(method); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.data.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now()
	r.s.data.users[id] = user
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id int) error {
	return r.update("MarkVerified", id, func(u *types.User) {
		u.Verified = true
		u.VerificationCode = ""
		u.VerificationExpiresAt = nil
	})
}

func (r *UserRepository) SetResetCode(ctx context.Context, id int, code string, expiresAt time.Time) error {
	return r.update("SetResetCode", id, func(u *types.User) {
		u.ResetCode = code
		u.ResetExpiresAt = &expiresAt
	})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	return r.update("UpdatePassword", id, func(u *types.User) {
		u.PasswordHash = passwordHash
		u.ResetCode = ""
		u.ResetExpiresAt = nil
	})
}

func (r *UserRepository) UpdateProfileFields(ctx context.Context, id int, update types.ProfileUpdate) error {
	return r.update("UpdateProfileFields", id, func(u *types.User) {
		u.Domain = update.Domain
		u.AboutMe = update.AboutMe
		u.CurrCGPA = update.CurrCGPA
		u.PhoneNumber = update.PhoneNumber
		u.Achievements = update.Achievements
		u.SocialLinks = update.SocialLinks
	})
}

func (r *UserRepository) SetProfilePhoto(ctx context.Context, id int, path string) error {
	return r.update("SetProfilePhoto", id, func(u *types.User) {
		u.ProfilePhoto = path
	})
}

func (r *UserRepository) AddWorkingProject(ctx context.Context, userID, projectID int) error {
	return r.update("AddWorkingProject", userID, func(u *types.User) {
		if !slices.Contains(u.CurrWorkingProjects, projectID) {
			u.CurrWorkingProjects = append(slices.Clone(u.CurrWorkingProjects), projectID)
		}
	})
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	if err := r.s.lock("Delete"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.users[id]; !ok {
		return store.ErrNotFound
	}
	r.s.data.deleteUser(id)
	return nil
}

func (r *UserRepository) DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error) {
	if err := r.s.lock("DeleteExpiredUnverified"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var deleted int64
	for id, user := range r.s.data.users {
		if user.Verified || user.VerificationCode == "" || user.VerificationExpiresAt == nil {
			continue
		}
		if user.VerificationExpiresAt.Before(now) {
			r.s.data.deleteUser(id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *UserRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	if err := r.s.lock("ClearExpiredResetCodes"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var cleared int64
	for id, user := range r.s.data.users {
		if user.ResetCode == "" || user.ResetExpiresAt == nil || !user.ResetExpiresAt.Before(now) {
			continue
		}
		user.ResetCode = ""
		user.ResetExpiresAt = nil
		r.s.data.users[id] = user
		cleared++
	}
	return cleared, nil
}

// deleteUser removes a user and cascades to owned rows.
func (s *state) deleteUser(id int) {
	delete(s.users, id)
	s.skills = slices.DeleteFunc(slices.Clone(s.skills), func(v types.Skill) bool { return v.UserID == id })
	s.experiences = slices.DeleteFunc(slices.Clone(s.experiences), func(v types.Experience) bool { return v.UserID == id })
	s.userProjects = slices.DeleteFunc(slices.Clone(s.userProjects), func(v types.UserProject) bool { return v.UserID == id })
	for certID, cert := range s.certificates {
		if cert.UserID == id {
			delete(s.certificates, certID)
		}
	}
	for reqID, req := range s.requests {
		if req.UserID == id {
			delete(s.requests, reqID)
		}
	}
}
