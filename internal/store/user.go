package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/types"
)

const userColumns = `
	id, email, charusat_id, first_name, last_name, password_hash, role,
	institute, department, verified, verification_code, expires_at,
	reset_code, reset_expires_at, domain, about_me, curr_cgpa, phone_number,
	profile_photo, achievements, social_links, curr_working_projects,
	created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(db db.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user             types.User
		verificationCode sql.NullString
		expiresAt        sql.NullTime
		resetCode        sql.NullString
		resetExpiresAt   sql.NullTime
		cgpa             sql.NullFloat64
		achievements     []byte
		socialLinks      []byte
		working          pq.Int64Array
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.CharusatID,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.Institute,
		&user.Department,
		&user.Verified,
		&verificationCode,
		&expiresAt,
		&resetCode,
		&resetExpiresAt,
		&user.Domain,
		&user.AboutMe,
		&cgpa,
		&user.PhoneNumber,
		&user.ProfilePhoto,
		&achievements,
		&socialLinks,
		&working,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}

	user.VerificationCode = verificationCode.String
	user.VerificationExpiresAt = timePtr(expiresAt)
	user.ResetCode = resetCode.String
	user.ResetExpiresAt = timePtr(resetExpiresAt)
	if cgpa.Valid {
		v := cgpa.Float64
		user.CurrCGPA = &v
	}
	user.Achievements = achievements
	user.SocialLinks = socialLinks
	user.CurrWorkingProjects = intsFromInt64(working)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByCharusatID(ctx context.Context, charusatID string) (types.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE charusat_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, charusatID))
}

// ListByCharusatIDs returns the users matching the given institutional IDs.
// Unknown IDs are skipped.
func (r *UserRepository) ListByCharusatIDs(ctx context.Context, charusatIDs []string) ([]types.User, error) {
	if len(charusatIDs) == 0 {
		return []types.User{}, nil
	}
	query := `SELECT` + userColumns + ` FROM users WHERE charusat_id = ANY($1) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(charusatIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0, len(charusatIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (
			email, charusat_id, first_name, last_name, password_hash, role,
			institute, department, verified, verification_code, expires_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.CharusatID,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		user.Institute,
		user.Department,
		user.Verified,
		nullString(user.VerificationCode),
		nullTime(user.VerificationExpiresAt),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// MarkVerified activates the account and consumes the verification code.
func (r *UserRepository) MarkVerified(ctx context.Context, id int) error {
	const query = `
		UPDATE users
		SET verified = TRUE,
			verification_code = NULL,
			expires_at = NULL,
			updated_at = $1
		WHERE id = $2`
	return r.execOne(ctx, query, time.Now(), id)
}

// SetResetCode stores a password reset code with its expiry.
func (r *UserRepository) SetResetCode(ctx context.Context, id int, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_code = $1,
			reset_expires_at = $2,
			updated_at = $3
		WHERE id = $4`
	return r.execOne(ctx, query, code, expiresAt, time.Now(), id)
}

// UpdatePassword stores a new hash and consumes any reset code.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			reset_code = NULL,
			reset_expires_at = NULL,
			updated_at = $2
		WHERE id = $3`
	return r.execOne(ctx, query, passwordHash, time.Now(), id)
}

// UpdateProfileFields overwrites the scalar profile columns.
func (r *UserRepository) UpdateProfileFields(ctx context.Context, id int, update types.ProfileUpdate) error {
	var cgpa sql.NullFloat64
	if update.CurrCGPA != nil {
		cgpa = sql.NullFloat64{Float64: *update.CurrCGPA, Valid: true}
	}

	const query = `
		UPDATE users
		SET domain = $1,
			about_me = $2,
			curr_cgpa = $3,
			phone_number = $4,
			achievements = $5,
			social_links = $6,
			updated_at = $7
		WHERE id = $8`
	return r.execOne(
		ctx,
		query,
		update.Domain,
		update.AboutMe,
		cgpa,
		update.PhoneNumber,
		jsonOrDefault(update.Achievements, "[]"),
		jsonOrDefault(update.SocialLinks, "{}"),
		time.Now(),
		id,
	)
}

func (r *UserRepository) SetProfilePhoto(ctx context.Context, id int, path string) error {
	const query = `UPDATE users SET profile_photo = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, path, time.Now(), id)
}

// AddWorkingProject appends projectID to the user's working-project list
// unless it is already present.
func (r *UserRepository) AddWorkingProject(ctx context.Context, userID, projectID int) error {
	const query = `
		UPDATE users
		SET curr_working_projects = CASE
				WHEN $1 = ANY(curr_working_projects) THEN curr_working_projects
				ELSE array_append(curr_working_projects, $1)
			END,
			updated_at = $2
		WHERE id = $3`
	return r.execOne(ctx, query, projectID, time.Now(), userID)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// DeleteExpiredUnverified removes accounts whose registration code expired
// before now without being confirmed.
func (r *UserRepository) DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		DELETE FROM users
		WHERE verified = FALSE
			AND verification_code IS NOT NULL
			AND expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ClearExpiredResetCodes drops reset codes whose window has elapsed.
func (r *UserRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET reset_code = NULL,
			reset_expires_at = NULL
		WHERE reset_code IS NOT NULL
			AND reset_expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
