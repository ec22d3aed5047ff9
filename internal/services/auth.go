package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordHashCost  = 10
	minPasswordLength = 8

	defaultVerificationTTL = time.Hour
	defaultResetTTL        = 5 * time.Minute
)

var institutionalEmail = regexp.MustCompile(`^([\w.%+-]+@charusat\.edu\.in|[\w.%+-]+@charusat\.ac\.in)$`)

// AuthConfig holds the lifetimes of one-time codes.
type AuthConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	CharusatID string `json:"charusatId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.CharusatID = strings.TrimSpace(in.CharusatID)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = types.RoleStudent
	}
	in.Institute = strings.TrimSpace(in.Institute)
	in.Department = strings.TrimSpace(in.Department)
}

// Validate will run validation rules
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(
			&in.Email,
			validation.Required,
			validation.Match(institutionalEmail).Error("must be a charusat.edu.in or charusat.ac.in address"),
		),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&in.CharusatID, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.LastName, validation.Length(0, 200)),
		validation.Field(&in.Role, validation.In(types.RoleStudent, types.RoleFaculty)),
	)
}

// ResetPasswordInput is the payload of a password reset.
type ResetPasswordInput struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will run validation rules
func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Code, validation.Required),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(
			&in.ConfirmPassword,
			validation.Required,
			validation.By(stringEquals(in.Password, "passwords do not match")),
		),
	)
}

func stringEquals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

// AuthService implements registration, verification, sign-in and password
// recovery.
type AuthService struct {
	users    UserRepository
	tokens   *TokenIssuer
	notifier Notifier
	cfg      AuthConfig
	logger   zerolog.Logger
}

func NewAuthService(users UserRepository, tokens *TokenIssuer, notifier Notifier, cfg AuthConfig, logger zerolog.Logger) *AuthService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = defaultVerificationTTL
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register creates an unverified account and emails its verification code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return types.User{}, ValidationError("%s", err.Error())
	}

	emailTaken, err := s.exists(ctx, s.users.GetByEmail, in.Email)
	if err != nil {
		return types.User{}, err
	}
	idTaken, err := s.exists(ctx, s.users.GetByCharusatID, in.CharusatID)
	if err != nil {
		return types.User{}, err
	}
	switch {
	case emailTaken && idTaken:
		return types.User{}, newError(ErrConflict, "email and charusatId already exist")
	case emailTaken:
		return types.User{}, newError(ErrConflict, "email already exists")
	case idTaken:
		return types.User{}, newError(ErrConflict, "charusatId already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordHashCost)
	if err != nil {
		return types.User{}, err
	}
	code, err := generateCode()
	if err != nil {
		return types.User{}, err
	}
	expiresAt := time.Now().Add(s.cfg.VerificationTTL)

	user, err := s.users.Create(ctx, types.User{
		Email:                 in.Email,
		CharusatID:            in.CharusatID,
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		Role:                  in.Role,
		Institute:             in.Institute,
		Department:            in.Department,
		PasswordHash:          string(hashed),
		VerificationCode:      code,
		VerificationExpiresAt: &expiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(ErrConflict, "email or charusatId already exists")
		}
		return types.User{}, err
	}

	if err := s.notifier.SendVerificationCode(ctx, user, code); err != nil {
		s.logger.Warn().Err(err).Int("user_id", user.ID).Msg("send verification code")
	}
	return user, nil
}

func (s *AuthService) exists(ctx context.Context, get func(context.Context, string) (types.User, error), key string) (bool, error) {
	_, err := get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Verify consumes a registration code. An expired code deletes the pending
// account.
func (s *AuthService) Verify(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ValidationError("email and code are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrInvalidCode, "invalid email or verification code")
		}
		return err
	}
	if user.VerificationCode == "" || user.VerificationCode != code {
		return newError(ErrInvalidCode, "invalid email or verification code")
	}

	if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		if err := s.users.Delete(ctx, user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return newError(ErrCodeExpired, "verification code expired, please register again")
	}

	return s.users.MarkVerified(ctx, user.ID)
}

// SignIn checks credentials and returns a session token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return "", types.User{}, ValidationError("email: %s", err.Error())
	}
	if password == "" {
		return "", types.User{}, ValidationError("password: cannot be blank")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", types.User{}, ErrInvalidCredentials
		}
		return "", types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", types.User{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return "", types.User{}, ErrNotVerified
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", types.User{}, err
	}
	return token, user, nil
}

// ForgotPassword stores a reset code and emails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ValidationError("email: %s", err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user")
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.users.SetResetCode(ctx, user.ID, code, time.Now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}

	if err := s.notifier.SendResetCode(ctx, user, code); err != nil {
		s.logger.Warn().Err(err).Int("user_id", user.ID).Msg("send reset code")
	}
	return nil
}

// ResetPassword replaces the password when the reset code matches.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Code = strings.TrimSpace(in.Code)
	if err := in.Validate(); err != nil {
		return ValidationError("%s", err.Error())
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user")
		}
		return err
	}
	if user.ResetCode == "" || user.ResetCode != in.Code {
		return newError(ErrInvalidCode, "invalid reset code")
	}
	if user.ResetExpiresAt == nil || time.Now().After(*user.ResetExpiresAt) {
		return newError(ErrCodeExpired, "reset code expired")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordHashCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hashed))
}
