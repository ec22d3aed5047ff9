package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/projectplus/apiserver/internal/storage"
	"github.com/projectplus/apiserver/internal/store"
	"github.com/projectplus/apiserver/types"
	"github.com/rs/zerolog"
)

// MaxCertificateFiles caps the certificates accepted by one upload.
const MaxCertificateFiles = 10

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	tx     Transactor
	files  FileStore
	logger zerolog.Logger
}

func NewProfileService(tx Transactor, files FileStore, logger zerolog.Logger) *ProfileService {
	return &ProfileService{tx: tx, files: files, logger: logger}
}

// GetProfile returns the user with every profile collection.
func (s *ProfileService) GetProfile(ctx context.Context, userID int) (types.Profile, error) {
	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return types.Profile{}, mapNotFound(err, "user")
	}
	return s.load(ctx, repos, user)
}

// GetProfileByCharusatID returns the public profile of a user.
func (s *ProfileService) GetProfileByCharusatID(ctx context.Context, charusatID string) (types.Profile, error) {
	charusatID = strings.TrimSpace(charusatID)
	if charusatID == "" {
		return types.Profile{}, ValidationError("charusatId is required")
	}
	repos := s.tx.Repositories()
	user, err := repos.Users.GetByCharusatID(ctx, charusatID)
	if err != nil {
		return types.Profile{}, mapNotFound(err, "user")
	}
	return s.load(ctx, repos, user)
}

func (s *ProfileService) load(ctx context.Context, repos Repositories, user types.User) (types.Profile, error) {
	profile := types.Profile{User: user}

	var err error
	if profile.Skills, err = repos.Profiles.ListSkills(ctx, user.ID); err != nil {
		return types.Profile{}, err
	}
	if profile.Experiences, err = repos.Profiles.ListExperiences(ctx, user.ID); err != nil {
		return types.Profile{}, err
	}
	if profile.Projects, err = repos.Profiles.ListUserProjects(ctx, user.ID); err != nil {
		return types.Profile{}, err
	}
	if profile.Certificates, err = repos.Profiles.ListCertificates(ctx, user.ID); err != nil {
		return types.Profile{}, err
	}

	working, err := repos.Projects.ListByIDs(ctx, user.CurrWorkingProjects)
	if err != nil {
		return types.Profile{}, err
	}
	profile.CurrWorkingProjects = make([]types.ProjectSummary, 0, len(working))
	for _, p := range working {
		profile.CurrWorkingProjects = append(profile.CurrWorkingProjects, p.Summary())
	}
	return profile, nil
}

func validateProfileUpdate(update types.ProfileUpdate) error {
	err := validation.Errors{
		"currCgpa":    validation.Validate(update.CurrCGPA, validation.Min(0.0), validation.Max(10.0)),
		"phoneNumber": validation.Validate(update.PhoneNumber, validation.Length(0, 20)),
		"achievements": validation.Validate(update.Achievements,
			validation.By(validJSON("must be a JSON document"))),
		"socialLinks": validation.Validate(update.SocialLinks,
			validation.By(validJSON("must be a JSON document"))),
	}.Filter()
	if err != nil {
		return ValidationError("%s", err.Error())
	}
	return nil
}

func validJSON(message string) validation.RuleFunc {
	return func(value interface{}) error {
		raw, _ := value.(json.RawMessage)
		if len(raw) > 0 && !json.Valid(raw) {
			return errors.New(message)
		}
		return nil
	}
}

// UpdateProfile applies a replace-on-write update in one transaction. After
// it returns, skills, experiences and projects equal the payload exactly.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int, update types.ProfileUpdate) (types.Profile, error) {
	if err := validateProfileUpdate(update); err != nil {
		return types.Profile{}, err
	}
	skills := cleanStrings(update.Skills)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Users.GetByID(ctx, userID); err != nil {
			return mapNotFound(err, "user")
		}
		if err := repos.Users.UpdateProfileFields(ctx, userID, update); err != nil {
			return err
		}
		if err := repos.Profiles.ReplaceSkills(ctx, userID, skills); err != nil {
			return err
		}
		if err := repos.Profiles.ReplaceExperiences(ctx, userID, update.Experiences); err != nil {
			return err
		}
		if err := repos.Profiles.ReplaceUserProjects(ctx, userID, update.Projects); err != nil {
			return err
		}
		if len(update.Certificates) > 0 {
			if _, err := repos.Profiles.AddCertificates(ctx, userID, update.Certificates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.Profile{}, err
	}
	return s.GetProfile(ctx, userID)
}

// UpdateProfileImage stores a new profile image and points the user at it.
func (s *ProfileService) UpdateProfileImage(ctx context.Context, userID int, upload types.Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", ValidationError("profileImage file is required")
	}
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !imageExtensions[ext] {
		return "", ValidationError("profileImage must be a jpg, jpeg, png, gif or webp file")
	}

	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return "", mapNotFound(err, "user")
	}

	publicPath, err := s.files.Save(ctx, storage.ProfileImageKey(user.CharusatID, upload.Filename), upload)
	if err != nil {
		return "", err
	}
	if err := repos.Users.SetProfilePhoto(ctx, userID, publicPath); err != nil {
		return "", err
	}

	if old := user.ProfilePhoto; old != "" && old != publicPath {
		s.removeFile(ctx, old)
	}
	return publicPath, nil
}

// AddCertificates stores the uploaded files and appends certificate records.
// titles are matched by index; a missing title defaults to the file name.
func (s *ProfileService) AddCertificates(ctx context.Context, userID int, uploads []types.Upload, titles []string) ([]types.Certificate, error) {
	if len(uploads) == 0 {
		return nil, ValidationError("at least one certificate file is required")
	}
	if len(uploads) > MaxCertificateFiles {
		return nil, ValidationError("at most %d certificate files are allowed", MaxCertificateFiles)
	}

	repos := s.tx.Repositories()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, "user")
	}

	saved := make([]string, 0, len(uploads))
	certificates := make([]types.Certificate, 0, len(uploads))
	for i, upload := range uploads {
		publicPath, err := s.files.Save(ctx, storage.CertificateKey(user.CharusatID, upload.Filename), upload)
		if err != nil {
			s.removeFiles(ctx, saved)
			return nil, err
		}
		saved = append(saved, publicPath)

		title := strings.TrimSuffix(filepath.Base(upload.Filename), filepath.Ext(upload.Filename))
		if i < len(titles) && strings.TrimSpace(titles[i]) != "" {
			title = strings.TrimSpace(titles[i])
		}
		certificates = append(certificates, types.Certificate{UserID: userID, Title: title, URL: publicPath})
	}

	created, err := repos.Profiles.AddCertificates(ctx, userID, certificates)
	if err != nil {
		s.removeFiles(ctx, saved)
		return nil, err
	}
	return created, nil
}

// DeleteCertificate removes a certificate owned by userID.
func (s *ProfileService) DeleteCertificate(ctx context.Context, userID, certificateID int) error {
	repos := s.tx.Repositories()
	certificate, err := repos.Profiles.GetCertificate(ctx, certificateID)
	if err != nil {
		return mapNotFound(err, "certificate")
	}
	if certificate.UserID != userID {
		return forbidden("certificate belongs to another user")
	}

	if err := repos.Profiles.DeleteCertificate(ctx, certificateID); err != nil {
		return mapNotFound(err, "certificate")
	}
	s.removeFile(ctx, certificate.URL)
	return nil
}

func (s *ProfileService) removeFile(ctx context.Context, publicPath string) {
	removeFileBestEffort(ctx, s.files, s.logger, publicPath)
}

func (s *ProfileService) removeFiles(ctx context.Context, paths []string) {
	for _, p := range paths {
		s.removeFile(ctx, p)
	}
}

func removeFileBestEffort(ctx context.Context, files FileStore, logger zerolog.Logger, publicPath string) {
	if err := files.Remove(ctx, publicPath); err != nil {
		logger.Warn().Err(err).Str("path", publicPath).Msg("remove stored file")
	}
}

func mapNotFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(entity)
	}
	return err
}

// cleanStrings trims values and drops empty entries.
func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
