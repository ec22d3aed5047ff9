package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/types"
)

const (
	formFieldProfileImage = "profileImage"
	formFieldCertificates = "certificates"
	formFieldTitles       = "titles"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// ProfileRouter registers /profile routes. Every route requires auth.
func ProfileRouter(r chi.Router, profiles *services.ProfileService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewProfileHandler(profiles)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/getProfile", handler.GetProfile)
		r.Post("/updateProfile", handler.UpdateProfile)
		r.Post("/createProfile", handler.UpdateProfile)
		r.Post("/updateProfileImage", handler.UpdateProfileImage)
		r.Put("/updateProfileImage", handler.UpdateProfileImage)
		r.Post("/addProfileImage", handler.UpdateProfileImage)
		r.Post("/addCertificates", handler.AddCertificates)
		r.Delete("/deleteCertificate", handler.DeleteCertificate)
	})
}

type updateProfileRequest struct {
	Domain       string              `json:"domain"`
	AboutMe      string              `json:"aboutMe"`
	CurrCGPA     *float64            `json:"currCgpa"`
	PhoneNumber  string              `json:"phoneNumber"`
	Achievements json.RawMessage     `json:"achievements"`
	SocialLinks  json.RawMessage     `json:"socialLinks"`
	Skills       stringList          `json:"skills"`
	Experiences  []types.Experience  `json:"experiences"`
	Projects     []types.UserProject `json:"projects"`
	Certificates []types.Certificate `json:"certificates"`
}

type deleteCertificateRequest struct {
	CertificateID int `json:"certificateId"`
}

type imageResponse struct {
	Message      string `json:"message"`
	ProfilePhoto string `json:"profilePhoto"`
}

type certificatesResponse struct {
	Message      string              `json:"message"`
	Certificates []types.Certificate `json:"certificates"`
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "Profile fetched successfully", Profile: profile})
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), id, types.ProfileUpdate{
		Domain:       strings.TrimSpace(req.Domain),
		AboutMe:      req.AboutMe,
		CurrCGPA:     req.CurrCGPA,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Achievements: nullToEmpty(req.Achievements),
		SocialLinks:  nullToEmpty(req.SocialLinks),
		Skills:       req.Skills,
		Experiences:  req.Experiences,
		Projects:     req.Projects,
		Certificates: req.Certificates,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "Profile updated successfully", Profile: profile})
}

func (h *ProfileHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	uploads, err := readUploads(r.MultipartForm, formFieldProfileImage, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "profileImage file is required")
		return
	}

	path, err := h.profiles.UpdateProfileImage(r.Context(), id, uploads[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Message: "Profile image updated successfully", ProfilePhoto: path})
}

func (h *ProfileHandler) AddCertificates(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	uploads, err := readUploads(r.MultipartForm, formFieldCertificates, services.MaxCertificateFiles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.profiles.AddCertificates(r.Context(), id, uploads, parseList(r.FormValue(formFieldTitles)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, certificatesResponse{Message: "Certificates uploaded successfully", Certificates: created})
}

// DeleteCertificate reads certificateId from the JSON body or the query.
func (h *ProfileHandler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req deleteCertificateRequest
	if raw := strings.TrimSpace(r.URL.Query().Get("certificateId")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid certificateId")
			return
		}
		req.CertificateID = n
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CertificateID < 1 {
		writeError(w, http.StatusBadRequest, "certificateId is required")
		return
	}

	if err := h.profiles.DeleteCertificate(r.Context(), id, req.CertificateID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Certificate deleted successfully"})
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
