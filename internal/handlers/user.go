package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/types"
)

// RateLimiter wraps handlers with a per-client limit for resource.
type RateLimiter interface {
	Middleware(resource string) func(http.Handler) http.Handler
}

// UserHandler serves registration, sign-in and password recovery.
type UserHandler struct {
	auth     *services.AuthService
	profiles *services.ProfileService
}

func NewUserHandler(auth *services.AuthService, profiles *services.ProfileService) *UserHandler {
	return &UserHandler{auth: auth, profiles: profiles}
}

// UserRouter registers /user routes. limiter may be nil.
func UserRouter(
	r chi.Router,
	auth *services.AuthService,
	profiles *services.ProfileService,
	authMiddleware func(http.Handler) http.Handler,
	limiter RateLimiter,
) {
	handler := NewUserHandler(auth, profiles)

	limit := func(resource string) func(http.Handler) http.Handler {
		if limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return limiter.Middleware(resource)
	}

	r.With(limit("register")).Post("/register", handler.Register)
	r.With(limit("verify")).Post("/verify", handler.Verify)
	r.With(limit("signin")).Post("/signin", handler.SignIn)
	r.With(limit("forgotPassword")).Post("/forgotPassword", handler.ForgotPassword)
	r.With(limit("resetPassword")).Post("/resetPassword", handler.ResetPassword)
	r.With(authMiddleware).Get("/profile", handler.Profile)
}

type registerResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type verifyRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
	Code             string `json:"code"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    types.User `json:"user"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type profileResponse struct {
	Message string `json:"message"`
	types.Profile
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		Message: "User registered, a verification code has been sent to your email",
		User:    user,
	})
}

func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := req.VerificationCode
	if code == "" {
		code = req.Code
	}

	if err := h.auth.Verify(r.Context(), req.Email, code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User verified successfully"})
}

func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{Message: "Sign-in successful", Token: token, User: user})
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "A reset code has been sent to your email"})
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req services.ResetPasswordInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

// Profile returns the public profile for ?charusatId=, defaulting to the
// caller.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	charusatID := strings.TrimSpace(r.URL.Query().Get("charusatId"))
	if charusatID == "" {
		charusatID = claims.CharusatID
	}

	profile, err := h.profiles.GetProfileByCharusatID(r.Context(), charusatID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "Profile fetched successfully", Profile: profile})
}
