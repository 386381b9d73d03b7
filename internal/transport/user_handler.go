package transport

import (
	"net/http"
	"net/url"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
	FullName string `json:"full_name" form:"full_name" validate:"required,max=100"`
	Phone    string `json:"phone" form:"phone" validate:"max=30"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// ResetPasswordRequest redeems a reset token
type ResetPasswordRequest struct {
	Token           string `json:"token" form:"token" validate:"required"`
	Password        string `json:"password" form:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Success     bool        `json:"success"`
	AccessToken string      `json:"access_token"`
	User        UserProfile `json:"user"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Phone:    user.Phone,
		Role:     user.Role,
	}
}

// resetAcknowledgement is returned whether or not the email is known
const resetAcknowledgement = "If an account exists for that email, a reset link has been sent"

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	sessions    *session.Manager
	pages       pages
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, sessions *session.Manager, views *view.Renderer, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		sessions:    sessions,
		pages:       pages{sessions: sessions, views: views, logger: logger},
		logger:      logger,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/password/forgot", h.ForgotPassword)
		r.Post("/password/reset", h.ResetPassword)

		// Protected routes
		r.With(middleware.RequireUser(h.logger)).Get("/me", h.GetProfile)
	})

	r.Get("/password/reset", h.ResetPage)
	r.Post("/password/reset", h.ResetForm)
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Password, req.FullName, req.Phone)
	if err != nil {
		h.logger.Debug("Registration failed", zap.Error(err))
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	h.logger.Info("User registered successfully", zap.Int64("user_id", user.ID))
	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"user": profileOf(user)})
}

// Login authenticates the user, stores the identity in the session and issues an access token
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, accessToken, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	if err := h.sessions.Login(w, r, user); err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	h.logger.Info("User logged in successfully", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		AccessToken: accessToken,
		User:        profileOf(user),
	})
}

// Logout clears the whole session
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"message": "logged out successfully"})
}

// ForgotPassword issues a reset link. Unknown emails get the same answer.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.userService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"message": resetAcknowledgement})
}

// ResetPassword redeems a reset token
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"message": "password has been reset"})
}

// GetProfile returns the logged-in user's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"user": profileOf(user)})
}

// ResetPage renders the reset form the emailed link points to
func (h *UserHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.pages.redirect(w, r, session.FlashError, "The reset link is invalid", "/products")
		return
	}

	h.pages.render(w, r, http.StatusOK, view.PageReset, "Reset password", view.ResetData{Token: token})
}

// ResetForm handles the reset form submission
func (h *UserHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	err := middleware.DecodeRequest(r, &req)
	retry := "/password/reset?token=" + url.QueryEscape(req.Token)

	if err != nil {
		message := "Please check the form and try again"
		if fields := middleware.FormatValidationErrors(err); len(fields) > 0 {
			message = fields[0].Field + ": " + fields[0].Message
		}
		h.pages.redirect(w, r, session.FlashError, message, retry)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case domain.IsNotFound(err):
			h.pages.redirect(w, r, session.FlashError, "This reset link has expired or was already used", "/products")
		case middleware.StatusForError(err) == http.StatusBadRequest:
			h.pages.redirect(w, r, session.FlashError, err.Error(), retry)
		default:
			h.pages.fail(w, r, err)
		}
		return
	}

	h.pages.redirect(w, r, session.FlashSuccess, "Your password has been reset. You can now log in.", "/products")
}
