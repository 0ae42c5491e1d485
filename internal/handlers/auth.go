package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/utils"
)

type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) Signup(ctx *gin.Context) {
	var body SignupRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.logger(ctx).WithError(err).Debug("Failed to bind JSON")
		h.Metrics.RecordSignup("invalid")
		ctx.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err, "Username, email and password are required")})
		return
	}

	_, err := h.Auth.Signup(ctx.Request.Context(), services.SignupInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})

	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			h.Metrics.RecordSignup("invalid")
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Username, email and password are required"})
		case errors.Is(err, services.ErrEmailExists):
			h.Metrics.RecordSignup("duplicate")
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Email already exists"})
		case errors.Is(err, services.ErrMailDelivery):
			h.Metrics.RecordSignup("mail_failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error sending confirmation email"})
		default:
			h.logger(ctx).WithError(err).Error("Failed to create user")
			h.Metrics.RecordSignup("error")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		}
		return
	}

	h.Metrics.RecordSignup("created")
	ctx.JSON(http.StatusOK, gin.H{"message": "Signup successful! Please check your email."})
}

func (h *Handler) Confirm(ctx *gin.Context) {
	err := h.Auth.Confirm(ctx.Request.Context(), ctx.Query("email"))

	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid confirmation link or user does not exist"})
			return
		}
		h.logger(ctx).WithError(err).Error("Failed to confirm email")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error confirming email"})
		return
	}

	ctx.Redirect(http.StatusFound, h.ConfirmRedirect)
}

func (h *Handler) IsConfirmed(ctx *gin.Context) {
	confirmed, err := h.Auth.IsConfirmed(ctx.Request.Context(), ctx.Query("email"))

	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		case errors.Is(err, services.ErrUserNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.logger(ctx).WithError(err).Error("Failed to check confirmation")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"confirmed": confirmed})
}

func (h *Handler) Login(ctx *gin.Context) {
	var body LoginRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err, "Email and password are required")})
		return
	}

	user, err := h.Auth.Login(ctx.Request.Context(), body.Email, body.Password)

	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		case errors.Is(err, services.ErrUserNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrEmailNotConfirmed):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Please confirm your email before logging in."})
		case errors.Is(err, services.ErrIncorrectPassword):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect password"})
		default:
			h.logger(ctx).WithError(err).Error("Failed to log in")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	token, err := h.Tokens.Generate(user.ID, user.Email)

	if err != nil {
		h.logger(ctx).WithError(err).Error("Failed to generate JWT")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	h.setTokenCookie(ctx, token, int(h.Tokens.TTL().Seconds()))

	ctx.JSON(http.StatusOK, gin.H{
		"message":        "Login successful",
		"emailConfirmed": user.Confirmed,
		"user": UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
		"token": token,
	})
}

func (h *Handler) Me(ctx *gin.Context) {
	currentUser, err := utils.CurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": UserResponse{
			ID:       currentUser.ID,
			Username: currentUser.Name,
			Email:    currentUser.Email,
		},
	})
}

func (h *Handler) Logout(ctx *gin.Context) {
	h.setTokenCookie(ctx, "", -1)

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// bindMessage keeps the field message for requests that parsed but failed
// validation. Malformed JSON gets the generic one.
func bindMessage(err error, missing string) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return missing
	}

	return "Invalid request"
}
