package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bhairab0311/LMSYSTEM/internal/constants"
	"github.com/bhairab0311/LMSYSTEM/internal/mailer"
	"github.com/bhairab0311/LMSYSTEM/internal/middleware"
	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

const (
	verificationCodeTTL     = 15 * time.Minute
	resetTokenTTL           = 15 * time.Minute
	maxPendingRegistrations = 5
)

type AuthHandler struct {
	UserCol     *mongo.Collection
	Mailer      mailer.Mailer
	AuditLogger utils.Logger
	Config      struct {
		FrontendURL string
		TokenTTL    time.Duration
	}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=16"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.JSONError(w, "Please enter a name, a valid email and a password of 8 to 16 characters", http.StatusBadRequest)
		return
	}

	verified, err := h.UserCol.CountDocuments(r.Context(), bson.M{"email": req.Email, "account_verified": true})
	if err != nil {
		utils.JSONError(w, "Failed to check existing users", http.StatusInternalServerError)
		return
	}
	if verified > 0 {
		utils.JSONError(w, "User already exists", http.StatusBadRequest)
		return
	}

	pending, err := h.UserCol.CountDocuments(r.Context(), bson.M{"email": req.Email, "account_verified": false})
	if err != nil {
		utils.JSONError(w, "Failed to check existing users", http.StatusInternalServerError)
		return
	}
	if pending >= maxPendingRegistrations {
		utils.JSONError(w, "You have exceeded the number of registration attempts, please contact support", http.StatusBadRequest)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.JSONError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}
	code, err := utils.GenerateVerificationCode()
	if err != nil {
		utils.JSONError(w, "Failed to generate verification code", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := models.User{
		ID:                     primitive.NewObjectID(),
		Name:                   req.Name,
		Email:                  req.Email,
		Password:               hash,
		Role:                   models.RoleMember,
		BorrowedBooks:          []models.BorrowEntry{},
		VerificationCode:       code,
		VerificationCodeExpire: now.Add(verificationCodeTTL),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if _, err := h.UserCol.InsertOne(r.Context(), user); err != nil {
		utils.JSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	if err := h.Mailer.Send(r.Context(), mailer.VerificationEmail(user.Email, user.Name, code)); err != nil {
		utils.JSONError(w, "Failed to send verification email", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.UserEntity, constants.Register, user.Email, user.ID)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Verification code sent to " + user.Email,
	})
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   int    `json:"otp"`
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.OTP == 0 {
		utils.JSONError(w, "Email or OTP is missing", http.StatusBadRequest)
		return
	}

	// Newest pending registration wins; stale attempts for the same email
	// are removed once the winner is known.
	cursor, err := h.UserCol.Find(r.Context(),
		bson.M{"email": req.Email, "account_verified": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		utils.JSONError(w, "Failed to look up user", http.StatusInternalServerError)
		return
	}
	var pending []models.User
	if err := cursor.All(r.Context(), &pending); err != nil {
		utils.JSONError(w, "Failed to look up user", http.StatusInternalServerError)
		return
	}
	if len(pending) == 0 {
		utils.JSONError(w, "User not found", http.StatusNotFound)
		return
	}

	user := pending[0]
	if len(pending) > 1 {
		h.UserCol.DeleteMany(r.Context(), bson.M{
			"_id":              bson.M{"$ne": user.ID},
			"email":            req.Email,
			"account_verified": false,
		})
	}

	if user.VerificationCode != req.OTP {
		utils.JSONError(w, "Invalid OTP", http.StatusBadRequest)
		return
	}
	if time.Now().After(user.VerificationCodeExpire) {
		utils.JSONError(w, "OTP expired", http.StatusBadRequest)
		return
	}

	_, err = h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{
		"$set":   bson.M{"account_verified": true, "updated_at": time.Now()},
		"$unset": bson.M{"verification_code": "", "verification_code_expire": ""},
	})
	if err != nil {
		utils.JSONError(w, "Failed to verify account", http.StatusInternalServerError)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), h.Config.TokenTTL)
	if err != nil {
		utils.JSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(r.Context(), models.UserEntity, constants.VerifyAccount, user.Email, user.ID)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Account verified",
		"token":   token,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.JSONError(w, "Please enter all fields", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.UserCol.FindOne(r.Context(), bson.M{"email": req.Email, "account_verified": true}).Decode(&user)
	if err != nil {
		utils.JSONError(w, "Invalid email or password", http.StatusBadRequest)
		return
	}
	if !utils.ComparePassword(user.Password, req.Password) {
		utils.JSONError(w, "Invalid email or password", http.StatusBadRequest)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), h.Config.TokenTTL)
	if err != nil {
		utils.JSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Logged in successfully",
		"token":   token,
		"user":    user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Now(),
		HttpOnly: true,
		Path:     "/",
	})
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.JSONError(w, "Email is required", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.UserCol.FindOne(r.Context(), bson.M{"email": req.Email, "account_verified": true}).Decode(&user)
	if err != nil {
		utils.JSONError(w, "Invalid email", http.StatusBadRequest)
		return
	}

	token, hashed, err := utils.GenerateResetToken()
	if err != nil {
		utils.JSONError(w, "Failed to generate reset token", http.StatusInternalServerError)
		return
	}

	_, err = h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{"$set": bson.M{
		"reset_password_token":  hashed,
		"reset_password_expire": time.Now().Add(resetTokenTTL),
	}})
	if err != nil {
		utils.JSONError(w, "Failed to store reset token", http.StatusInternalServerError)
		return
	}

	resetURL := h.Config.FrontendURL + "/password/reset/" + token
	if err := h.Mailer.Send(r.Context(), mailer.PasswordResetEmail(user.Email, resetURL)); err != nil {
		// Roll the token back so a failed send cannot leave a live token.
		h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{"$unset": bson.M{
			"reset_password_token":  "",
			"reset_password_expire": "",
		}})
		utils.JSONError(w, "Failed to send reset email", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Email sent to " + user.Email + " successfully",
	})
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=16"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.JSONError(w, "Passwords must match and be 8 to 16 characters", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.UserCol.FindOne(r.Context(), bson.M{
		"reset_password_token":  utils.HashToken(token),
		"reset_password_expire": bson.M{"$gt": time.Now()},
	}).Decode(&user)
	if err != nil {
		utils.JSONError(w, "Reset password token is invalid or has expired", http.StatusBadRequest)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.JSONError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	_, err = h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{
		"$set":   bson.M{"password": hash, "updated_at": time.Now()},
		"$unset": bson.M{"reset_password_token": "", "reset_password_expire": ""},
	})
	if err != nil {
		utils.JSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	newToken, err := utils.GenerateJWT(user.ID.Hex(), h.Config.TokenTTL)
	if err != nil {
		utils.JSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Password reset successfully",
		"token":   newToken,
	})
}

type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max=16"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.JSONError(w, "New passwords must match and be 8 to 16 characters", http.StatusBadRequest)
		return
	}
	if !utils.ComparePassword(user.Password, req.CurrentPassword) {
		utils.JSONError(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.JSONError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	_, err = h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": time.Now(),
	}})
	if err != nil {
		utils.JSONError(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Password updated",
	})
}
