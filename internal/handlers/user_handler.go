package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bhairab0311/LMSYSTEM/internal/constants"
	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

type UserHandler struct {
	UserCol     *mongo.Collection
	AuditLogger utils.Logger
}

func NewUserHandler(userCol *mongo.Collection, logger utils.Logger) *UserHandler {
	return &UserHandler{UserCol: userCol, AuditLogger: logger}
}

// GET /users
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := h.UserCol.Find(ctx, bson.M{"account_verified": true})
	if err != nil {
		utils.JSONError(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		utils.JSONError(w, "Error decoding users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"users":   users,
	})
}

// POST /users/admin
func (h *UserHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.JSONError(w, "Please enter a name, a valid email and a password of 8 to 16 characters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := h.UserCol.CountDocuments(ctx, bson.M{"email": req.Email, "account_verified": true})
	if err != nil {
		utils.JSONError(w, "Failed to check existing users", http.StatusInternalServerError)
		return
	}
	if count > 0 {
		utils.JSONError(w, "User already registered", http.StatusBadRequest)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.JSONError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	admin := models.User{
		ID:              primitive.NewObjectID(),
		Name:            req.Name,
		Email:           req.Email,
		Password:        hash,
		Role:            models.RoleAdmin,
		AccountVerified: true,
		BorrowedBooks:   []models.BorrowEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := h.UserCol.InsertOne(ctx, admin); err != nil {
		utils.JSONError(w, "Failed to register admin", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.UserEntity, constants.RegisterAdmin, actorEmail(r), admin.Email)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Admin registered successfully",
		"admin":   admin,
	})
}
