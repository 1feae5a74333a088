package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bhairab0311/LMSYSTEM/internal/constants"
	"github.com/bhairab0311/LMSYSTEM/internal/middleware"
	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

type BookHandler struct {
	BookCollection *mongo.Collection
	AuditLogger    utils.Logger
}

func NewBookHandler(bookColl *mongo.Collection, logger utils.Logger) *BookHandler {
	return &BookHandler{
		BookCollection: bookColl,
		AuditLogger:    logger,
	}
}

// actorEmail identifies the caller for audit entries.
func actorEmail(r *http.Request) string {
	if user := middleware.UserFromContext(r.Context()); user != nil {
		return user.Email
	}
	return "system"
}

type AddBookRequest struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"required,gte=1"`
}

// POST /books
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	var req AddBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.JSONError(w, "Title, author and a positive quantity are required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	book := models.Book{
		ID:                primitive.NewObjectID(),
		Title:             req.Title,
		Author:            req.Author,
		Description:       req.Description,
		Price:             req.Price,
		TotalQuantity:     req.Quantity,
		AvailableQuantity: req.Quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	book.RecomputeAvailability()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := h.BookCollection.InsertOne(ctx, book)
	if err != nil {
		utils.JSONError(w, "Insert failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Create, actorEmail(r), book)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"book":    book,
	})
}

// GET /books
func (h *BookHandler) GetBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := h.BookCollection.Find(ctx, bson.M{})
	if err != nil {
		utils.JSONError(w, "Failed to fetch books", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var books []models.Book
	if err = cursor.All(ctx, &books); err != nil {
		utils.JSONError(w, "Error decoding books", http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []models.Book{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"books":   books,
	})
}

// GET /books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var book models.Book
	if err := h.BookCollection.FindOne(ctx, bson.M{"_id": bookID}).Decode(&book); err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"book":    book,
	})
}

// GET /books/search?q=
func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.JSONError(w, "Search query is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"title": bson.M{"$regex": query, "$options": "i"}},
		bson.M{"author": bson.M{"$regex": query, "$options": "i"}},
	}}

	cursor, err := h.BookCollection.Find(ctx, filter)
	if err != nil {
		utils.JSONError(w, "Failed to search books: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var results []models.Book
	if err = cursor.All(ctx, &results); err != nil {
		utils.JSONError(w, "Failed to decode books", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.Book{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"books":   results,
	})
}

// updatableBookFields guards the patch endpoint: quantity fields are owned
// by the borrow workflow and must not be edited directly.
var updatableBookFields = map[string]bool{
	"title":       true,
	"author":      true,
	"description": true,
	"price":       true,
}

// PUT /books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	var updateData map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		utils.JSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	patch := bson.M{}
	for field, value := range updateData {
		if updatableBookFields[field] {
			patch[field] = value
		}
	}
	if len(patch) == 0 {
		utils.JSONError(w, "No update fields provided", http.StatusBadRequest)
		return
	}
	patch["updated_at"] = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := h.BookCollection.UpdateByID(ctx, bookID, bson.M{"$set": patch})
	if err != nil {
		utils.JSONError(w, "Update failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if result.MatchedCount == 0 {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Update, actorEmail(r), patch)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"message":       "Book updated successfully",
		"modifiedCount": result.ModifiedCount,
	})
}

// DELETE /books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := h.BookCollection.DeleteOne(ctx, bson.M{"_id": bookID})
	if err != nil {
		utils.JSONError(w, "Delete failed", http.StatusInternalServerError)
		return
	}
	if result.DeletedCount == 0 {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	h.AuditLogger.Log(ctx, models.BookEntity, constants.Delete, actorEmail(r), bookID.Hex())

	w.WriteHeader(http.StatusNoContent)
}
