package handlers

import (
	"context"
	"encoding/json"
	"fmt"
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

// BorrowHandler runs the borrow/return workflow. Each operation mutates the
// book, the user's embedded borrow list and the ledger with best-effort
// sequential writes; there is no cross-document transaction.
type BorrowHandler struct {
	BookCol     *mongo.Collection
	UserCol     *mongo.Collection
	BorrowCol   *mongo.Collection
	AuditLogger utils.Logger
	Config      struct {
		BorrowDays int
		FineRate   float64
	}
}

type BorrowRequest struct {
	Email string `json:"email"`
}

// POST /borrow/record/{id}
func (h *BorrowHandler) RecordBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.JSONError(w, "Email is required", http.StatusBadRequest)
		return
	}

	var book models.Book
	if err := h.BookCol.FindOne(r.Context(), bson.M{"_id": bookID}).Decode(&book); err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	var user models.User
	err = h.UserCol.FindOne(r.Context(), bson.M{"email": req.Email, "account_verified": true}).Decode(&user)
	if err != nil {
		utils.JSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if book.AvailableQuantity == 0 {
		utils.JSONError(w, "Book is not available", http.StatusBadRequest)
		return
	}
	if user.HasActiveBorrow(book.ID) {
		utils.JSONError(w, "Book is already borrowed", http.StatusBadRequest)
		return
	}

	book.AvailableQuantity--
	book.RecomputeAvailability()
	_, err = h.BookCol.UpdateByID(r.Context(), book.ID, bson.M{"$set": bson.M{
		"available_quantity": book.AvailableQuantity,
		"availability":       book.Availability,
		"updated_at":         time.Now(),
	}})
	if err != nil {
		utils.JSONError(w, "Failed to update book", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	dueDate := now.AddDate(0, 0, h.Config.BorrowDays)

	entry := models.BorrowEntry{
		BookID:       book.ID,
		BookTitle:    book.Title,
		BorrowedDate: now,
		DueDate:      dueDate,
	}
	_, err = h.UserCol.UpdateByID(r.Context(), user.ID, bson.M{
		"$push": bson.M{"borrowed_books": entry},
		"$set":  bson.M{"updated_at": now},
	})
	if err != nil {
		utils.JSONError(w, "Failed to record borrow on user", http.StatusInternalServerError)
		return
	}

	record := models.Borrow{
		ID: primitive.NewObjectID(),
		User: models.BorrowerSnapshot{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
		Book:       book.ID,
		Price:      book.Price,
		BorrowDate: now,
		DueDate:    dueDate,
	}
	if _, err := h.BorrowCol.InsertOne(r.Context(), record); err != nil {
		utils.JSONError(w, "Failed to record borrow", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(context.Background(), models.BorrowEntity, constants.Borrow, actorEmail(r), record)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Borrowed book recorded successfully",
	})
}

// PUT /borrow/return/{id}
func (h *BorrowHandler) ReturnBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, "Invalid book ID", http.StatusBadRequest)
		return
	}

	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		utils.JSONError(w, "Email is required", http.StatusBadRequest)
		return
	}

	var book models.Book
	if err := h.BookCol.FindOne(r.Context(), bson.M{"_id": bookID}).Decode(&book); err != nil {
		utils.JSONError(w, "Book not found", http.StatusNotFound)
		return
	}

	var user models.User
	err = h.UserCol.FindOne(r.Context(), bson.M{"email": req.Email, "account_verified": true}).Decode(&user)
	if err != nil {
		utils.JSONError(w, "User not found", http.StatusNotFound)
		return
	}

	// Flip the open embedded entry in one matched write; a zero match means
	// there is nothing to return and nothing has been mutated yet.
	res, err := h.UserCol.UpdateOne(r.Context(),
		bson.M{
			"_id":            user.ID,
			"borrowed_books": bson.M{"$elemMatch": bson.M{"book_id": bookID, "returned": false}},
		},
		bson.M{"$set": bson.M{"borrowed_books.$.returned": true, "updated_at": time.Now()}},
	)
	if err != nil {
		utils.JSONError(w, "Failed to update borrow entry", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		utils.JSONError(w, "You have not borrowed this book", http.StatusBadRequest)
		return
	}

	if book.AvailableQuantity < book.TotalQuantity {
		book.AvailableQuantity++
	}
	book.RecomputeAvailability()
	_, err = h.BookCol.UpdateByID(r.Context(), book.ID, bson.M{"$set": bson.M{
		"available_quantity": book.AvailableQuantity,
		"availability":       book.Availability,
		"updated_at":         time.Now(),
	}})
	if err != nil {
		utils.JSONError(w, "Failed to update book", http.StatusInternalServerError)
		return
	}

	var record models.Borrow
	err = h.BorrowCol.FindOne(r.Context(), bson.M{
		"book":        bookID,
		"user.email":  user.Email,
		"return_date": nil,
	}).Decode(&record)
	if err != nil {
		// The embedded entry existed but the ledger disagrees; surface the
		// inconsistency instead of silently closing the return.
		utils.JSONError(w, "No open borrow record found for this book", http.StatusBadRequest)
		return
	}

	now := time.Now()
	fine := utils.CalculateFine(record.DueDate, now, h.Config.FineRate)
	_, err = h.BorrowCol.UpdateByID(r.Context(), record.ID, bson.M{"$set": bson.M{
		"return_date": now,
		"fine":        fine,
	}})
	if err != nil {
		utils.JSONError(w, "Failed to close borrow record", http.StatusInternalServerError)
		return
	}

	h.AuditLogger.Log(context.Background(), models.BorrowEntity, constants.Return, actorEmail(r), record.ID.Hex())

	var message string
	if fine > 0 {
		message = fmt.Sprintf("Book returned successfully. The total charges, including a fine, are $%.2f", record.Price+fine)
	} else {
		message = fmt.Sprintf("Book returned successfully. The total charges are $%.2f", record.Price)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// GET /borrow/my
func (h *BorrowHandler) MyBorrowedBooks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	// Administrators have no personal borrow history.
	if user.Role == models.RoleAdmin {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        false,
			"message":        "Admins cannot borrow books",
			"borrowed_books": []models.BorrowEntry{},
		})
		return
	}

	borrowed := user.BorrowedBooks
	if borrowed == nil {
		borrowed = []models.BorrowEntry{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"borrowed_books": borrowed,
	})
}

// GET /borrow/all
func (h *BorrowHandler) AllBorrowedBooks(w http.ResponseWriter, r *http.Request) {
	cursor, err := h.BorrowCol.Find(r.Context(), bson.M{})
	if err != nil {
		utils.JSONError(w, "Failed to fetch borrow records", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(r.Context())

	var records []models.Borrow
	if err := cursor.All(r.Context(), &records); err != nil {
		utils.JSONError(w, "Error decoding borrow records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.Borrow{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"borrowed_books": records,
	})
}
