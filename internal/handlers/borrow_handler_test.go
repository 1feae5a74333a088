package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/bhairab0311/LMSYSTEM/internal/handlers"
	"github.com/bhairab0311/LMSYSTEM/internal/middleware"
	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

func bookDoc(bookID primitive.ObjectID, available, total int) bson.D {
	return bson.D{
		{Key: "_id", Value: bookID},
		{Key: "title", Value: "The Go Programming Language"},
		{Key: "author", Value: "Donovan"},
		{Key: "price", Value: 10.0},
		{Key: "total_quantity", Value: total},
		{Key: "available_quantity", Value: available},
		{Key: "availability", Value: available > 0},
	}
}

func userDoc(userID primitive.ObjectID, borrowed bson.A) bson.D {
	return bson.D{
		{Key: "_id", Value: userID},
		{Key: "name", Value: "Jane Doe"},
		{Key: "email", Value: "jane@example.com"},
		{Key: "role", Value: "Member"},
		{Key: "account_verified", Value: true},
		{Key: "borrowed_books", Value: borrowed},
	}
}

func TestBorrowHandler_RecordBorrow(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	newHandler := func(mt *mtest.T) *handlers.BorrowHandler {
		h := &handlers.BorrowHandler{
			BookCol:     mt.Coll,
			UserCol:     mt.Coll,
			BorrowCol:   mt.Coll,
			AuditLogger: utils.Logger{Collection: mt.Coll},
		}
		h.Config.BorrowDays = 7
		h.Config.FineRate = 0.50
		return h
	}

	doRequest := func(h *handlers.BorrowHandler, bookID string) *http.Response {
		router := mux.NewRouter()
		router.HandleFunc("/borrow/record/{id}", h.RecordBorrow).Methods("POST")

		body, _ := json.Marshal(handlers.BorrowRequest{Email: "jane@example.com"})
		req := httptest.NewRequest(http.MethodPost, "/borrow/record/"+bookID, bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Result()
	}

	mt.Run("successful borrow of the last copy", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 1, 1)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{})),
			mtest.CreateSuccessResponse(), // book quantity decrement
			mtest.CreateSuccessResponse(), // borrow entry push
			mtest.CreateSuccessResponse(), // ledger insert
			mtest.CreateSuccessResponse(), // audit log
		)

		res := doRequest(newHandler(mt), bookID.Hex())
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			t.Errorf("expected status OK, got %v", res.Status)
		}
	})

	mt.Run("book not found", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch),
		)

		res := doRequest(newHandler(mt), primitive.NewObjectID().Hex())
		defer res.Body.Close()

		if res.StatusCode != http.StatusNotFound {
			t.Errorf("expected status NotFound, got %v", res.Status)
		}
	})

	mt.Run("exhausted quantity is rejected without mutation", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()

		// Only the two lookups are mocked: a write attempt would fail the
		// test with an unexpected-command error body.
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 0, 1)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{})),
		)

		res := doRequest(newHandler(mt), bookID.Hex())
		defer res.Body.Close()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status BadRequest, got %v", res.Status)
		}
	})

	mt.Run("duplicate active borrow is rejected", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()

		openEntry := bson.D{
			{Key: "book_id", Value: bookID},
			{Key: "book_title", Value: "The Go Programming Language"},
			{Key: "returned", Value: false},
		}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 2, 3)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{openEntry})),
		)

		res := doRequest(newHandler(mt), bookID.Hex())
		defer res.Body.Close()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status BadRequest, got %v", res.Status)
		}
	})
}

func TestBorrowHandler_ReturnBorrow(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("late return charges price plus fine", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()
		recordID := primitive.NewObjectID()

		openEntry := bson.D{
			{Key: "book_id", Value: bookID},
			{Key: "book_title", Value: "The Go Programming Language"},
			{Key: "returned", Value: false},
		}
		recordDoc := bson.D{
			{Key: "_id", Value: recordID},
			{Key: "user", Value: bson.D{
				{Key: "id", Value: userID},
				{Key: "name", Value: "Jane Doe"},
				{Key: "email", Value: "jane@example.com"},
			}},
			{Key: "book", Value: bookID},
			{Key: "price", Value: 10.0},
			{Key: "due_date", Value: time.Now().Add(-48 * time.Hour)},
			{Key: "return_date", Value: nil},
			{Key: "notified", Value: false},
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 0, 1)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{openEntry})),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}), // entry flip
			mtest.CreateSuccessResponse(), // book quantity increment
			mtest.CreateCursorResponse(0, "test.borrows", mtest.FirstBatch, recordDoc),
			mtest.CreateSuccessResponse(), // ledger close
			mtest.CreateSuccessResponse(), // audit log
		)

		h := &handlers.BorrowHandler{
			BookCol:     mt.Coll,
			UserCol:     mt.Coll,
			BorrowCol:   mt.Coll,
			AuditLogger: utils.Logger{Collection: mt.Coll},
		}
		h.Config.FineRate = 0.50

		router := mux.NewRouter()
		router.HandleFunc("/borrow/return/{id}", h.ReturnBorrow).Methods("PUT")

		body, _ := json.Marshal(handlers.BorrowRequest{Email: "jane@example.com"})
		req := httptest.NewRequest(http.MethodPut, "/borrow/return/"+bookID.Hex(), bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		res := w.Result()
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			t.Fatalf("expected status OK, got %v", res.Status)
		}
		payload, _ := io.ReadAll(res.Body)
		if !strings.Contains(string(payload), "including a fine") {
			t.Errorf("expected a fine in the charge message, got %s", payload)
		}
	})

	mt.Run("return against a full shelf keeps the quantity clamped", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()
		recordID := primitive.NewObjectID()

		// The stock was already restored by an earlier retry; the ledger and
		// embedded entry are still open.
		openEntry := bson.D{
			{Key: "book_id", Value: bookID},
			{Key: "book_title", Value: "The Go Programming Language"},
			{Key: "returned", Value: false},
		}
		recordDoc := bson.D{
			{Key: "_id", Value: recordID},
			{Key: "user", Value: bson.D{
				{Key: "id", Value: userID},
				{Key: "name", Value: "Jane Doe"},
				{Key: "email", Value: "jane@example.com"},
			}},
			{Key: "book", Value: bookID},
			{Key: "price", Value: 10.0},
			{Key: "due_date", Value: time.Now().Add(48 * time.Hour)},
			{Key: "return_date", Value: nil},
			{Key: "notified", Value: false},
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 3, 3)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{openEntry})),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}), // entry flip
			mtest.CreateSuccessResponse(), // book quantity write
			mtest.CreateCursorResponse(0, "test.borrows", mtest.FirstBatch, recordDoc),
			mtest.CreateSuccessResponse(), // ledger close
			mtest.CreateSuccessResponse(), // audit log
		)

		h := &handlers.BorrowHandler{
			BookCol:     mt.Coll,
			UserCol:     mt.Coll,
			BorrowCol:   mt.Coll,
			AuditLogger: utils.Logger{Collection: mt.Coll},
		}
		h.Config.FineRate = 0.50

		router := mux.NewRouter()
		router.HandleFunc("/borrow/return/{id}", h.ReturnBorrow).Methods("PUT")

		body, _ := json.Marshal(handlers.BorrowRequest{Email: "jane@example.com"})
		req := httptest.NewRequest(http.MethodPut, "/borrow/return/"+bookID.Hex(), bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		res := w.Result()
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			t.Fatalf("expected status OK, got %v", res.Status)
		}

		// Second update command is the book write; the first flips the entry.
		var bookUpdate bson.Raw
		updates := 0
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName != "update" {
				continue
			}
			updates++
			if updates == 2 {
				bookUpdate = evt.Command
			}
		}
		if bookUpdate == nil {
			t.Fatal("book quantity was never written")
		}
		set := bookUpdate.Lookup("updates").Array().Index(0).Value().Document().
			Lookup("u").Document().Lookup("$set").Document()
		if got := set.Lookup("available_quantity").AsInt64(); got != 3 {
			t.Errorf("expected available quantity to stay at 3, got %d", got)
		}
	})

	mt.Run("return without an open entry fails and mutates nothing", func(mt *mtest.T) {
		bookID := primitive.NewObjectID()
		userID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch, bookDoc(bookID, 1, 1)),
			mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, userDoc(userID, bson.A{})),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		h := &handlers.BorrowHandler{
			BookCol:   mt.Coll,
			UserCol:   mt.Coll,
			BorrowCol: mt.Coll,
		}

		router := mux.NewRouter()
		router.HandleFunc("/borrow/return/{id}", h.ReturnBorrow).Methods("PUT")

		body, _ := json.Marshal(handlers.BorrowRequest{Email: "jane@example.com"})
		req := httptest.NewRequest(http.MethodPut, "/borrow/return/"+bookID.Hex(), bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		res := w.Result()
		defer res.Body.Close()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status BadRequest, got %v", res.Status)
		}
	})
}

func TestBorrowHandler_MyBorrowedBooks(t *testing.T) {
	h := &handlers.BorrowHandler{}

	t.Run("admin callers are rejected", func(t *testing.T) {
		admin := &models.User{Role: models.RoleAdmin}
		req := httptest.NewRequest(http.MethodGet, "/borrow/my", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.ContextUser, admin))
		w := httptest.NewRecorder()

		h.MyBorrowedBooks(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status Forbidden, got %v", w.Code)
		}
	})

	t.Run("member sees the embedded borrow list", func(t *testing.T) {
		member := &models.User{
			Role: models.RoleMember,
			BorrowedBooks: []models.BorrowEntry{
				{BookID: primitive.NewObjectID(), BookTitle: "The Go Programming Language"},
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/borrow/my", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.ContextUser, member))
		w := httptest.NewRecorder()

		h.MyBorrowedBooks(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v", w.Code)
		}
		if !strings.Contains(w.Body.String(), "The Go Programming Language") {
			t.Errorf("expected the borrowed title in the payload, got %s", w.Body.String())
		}
	})
}
