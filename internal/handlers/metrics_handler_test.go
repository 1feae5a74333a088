package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/bhairab0311/LMSYSTEM/internal/handlers"
)

func countResponse(ns string, n int32) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func TestMetricsHandler_GetMetrics(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	if mt.Client != nil {
		defer mt.Client.Disconnect(context.Background())
	}

	mt.Run("dashboard counts titles and physical copies separately", func(mt *mtest.T) {
		settledDoc := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "book", Value: primitive.NewObjectID()},
			{Key: "price", Value: 10.0},
			{Key: "due_date", Value: time.Now().Add(-72 * time.Hour)},
			{Key: "return_date", Value: time.Now().Add(-time.Hour)},
			{Key: "fine", Value: 3.5},
		}

		mt.AddMockResponses(
			countResponse("test.books", 4), // title count
			mtest.CreateCursorResponse(0, "test.books", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: nil}, {Key: "copies", Value: int64(12)}}), // copies sum
			countResponse("test.users", 9),                                              // members
			countResponse("test.users", 1),                                              // admins
			countResponse("test.borrows", 3),                                            // open borrows
			countResponse("test.borrows", 1),                                            // overdue
			mtest.CreateCursorResponse(0, "test.borrows", mtest.FirstBatch, settledDoc), // settled fines
			mtest.CreateCursorResponse(0, "test.borrows", mtest.FirstBatch),             // open overdue
		)

		h := &handlers.MetricsHandler{
			BookCol:   mt.Coll,
			UserCol:   mt.Coll,
			BorrowCol: mt.Coll,
		}
		h.Config.FineRate = 0.50

		req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
		w := httptest.NewRecorder()
		h.GetMetrics(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v", w.Code)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding payload failed: %v", err)
		}
		if got := payload["total_books"]; got != float64(4) {
			t.Errorf("expected 4 titles, got %v", got)
		}
		if got := payload["total_copies"]; got != float64(12) {
			t.Errorf("expected 12 copies, got %v", got)
		}
		if got := payload["open_borrows"]; got != float64(3) {
			t.Errorf("expected 3 open borrows, got %v", got)
		}
		if got := payload["fine_revenue"]; got != 3.5 {
			t.Errorf("expected settled fine revenue 3.5, got %v", got)
		}
	})
}
