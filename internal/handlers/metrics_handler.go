package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

type MetricsHandler struct {
	BookCol   *mongo.Collection
	UserCol   *mongo.Collection
	BorrowCol *mongo.Collection
	Config    struct {
		FineRate float64
	}
}

// GET /admin/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()

	totalBooks, _ := h.BookCol.CountDocuments(ctx, bson.M{})

	// Physical copies across all titles.
	var totalCopies int64
	copiesCursor, _ := h.BookCol.Aggregate(ctx, []bson.M{
		{"$group": bson.M{"_id": nil, "copies": bson.M{"$sum": "$total_quantity"}}},
	})
	var copies []struct {
		Copies int64 `bson:"copies"`
	}
	_ = copiesCursor.All(ctx, &copies)
	if len(copies) > 0 {
		totalCopies = copies[0].Copies
	}

	members, _ := h.UserCol.CountDocuments(ctx, bson.M{
		"account_verified": true,
		"role":             models.RoleMember,
	})
	admins, _ := h.UserCol.CountDocuments(ctx, bson.M{
		"account_verified": true,
		"role":             models.RoleAdmin,
	})

	openBorrows, _ := h.BorrowCol.CountDocuments(ctx, bson.M{
		"return_date": nil,
	})
	overdueCount, _ := h.BorrowCol.CountDocuments(ctx, bson.M{
		"due_date":    bson.M{"$lt": now},
		"return_date": nil,
	})

	// Fine revenue: fines already settled on returns plus what the open
	// overdue records would owe if settled right now.
	var fineRevenue float64

	settledCursor, _ := h.BorrowCol.Find(ctx, bson.M{
		"return_date": bson.M{"$ne": nil},
		"fine":        bson.M{"$gt": 0},
	})
	var settled []models.Borrow
	_ = settledCursor.All(ctx, &settled)
	for _, record := range settled {
		fineRevenue += record.Fine
	}

	openCursor, _ := h.BorrowCol.Find(ctx, bson.M{
		"due_date":    bson.M{"$lt": now},
		"return_date": nil,
	})
	var overdue []models.Borrow
	_ = openCursor.All(ctx, &overdue)
	for _, record := range overdue {
		fineRevenue += utils.CalculateFine(record.DueDate, now, h.Config.FineRate)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_books":   totalBooks,
		"total_copies":  totalCopies,
		"members":       members,
		"admins":        admins,
		"open_borrows":  openBorrows,
		"overdue_count": overdueCount,
		"fine_revenue":  fineRevenue,
	})
}
