package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const BookEntity = "book"

type Book struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title             string             `bson:"title" json:"title"`
	Author            string             `bson:"author" json:"author"`
	Description       string             `bson:"description" json:"description"`
	Price             float64            `bson:"price" json:"price"`
	TotalQuantity     int                `bson:"total_quantity" json:"total_quantity"`
	AvailableQuantity int                `bson:"available_quantity" json:"available_quantity"`
	Availability      bool               `bson:"availability" json:"availability"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// RecomputeAvailability keeps the availability flag in sync with the
// available quantity. Must be called after every quantity change.
func (b *Book) RecomputeAvailability() {
	b.Availability = b.AvailableQuantity > 0
}
