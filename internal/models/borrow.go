package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const BorrowEntity = "borrow"

// BorrowerSnapshot freezes the borrower's identity at borrow time so ledger
// records stay readable even if the user document changes later.
type BorrowerSnapshot struct {
	ID    primitive.ObjectID `bson:"id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}

// Borrow is one ledger record. Records are never deleted: a return sets
// ReturnDate and Fine, the overdue sweep sets Notified.
type Borrow struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User       BorrowerSnapshot   `bson:"user" json:"user"`
	Book       primitive.ObjectID `bson:"book" json:"book"`
	Price      float64            `bson:"price" json:"price"`
	BorrowDate time.Time          `bson:"borrow_date" json:"borrow_date"`
	DueDate    time.Time          `bson:"due_date" json:"due_date"`
	ReturnDate *time.Time         `bson:"return_date" json:"return_date"`
	Fine       float64            `bson:"fine" json:"fine"`
	Notified   bool               `bson:"notified" json:"notified"`
}
