package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleMember Role = "Member"
	RoleAdmin  Role = "Admin"

	UserEntity = "user"
)

var ValidRoles = map[string]bool{
	string(RoleMember): true,
	string(RoleAdmin):  true,
}

func IsValidRole(role string) bool {
	return ValidRoles[role]
}

// BorrowEntry is one borrow/return cycle embedded on the user document.
type BorrowEntry struct {
	BookID       primitive.ObjectID `bson:"book_id" json:"book_id"`
	BookTitle    string             `bson:"book_title" json:"book_title"`
	BorrowedDate time.Time          `bson:"borrowed_date" json:"borrowed_date"`
	DueDate      time.Time          `bson:"due_date" json:"due_date"`
	Returned     bool               `bson:"returned" json:"returned"`
}

type User struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                   string             `bson:"name" json:"name"`
	Email                  string             `bson:"email" json:"email"`
	Password               string             `bson:"password" json:"-"`
	Role                   Role               `bson:"role" json:"role"`
	AccountVerified        bool               `bson:"account_verified" json:"account_verified"`
	BorrowedBooks          []BorrowEntry      `bson:"borrowed_books" json:"borrowed_books"`
	VerificationCode       int                `bson:"verification_code,omitempty" json:"-"`
	VerificationCodeExpire time.Time          `bson:"verification_code_expire,omitempty" json:"-"`
	ResetPasswordToken     string             `bson:"reset_password_token,omitempty" json:"-"`
	ResetPasswordExpire    time.Time          `bson:"reset_password_expire,omitempty" json:"-"`
	CreatedAt              time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `bson:"updated_at" json:"updated_at"`
}

// HasActiveBorrow reports whether the user currently holds an unreturned
// copy of the given book.
func (u *User) HasActiveBorrow(bookID primitive.ObjectID) bool {
	for _, entry := range u.BorrowedBooks {
		if entry.BookID == bookID && !entry.Returned {
			return true
		}
	}
	return false
}
