package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

type contextKey string

const ContextUser contextKey = "user"

// AuthMiddleware resolves the bearer token to a verified user document and
// stores it on the request context.
type AuthMiddleware struct {
	UserCol *mongo.Collection
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			utils.JSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		claims, err := utils.ParseJWT(tokenStr)
		if err != nil {
			utils.JSONError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.JSONError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		var user models.User
		err = m.UserCol.FindOne(r.Context(), bson.M{"_id": userID, "account_verified": true}).Decode(&user)
		if err != nil {
			utils.JSONError(w, "User no longer exists", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextUser, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers whose account is not an Admin. Must run
// inside the Authenticate chain.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || user.Role != models.RoleAdmin {
			utils.JSONError(w, "Access denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the authenticated user, or nil outside the
// authenticated chain.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(ContextUser).(*models.User)
	return user
}
