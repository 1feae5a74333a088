package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"

	"github.com/bhairab0311/LMSYSTEM/configs"
	"github.com/bhairab0311/LMSYSTEM/internal/daemon"
	"github.com/bhairab0311/LMSYSTEM/internal/db"
	"github.com/bhairab0311/LMSYSTEM/internal/handlers"
	"github.com/bhairab0311/LMSYSTEM/internal/mailer"
	"github.com/bhairab0311/LMSYSTEM/internal/middleware"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

func main() {
	cfg := configs.LoadConfig()
	db.Connect(cfg.MongoURI)
	utils.InitJwtSecret(cfg.JWTSecret)

	smtpMailer := &mailer.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}

	auditCol := db.GetCollection(cfg.DBName, "audit_logs")
	auditLogger := utils.Logger{Collection: auditCol}

	userCol := db.GetCollection(cfg.DBName, "users")
	bookCol := db.GetCollection(cfg.DBName, "books")
	borrowCol := db.GetCollection(cfg.DBName, "borrows")

	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.JSONMiddleware)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})

	authMw := &middleware.AuthMiddleware{UserCol: userCol}
	authed := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(middleware.RequireAdmin(h))
	}

	tokenTTL := time.Duration(cfg.JWTExpireHours) * time.Hour
	authHandler := &handlers.AuthHandler{
		UserCol:     userCol,
		Mailer:      smtpMailer,
		AuditLogger: auditLogger,
		Config: struct {
			FrontendURL string
			TokenTTL    time.Duration
		}{FrontendURL: cfg.FrontendURL, TokenTTL: tokenTTL},
	}

	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/verify-otp", authHandler.VerifyOTP).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/auth/logout", authHandler.Logout).Methods("GET")
	r.HandleFunc("/auth/password/forgot", authHandler.ForgotPassword).Methods("POST")
	r.HandleFunc("/auth/password/reset/{token}", authHandler.ResetPassword).Methods("PUT")
	r.Handle("/auth/me", authed(authHandler.GetUser)).Methods("GET")
	r.Handle("/auth/password/update", authed(authHandler.UpdatePassword)).Methods("PUT")

	bookHandler := handlers.NewBookHandler(bookCol, auditLogger)

	r.Handle("/books", authed(bookHandler.GetBooks)).Methods("GET")
	r.Handle("/books", adminOnly(bookHandler.AddBook)).Methods("POST")
	r.Handle("/books/search", authed(bookHandler.SearchBooks)).Methods("GET")
	r.Handle("/books/{id}", authed(bookHandler.GetBook)).Methods("GET")
	r.Handle("/books/{id}", adminOnly(bookHandler.UpdateBook)).Methods("PUT")
	r.Handle("/books/{id}", adminOnly(bookHandler.DeleteBook)).Methods("DELETE")

	borrowHandler := &handlers.BorrowHandler{
		BookCol:     bookCol,
		UserCol:     userCol,
		BorrowCol:   borrowCol,
		AuditLogger: auditLogger,
		Config: struct {
			BorrowDays int
			FineRate   float64
		}{BorrowDays: cfg.BorrowDays, FineRate: cfg.FineRate},
	}

	r.Handle("/borrow/record/{id}", adminOnly(borrowHandler.RecordBorrow)).Methods("POST")
	r.Handle("/borrow/return/{id}", adminOnly(borrowHandler.ReturnBorrow)).Methods("PUT")
	r.Handle("/borrow/my", authed(borrowHandler.MyBorrowedBooks)).Methods("GET")
	r.Handle("/borrow/all", adminOnly(borrowHandler.AllBorrowedBooks)).Methods("GET")

	userHandler := handlers.NewUserHandler(userCol, auditLogger)

	r.Handle("/users", adminOnly(userHandler.GetAllUsers)).Methods("GET")
	r.Handle("/users/admin", adminOnly(userHandler.RegisterAdmin)).Methods("POST")

	metricsHandler := handlers.MetricsHandler{
		BookCol:   bookCol,
		UserCol:   userCol,
		BorrowCol: borrowCol,
		Config:    struct{ FineRate float64 }{FineRate: cfg.FineRate},
	}

	r.Handle("/admin/metrics", adminOnly(metricsHandler.GetMetrics)).Methods("GET")

	notifier := &daemon.OverdueNotifier{
		BorrowCol:   borrowCol,
		Mailer:      smtpMailer,
		AuditLogger: auditLogger,
		Interval:    time.Duration(cfg.NotifyIntervalMinutes) * time.Minute,
	}
	notifier.Start()

	var server = http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Println("Server starting on port", cfg.Port)
		log.Fatal(server.ListenAndServe())
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Shutting down gracefully...")
	notifier.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}
	if err := db.Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect failed: %v", err)
	}
	log.Println("Server shut down.")
}
