package configs

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	MongoURI              string
	DBName                string
	JWTSecret             string
	JWTExpireHours        int
	FineRate              float64
	BorrowDays            int
	NotifyIntervalMinutes int
	SMTPHost              string
	SMTPPort              string
	SMTPUser              string
	SMTPPassword          string
	SMTPFrom              string
	FrontendURL           string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var fineRate float64

	if val := os.Getenv("FINE_RATE"); val != "" {
		_, err := fmt.Sscanf(val, "%f", &fineRate)
		if err != nil {
			log.Fatalf("Invalid FINE_RATE: %v", err)
		}
	} else {
		fineRate = 0.50
	}

	var jwtExpireHours, borrowDays, notifyInterval int

	fmt.Sscanf(os.Getenv("JWT_EXPIRE_HOURS"), "%d", &jwtExpireHours)
	fmt.Sscanf(os.Getenv("BORROW_DAYS"), "%d", &borrowDays)
	fmt.Sscanf(os.Getenv("NOTIFY_INTERVAL_MINUTES"), "%d", &notifyInterval)

	if jwtExpireHours == 0 {
		jwtExpireHours = 72
	}
	if borrowDays == 0 {
		borrowDays = 7
	}
	if notifyInterval == 0 {
		notifyInterval = 30
	}

	return Config{
		Port:                  os.Getenv("PORT"),
		MongoURI:              os.Getenv("MONGO_URI"),
		DBName:                os.Getenv("DB_NAME"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTExpireHours:        jwtExpireHours,
		FineRate:              fineRate,
		BorrowDays:            borrowDays,
		NotifyIntervalMinutes: notifyInterval,
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              os.Getenv("SMTP_PORT"),
		SMTPUser:              os.Getenv("SMTP_USER"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:              os.Getenv("SMTP_FROM"),
		FrontendURL:           os.Getenv("FRONTEND_URL"),
	}
}
