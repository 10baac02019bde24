package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"taskauth/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Prints the session audit trail for one account, including revoked and
// expired rows that the settings UI hides.
func main() {
	email := flag.String("email", "", "account email")
	flag.Parse()
	if *email == "" {
		log.Fatal("--email required")
	}
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	var u models.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(*email))).First(&u).Error; err != nil {
		log.Fatalf("user: %v", err)
	}
	var sessions []models.Session
	if err := db.Where("user_id = ?", u.ID).Order("created_at").Find(&sessions).Error; err != nil {
		log.Fatalf("sessions: %v", err)
	}
	now := time.Now().UTC()
	for _, s := range sessions {
		state := "active"
		if s.Revoked {
			state = "revoked"
		} else if !s.Valid(now) {
			state = "expired"
		}
		fmt.Printf("jti=%s state=%-7s ip=%-15s browser=%s/%s created=%s expires=%s\n",
			s.JTI, state, s.IPAddress, s.Browser, s.OS,
			time.Unix(s.CreatedAt, 0).UTC().Format(time.RFC3339),
			time.Unix(s.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
}
