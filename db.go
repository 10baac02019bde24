package main

import (
	"log"

	"taskauth/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB(dsn string) {
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This service requires a Postgres DSN in DB_DSN.")
	}
	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	if err := autoMigrate(db); err != nil {
		log.Printf("migration warning: %v", err)
	}
}

// autoMigrate creates/updates the users and sessions tables. Shared with the
// test setup, which runs it against an in-memory database.
func autoMigrate(dbh *gorm.DB) error {
	// Migrate models individually so a failure on one doesn't block others
	if err := dbh.AutoMigrate(&models.User{}); err != nil {
		return err
	}
	return dbh.AutoMigrate(&models.Session{})
}
