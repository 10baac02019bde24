package main

import (
	"errors"
	"fmt"
	"strings"

	"taskauth/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errEmailTaken   = errors.New("E-mail address is already registered.")
	errEmailUnknown = errors.New("Email is not registered.")
	errBadPassword  = errors.New("Incorrect password.")
)

// registerUser creates an account with a bcrypt-hashed password. Length and
// format constraints on the fields are enforced by request binding before
// this is reached.
func registerUser(dbh *gorm.DB, username, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	// pre-check existing (optimistic)
	var existing models.User
	if err := dbh.Where("email = ?", email).First(&existing).Error; err == nil {
		return errEmailTaken
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := models.User{ID: uuid.New(), Username: username, Email: email, HashedPassword: hashed}
	if err := dbh.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			return errEmailTaken
		}
		return fmt.Errorf("%w: %v", errStorage, err)
	}
	return nil
}

// authenticate verifies the credentials and returns the account. The two
// failure messages are distinct on purpose, matching the product's login UX.
func authenticate(dbh *gorm.DB, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := dbh.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, errEmailUnknown
		}
		return models.User{}, fmt.Errorf("%w: %v", errStorage, err)
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return models.User{}, errBadPassword
	}
	return user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "already exists")
}
