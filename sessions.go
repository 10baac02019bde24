package main

import (
	"errors"
	"fmt"
	"time"

	"taskauth/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// errStorage wraps any underlying database fault. Handlers map it to a
	// generic 5xx and log the cause; it never reaches clients verbatim.
	errStorage = errors.New("session storage error")
	// errSessionConflict signals a duplicate session id on insert.
	errSessionConflict = errors.New("session id already exists")
)

// The session store is a set of stateless functions over an explicit *gorm.DB
// handle. The caller owns the handle and any transaction; the store never
// starts one itself. Lookups are always scoped by both session id and user id
// so a guessed id can never cross account boundaries.

func insertSession(dbh *gorm.DB, s *models.Session) error {
	if err := dbh.Create(s).Error; err != nil {
		if isUniqueConstraintError(err) {
			return errSessionConflict
		}
		return fmt.Errorf("%w: %v", errStorage, err)
	}
	return nil
}

// findSession returns the session with the given id owned by userID, or nil
// when no such row exists.
func findSession(dbh *gorm.DB, jti, userID uuid.UUID) (*models.Session, error) {
	var s models.Session
	err := dbh.Where("jti_id = ? AND user_id = ?", jti, userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", errStorage, err)
	}
	return &s, nil
}

// findValidSession is findSession restricted to unrevoked, unexpired rows.
// A missing row and an invalid row are indistinguishable to the caller.
func findValidSession(dbh *gorm.DB, jti, userID uuid.UUID, now time.Time) (*models.Session, error) {
	var s models.Session
	err := dbh.Where("jti_id = ? AND user_id = ? AND revoked = ? AND expires_at > ?",
		jti, userID, false, now.Unix()).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", errStorage, err)
	}
	return &s, nil
}

// listUserSessions returns the user's sessions, filtered to unrevoked rows
// unless includeRevoked is set. Order is creation order; callers decide
// "current" by id, not position.
func listUserSessions(dbh *gorm.DB, userID uuid.UUID, includeRevoked bool) ([]models.Session, error) {
	q := dbh.Where("user_id = ?", userID)
	if !includeRevoked {
		q = q.Where("revoked = ?", false)
	}
	var sessions []models.Session
	if err := q.Order("created_at").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", errStorage, err)
	}
	return sessions, nil
}

// revokeSession flips revoked on the matching unrevoked row and reports
// whether a row actually changed. Already-revoked and missing rows both
// report false, which callers use to tell "already logged out" from success.
func revokeSession(dbh *gorm.DB, jti, userID uuid.UUID) (bool, error) {
	res := dbh.Model(&models.Session{}).
		Where("jti_id = ? AND user_id = ? AND revoked = ?", jti, userID, false).
		Update("revoked", true)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", errStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}
