package main

import (
	"errors"
	"log/slog"
	"net/http"

	"taskauth/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// errSelfRevoke guards the device list against revoking the caller's own
	// active session; the explicit signout flow is the only way to do that.
	errSelfRevoke = errors.New("cannot revoke the current session")
	// errRevokeFailed covers wrong ids, already-revoked sessions and sessions
	// owned by someone else. Indistinguishable by design.
	errRevokeFailed = errors.New("revoking the session failed")
)

// sessionInfo is the settings-UI view of one session.
type sessionInfo struct {
	JTI       uuid.UUID `json:"jti_id"`
	IPAddress string    `json:"ip_address"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Current   bool      `json:"current"`
}

// activeSessions lists the user's unrevoked sessions, marking the one bound
// to the caller's access token as current. Comparison is on parsed uuid
// values, so formatting differences can never hide the current session.
func activeSessions(dbh *gorm.DB, userID, currentJTI uuid.UUID) ([]sessionInfo, error) {
	sessions, err := listUserSessions(dbh, userID, false)
	if err != nil {
		return nil, err
	}
	infos := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, sessionInfo{
			JTI:       s.JTI,
			IPAddress: s.IPAddress,
			Browser:   s.Browser,
			OS:        s.OS,
			Current:   s.JTI == currentJTI,
		})
	}
	return infos, nil
}

// revokeOtherSession revokes target for userID. The self-revoke guard runs
// before any lookup, so it fires regardless of whether the target exists.
func revokeOtherSession(dbh *gorm.DB, target, userID, currentJTI uuid.UUID) error {
	if target == currentJTI {
		return errSelfRevoke
	}
	changed, err := revokeSession(dbh, target, userID)
	if err != nil {
		return err
	}
	if !changed {
		return errRevokeFailed
	}
	return nil
}

// settingsServiceHandler bundles the profile basics with the active session
// list for the settings page.
func settingsServiceHandler(c *gin.Context) {
	userID := c.MustGet(ctxUserID).(uuid.UUID)
	currentJTI := c.MustGet(ctxSessionID).(uuid.UUID)

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		slog.Error("settings lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Loading failed: An unknown error has occurred. Please try again later."})
		return
	}

	sessions, err := activeSessions(db, userID, currentJTI)
	if err != nil {
		slog.Error("listing sessions failed", "user_id", userID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Loading failed: An unknown error has occurred. Please try again later."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"informations": gin.H{
		"username": user.Username,
		"email":    user.Email,
		"sessions": sessions,
	}})
}

func revokeSessionHandler(c *gin.Context) {
	userID := c.MustGet(ctxUserID).(uuid.UUID)
	currentJTI := c.MustGet(ctxSessionID).(uuid.UUID)

	var req struct {
		JTI string `json:"jti_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, bindError(err))
		return
	}
	target, err := uuid.Parse(req.JTI)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": gin.H{
			"message": "jti_id must be a valid session id.",
			"field":   "jti_id",
		}})
		return
	}

	switch err := revokeOtherSession(db, target, userID, currentJTI); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Session revoked."})
	case errors.Is(err, errSelfRevoke):
		c.JSON(http.StatusForbidden, gin.H{"detail": "Use signout to end your current session."})
	case errors.Is(err, errStorage):
		slog.Error("session revoke failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Revoking the session failed."})
	}
}
