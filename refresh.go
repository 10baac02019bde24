package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskauth/models"
	"taskauth/pkg/clientinfo"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// refreshCookieName is the cookie carrying the refresh token.
const refreshCookieName = "refresh_token"

var (
	errNoRefreshToken = errors.New("no refresh token")
	// errTokenInvalid covers forged, malformed, expired and revoked refresh
	// tokens as well as missing session rows. The reasons are deliberately
	// collapsed so a 401 never tells a caller which check failed.
	errTokenInvalid = errors.New("token invalid")
)

// issueRefreshSession creates a new session for userID: it generates a
// session id, signs a refresh token bound to it, records the session with the
// client's origin metadata and only then attaches the cookie to the response.
// If the insert fails no cookie is set; a token without a persisted session
// would be unverifiable. Returns the new session id so the caller can mint an
// access token carrying the same session_id claim.
func issueRefreshSession(c *gin.Context, dbh *gorm.DB, userID uuid.UUID) (uuid.UUID, error) {
	jti := uuid.New()
	refreshToken, err := codec.Encode(map[string]any{
		"sub":        userID.String(),
		"session_id": jti.String(),
	}, cfg.RefreshTTL())
	if err != nil {
		return uuid.Nil, err
	}

	info := clientinfo.Extract(c.Request)
	sess := models.Session{
		JTI:            jti,
		UserID:         userID,
		IPAddress:      info.IPAddress,
		UserAgent:      info.UserAgent,
		Device:         info.Device,
		Browser:        info.Browser,
		OS:             info.OS,
		IsRefreshToken: true,
		ExpiresAt:      time.Now().UTC().Add(cfg.RefreshTTL()).Unix(),
	}
	if err := insertSession(dbh, &sess); err != nil {
		slog.Warn("failed to store refresh session", "user_id", userID, "error", err)
		return uuid.Nil, err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, refreshToken, cfg.RefreshMaxAge, "/", "", cfg.SecureHTTPS, true)
	return jti, nil
}

// verifyRefreshSession is the sole gate for exchanging a refresh token: it
// reads the cookie, decodes the token, and requires a matching unrevoked,
// unexpired session row owned by the token's subject. A session whose user_id
// does not match the sub claim fails exactly like a missing one.
func verifyRefreshSession(c *gin.Context, dbh *gorm.DB) (*models.Session, error) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return nil, errNoRefreshToken
	}

	claims, err := codec.Decode(raw)
	if err != nil {
		slog.Warn("refresh token failed verification", "error", err)
		return nil, errTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	sid, _ := claims["session_id"].(string)
	if sub == "" || sid == "" {
		return nil, errTokenInvalid
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, errTokenInvalid
	}
	jti, err := uuid.Parse(sid)
	if err != nil {
		return nil, errTokenInvalid
	}

	sess, err := findValidSession(dbh, jti, userID, time.Now().UTC())
	if err != nil {
		return nil, err // storage fault, surfaced as such
	}
	if sess == nil {
		slog.Warn("refresh session not found, revoked or expired", "user_id", userID)
		return nil, errTokenInvalid
	}
	return sess, nil
}
