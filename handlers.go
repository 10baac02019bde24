package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// gin context keys set by authRequired.
const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
)

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/register", registerHandler)
	api.POST("/login", loginHandler)
	api.POST("/refresh_token/valid", refreshTokenHandler)
	api.POST("/signout", signoutHandler)

	settings := api.Group("/settings")
	settings.Use(authRequired())
	settings.POST("/service", settingsServiceHandler)
	settings.POST("/session/revoke", revokeSessionHandler)
}

// authRequired validates the bearer access token and requires its session to
// still be unrevoked, so revoking a device also cuts off access tokens it
// already holds. Puts the caller's user id and session id into the context.
func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Missing or invalid authorization header."})
			return
		}
		claims, err := codec.Decode(authHeader[len("Bearer "):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
			return
		}
		sub, _ := claims["sub"].(string)
		sid, _ := claims["session_id"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
			return
		}
		jti, err := uuid.Parse(sid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
			return
		}

		sess, err := findSession(db, jti, userID)
		if err != nil {
			slog.Error("session lookup failed", "user_id", userID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
			return
		}
		if sess == nil || sess.Revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxSessionID, jti)
		c.Next()
	}
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=2,max=16"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8,max=32"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, bindError(err))
		return
	}
	if err := registerUser(db, req.Username, req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, errEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
		default:
			slog.Error("registration failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Account successfully created."})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8,max=32"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, bindError(err))
		return
	}
	user, err := authenticate(db, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errStorage) {
			slog.Error("login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
		return
	}

	// Persist a session and set the refresh cookie before minting the access
	// token; both tokens share the new session id.
	jti, err := issueRefreshSession(c, db, user.ID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication failed: An unknown error has occurred."})
		return
	}
	accessToken, err := codec.Encode(map[string]any{
		"sub":        user.ID.String(),
		"session_id": jti.String(),
	}, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Login successful.",
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// refreshTokenHandler exchanges a valid refresh cookie for a fresh access
// token carrying the same session id.
func refreshTokenHandler(c *gin.Context) {
	sess, err := verifyRefreshSession(c, db)
	if err != nil {
		switch {
		case errors.Is(err, errNoRefreshToken):
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "No refresh token"})
		case errors.Is(err, errStorage):
			slog.Error("refresh failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
		}
		return
	}
	accessToken, err := codec.Encode(map[string]any{
		"sub":        sess.UserID.String(),
		"session_id": sess.JTI.String(),
	}, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": accessToken, "token_type": "bearer"})
}

// signoutHandler revokes the session bound to the refresh cookie. The row
// stays in the database as an audit trail.
func signoutHandler(c *gin.Context) {
	if raw, err := c.Cookie(refreshCookieName); err != nil || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "You are not logged in."})
		return
	}
	sess, err := verifyRefreshSession(c, db)
	if err != nil {
		if errors.Is(err, errStorage) {
			slog.Error("signout failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
		return
	}
	changed, err := revokeSession(db, sess.JTI, sess.UserID)
	if err != nil {
		slog.Error("signout failed", "user_id", sess.UserID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Server error: A server error has occurred. Please try again later."})
		return
	}
	if !changed {
		// lost a race with another revoke; the session is gone either way
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "You have successfully logged out."})
}

// bindError shapes a validation failure into {detail: {message, field}},
// naming the offending field without echoing its value.
func bindError(err error) gin.H {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := strings.ToLower(verrs[0].Field())
		msg := "Server error: The server was unable to verify the action. Please try again later."
		switch verrs[0].Tag() {
		case "required":
			msg = field + " is required."
		case "email":
			msg = "Email must be a valid email address."
		case "min":
			msg = field + " is too short."
		case "max":
			msg = field + " is too long."
		}
		return gin.H{"detail": gin.H{"message": msg, "field": field}}
	}
	return gin.H{"detail": gin.H{"message": "Request body could not be parsed.", "field": ""}}
}
