package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbusdrive/nimbus-go/api/middlewares"
	"github.com/nimbusdrive/nimbus-go/api/models"
)

// AuthController implements the cookie-based auth endpoints of the dev backend.
type AuthController struct {
	store *models.Store
}

func NewAuthController(store *models.Store) *AuthController {
	return &AuthController{store: store}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func setTokenCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetCookie(name, value, maxAge, "/", "", false, true)
}

// HandleLogin accepts any non-empty credentials (it is a dev stub, not an
// identity provider) and sets the httpOnly token cookies.
// POST /api/v1/auth/login
func (a *AuthController) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Username and password are required"})
		return
	}

	accessToken, refreshToken := a.store.IssueTokens(req.Username)
	setTokenCookie(c, "access_token", accessToken, int(models.AccessTokenTTL.Seconds()))
	setTokenCookie(c, "refresh_token", refreshToken, int(models.RefreshTokenTTL.Seconds()))

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"user": gin.H{
			"email": req.Username + "@nimbus.local",
			"name":  req.Username,
			"sub":   req.Username,
		},
	})
}

// HandleRefresh rotates the access token off a live refresh token. No body;
// any 2xx is success for the client.
// POST /api/v1/auth/refresh
func (a *AuthController) HandleRefresh(c *gin.Context) {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No refresh token"})
		return
	}
	accessToken, ok := a.store.RefreshAccess(refreshToken)
	if !ok {
		setTokenCookie(c, "access_token", "", -1)
		setTokenCookie(c, "refresh_token", "", -1)
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Session expired, please login again"})
		return
	}
	setTokenCookie(c, "access_token", accessToken, int(models.AccessTokenTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"message": "Token refreshed successfully"})
}

// HandleLogout revokes both tokens and clears the cookies.
// POST /api/v1/auth/logout
func (a *AuthController) HandleLogout(c *gin.Context) {
	accessToken, _ := c.Cookie("access_token")
	refreshToken, _ := c.Cookie("refresh_token")
	a.store.Revoke(accessToken, refreshToken)
	setTokenCookie(c, "access_token", "", -1)
	setTokenCookie(c, "refresh_token", "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// HandleMe returns the profile of the signed-in user.
// GET /api/v1/auth/me
func (a *AuthController) HandleMe(c *gin.Context) {
	sess := c.MustGet(middlewares.SessionKey).(models.Session)
	c.JSON(http.StatusOK, gin.H{
		"email": sess.Username + "@nimbus.local",
		"name":  sess.Username,
		"sub":   sess.Username,
	})
}
