package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"orgsetup/internal/config"
	"orgsetup/pkg/auth"
	"orgsetup/pkg/response"
	"orgsetup/pkg/utils"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"`
}

// Auth logs in the single admin account from configuration.
type Auth struct {
	Admin      config.AdminConfig
	ExpireTime int
}

func (a *Auth) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if !utils.IsAdmin(req.Username, req.Password, a.Admin.Username, a.Admin.PasswordHash) {
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("🔒 Rejected login")
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := auth.GenerateToken(req.Username, a.ExpireTime)
	if err != nil {
		response.InternalServerError(c, "failed to generate token")
		return
	}

	response.Success(c, LoginResponse{Token: token, Username: req.Username, ExpiresIn: a.ExpireTime})
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
