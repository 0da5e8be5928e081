package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rescuelog/backend/internal/model"
)

// Profile godoc
// @Summary Profile greeting for any signed-in role
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/user/profile [get]
func Profile(c *gin.Context) {
	user := GetAuthUser(c)
	c.JSON(http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("Welcome, user %s with role %s", user.ID, user.Role),
	})
}

// GeneralInfo godoc
// @Summary Route open to every role
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/user/general-info [get]
func GeneralInfo(c *gin.Context) {
	c.JSON(http.StatusOK, model.MessageResponse{Message: "This route is for all roles"})
}

// DoctorDashboard godoc
// @Summary Doctor-only dashboard
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/user/doctor-dashboard [get]
func DoctorDashboard(c *gin.Context) {
	user := GetAuthUser(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Welcome Doctor " + user.ID.String()})
}

// AdminPanel godoc
// @Summary Admin-only panel
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/user/admin-panel [get]
func AdminPanel(c *gin.Context) {
	user := GetAuthUser(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Admin panel access granted to " + user.ID.String()})
}

// AdminDashboard godoc
// @Summary Admin dashboard
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/admin/dashboard [get]
func AdminDashboard(c *gin.Context) {
	user := GetAuthUser(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Welcome admin " + user.ID.String()})
}
