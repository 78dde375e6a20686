package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-order-engine/middlewares"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/services"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

var errInternal = errors.New("internal server error")

// respondServiceError maps a service error kind to its HTTP status. Anything
// without a kind is logged and reported as a 500 without details.
func respondServiceError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindValidation:
		code = http.StatusBadRequest
	case services.KindPermission:
		code = http.StatusForbidden
	case services.KindConflict:
		code = http.StatusConflict
	case services.KindExternalService:
		code = http.StatusBadGateway
	case services.KindNotFound:
		code = http.StatusNotFound
	}

	if code == http.StatusInternalServerError {
		utils.ErrorLogger.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
		_ = c.Error(err)
		utils.RespondError(c, code, errInternal)
		return
	}
	utils.RespondError(c, code, err)
}

// actorFromContext reads the caller set by AuthMiddleware.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userID := c.GetUint(middlewares.ContextUserID)
	value, _ := c.Get(middlewares.ContextRole)
	role, _ := value.(models.Role)
	if userID == 0 || role == "" {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, Role: role}, true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindQuery(out); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}
