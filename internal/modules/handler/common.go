package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evotodo/todo-api/internal/middleware"
	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/modules/service"
)

// currentUser returns the id verified by middleware.UserAuth.
func currentUser(c *gin.Context) (string, bool) {
	user := c.GetString(middleware.ContextUserID)
	if user == "" {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
		return "", false
	}
	return user, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(name+" must be a positive integer", nil))
		return 0, false
	}
	return id, true
}

// writeServiceErr maps service sentinels onto status codes. notFound is
// the message used for service.ErrNotFound.
func writeServiceErr(c *gin.Context, err error, notFound string) {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(v.Msg, nil))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr(notFound))
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, serializer.UnavailableErr(""))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}
