package serializer

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrDetailDependsOnMode(t *testing.T) {
	defer gin.SetMode(gin.TestMode)

	gin.SetMode(gin.DebugMode)
	res := DBErr("", errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "database error", res.Msg)
	assert.Equal(t, "connection refused", res.Error)

	gin.SetMode(gin.ReleaseMode)
	res = DBErr("", errors.New("connection refused"))
	assert.Empty(t, res.Error)
}

func TestServerErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	ParamErr("bad", errors.New("ignored"))
	DBErr("load tasks", errors.New("boom"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "load tasks", entries[0].Message)
	}
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "authentication error", AuthErr("").Msg)
	assert.Equal(t, http.StatusForbidden, ForbiddenErr("").Code)
	assert.Equal(t, http.StatusNotFound, NotFoundErr("").Code)
	assert.Equal(t, "service unavailable", UnavailableErr("").Msg)
}
