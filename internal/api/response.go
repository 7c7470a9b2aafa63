package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/initiative"
	"github.com/wfunc/initiative-tracker/internal/logger"
	"github.com/wfunc/initiative-tracker/internal/middleware"
	"go.uber.org/zap"
)

// Response success body
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func okMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// fail writes err as an error body. Internal failures are logged with their
// cause and reach the client only as InternalError.
func fail(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrInternal)
	}
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.LogError(err, "Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)))
	}
	middleware.Abort(c, appErr)
}

func badRequest(c *gin.Context, details string) {
	middleware.Abort(c, errors.New(errors.ErrInvalidParam, details))
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name+".")
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) uint {
	id, _ := middleware.GetUserID(c)
	return id
}

// actor builds the core caller from the auth and anti-forgery results.
func actor(c *gin.Context) initiative.Actor {
	id, authenticated := middleware.GetUserID(c)
	return initiative.Actor{
		UserID:   id,
		Verified: authenticated && middleware.IsVerified(c),
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
