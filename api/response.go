package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode is a machine-readable error identifier
type ErrorCode string

const (
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"    // 400
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"      // 404
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"      // 403
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR" // 500
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

// DataResponse wraps a single object
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ListResponse wraps a collection
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// RespondData sends 200 with a single object
func RespondData[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, DataResponse[T]{Data: data})
}

// RespondList sends 200 with a list, never null
func RespondList[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{Data: data, Total: len(data)})
}

func respondError(c *gin.Context, status int, code ErrorCode, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	c.JSON(status, resp)
}

// RespondBadRequest sends a 400 Bad Request error
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// RespondForbidden sends a 403 Forbidden error
func RespondForbidden(c *gin.Context, message string) {
	respondError(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// RespondNotFound sends a 404 Not Found error
func RespondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// RespondInternalError sends a 500 Internal Server Error
func RespondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, ErrCodeInternal, message)
}
