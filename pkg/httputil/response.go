package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Page describes a window of a listing
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items interface{} `json:"items"`
	Page  Page        `json:"page"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithPage sends one page of a listing
func RespondWithPage(c *gin.Context, items interface{}, limit, offset, count int) {
	RespondWithSuccess(c, http.StatusOK, PaginatedResponse{
		Items: items,
		Page:  Page{Limit: limit, Offset: offset, Count: count},
	})
}

// RespondWithError renders err; anything that is not an AppError becomes a
// generic 500 so driver detail never reaches the client.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Status:  "error",
			Code:    "internal",
			Message: "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Status:  "error",
		Code:    string(appErr.Kind),
		Message: appErr.Message,
	})
}
