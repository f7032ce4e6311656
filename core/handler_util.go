package core

import "github.com/gin-gonic/gin"

// respondError sends the unified {code, reason, message} error envelope.
func respondError(c *gin.Context, code ErrCode, message string) {
	apiErr := NewAPIError(code, message)
	c.JSON(code.HTTPStatus(), apiErr)
}
