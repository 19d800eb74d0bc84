package middleware

import (
	"github.com/gin-gonic/gin"

	"chatserver/pkg/errors"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// ответ уже записан обработчиком
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		c.JSON(errors.HTTPStatusFromError(err.Err), gin.H{
			"error": err.Error(),
		})
	}
}
