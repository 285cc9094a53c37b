package middleware

import "github.com/gin-gonic/gin"

// abort stops the chain with the standard error body.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
