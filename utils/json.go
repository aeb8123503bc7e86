package utils

import "github.com/gin-gonic/gin"

// Success writes a 200 JSON response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

// Fail writes an error JSON response; extra fields are merged into the body.
func Fail(c *gin.Context, status int, msg string, extra ...gin.H) {
	body := gin.H{"error": msg}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	c.AbortWithStatusJSON(status, body)
}
