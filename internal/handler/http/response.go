package http

import "github.com/gin-gonic/gin"

// All endpoints answer with a {data} or {error} envelope.

func DataResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"data": data})
}

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
