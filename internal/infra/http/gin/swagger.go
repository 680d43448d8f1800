package ginserver

import (
	_ "embed"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

//go:embed swagger/openapi.json
var swaggerSpec []byte

//go:embed swagger/index.html
var swaggerHTML string

const swaggerSpecPath = "/swagger/doc.json"

func registerSwaggerRoutes(router gin.IRoutes) {
	router.GET(swaggerSpecPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", swaggerSpec)
	})
	router.GET("/swagger", func(c *gin.Context) {
		html := strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", swaggerSpecPath)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	})
}
