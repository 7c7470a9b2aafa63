//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes is a no-op without the swagger build tag.
func registerSwaggerRoutes(engine *gin.Engine) {}
