package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, auth e.MiddlewareFunc) {
	imports := server.Group("/api/v1/collaborators/import", auth)
	imports.POST("", importHandler.Upload)
	imports.GET("", importHandler.List)
	imports.POST("/validate", importHandler.Validate)
	imports.GET("/:id/status", importHandler.Status)
	imports.POST("/:id/cancel", importHandler.Cancel)
}
