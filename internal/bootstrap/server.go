package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/file"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/repository"
	httpecho "github.com/mohammadpnp/collaborator-import/internal/interfaces/http/echo"
)

type ServerDeps struct {
	Sessions     *repository.ImportSessionRepository
	Uploads      *file.LocalSource
	JWTSecret    string
	MaxFileBytes int64
}

func NewHTTPServer(deps ServerDeps) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(httpecho.RequestLogger())
	server.Use(middleware.BodyLimit(bodyLimit(deps.MaxFileBytes)))

	importHandler := httpecho.NewImportHandler(
		app.NewStartImport(deps.Sessions, deps.Uploads, deps.MaxFileBytes),
		app.NewGetImportStatus(deps.Sessions),
		app.NewListImports(deps.Sessions),
		app.NewCancelImport(deps.Sessions),
		app.NewValidateCSVStructure(deps.MaxFileBytes),
	)
	httpecho.RegisterRoutes(server, importHandler, httpecho.JWTAuth(deps.JWTSecret))

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return server
}

// bodyLimit leaves room for multipart framing and form fields on top of the
// largest accepted file.
func bodyLimit(maxFileBytes int64) string {
	if maxFileBytes <= 0 {
		maxFileBytes = app.DefaultMaxFileBytes
	}
	return fmt.Sprintf("%dK", maxFileBytes/1024+64)
}
