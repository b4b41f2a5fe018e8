package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Meta  any        `json:"meta,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{app.ErrInvalidUserID, http.StatusUnauthorized, "unauthorized", "authenticated user is required"},
	{app.ErrInvalidImportFile, http.StatusBadRequest, "invalid_file", "file must be a non-empty .csv or .txt file"},
	{app.ErrImportFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the maximum upload size"},
	{app.ErrInvalidImportOption, http.StatusBadRequest, "invalid_options", "delimiter must be one of , ; | and encoding utf-8 or iso-8859-1"},
	{app.ErrInvalidImportID, http.StatusBadRequest, "invalid_import_id", "id must be a valid UUID"},
	{app.ErrImportNotFound, http.StatusNotFound, "not_found", "import not found"},
	{app.ErrImportForbidden, http.StatusForbidden, "forbidden", "access denied"},
	{app.ErrNotCancellable, http.StatusConflict, "not_cancellable", "import cannot be cancelled"},
}

func writeError(c echo.Context, err error, fallback string) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			return c.JSON(m.status, apiResponse{Error: &errorBody{Code: m.code, Message: message}})
		}
	}

	logging.FromContext(c.Request().Context()).Error(fallback, "error", err)
	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: fallback,
	}})
}

func badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{Code: code, Message: message}})
}
