package echo

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
)

type ImportHandler struct {
	start    app.StartImport
	status   app.GetImportStatus
	list     app.ListImports
	cancel   app.CancelImport
	validate app.ValidateCSVStructure
}

func NewImportHandler(
	start app.StartImport,
	status app.GetImportStatus,
	list app.ListImports,
	cancel app.CancelImport,
	validate app.ValidateCSVStructure,
) *ImportHandler {
	return &ImportHandler{
		start:    start,
		status:   status,
		list:     list,
		cancel:   cancel,
		validate: validate,
	}
}

type listMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// Upload accepts a multipart form with a "file" part and optional
// delimiter, encoding and has_header fields.
func (h *ImportHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file_required", "multipart field \"file\" is required")
	}

	hasHeader, err := parseHasHeader(c.FormValue("has_header"))
	if err != nil {
		return badRequest(c, "invalid_options", "has_header must be a boolean")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "invalid_file", "uploaded file could not be read")
	}
	defer src.Close()

	out, err := h.start.Execute(c.Request().Context(), app.StartImportInput{
		UserID:           currentUserID(c),
		OriginalFilename: fileHeader.Filename,
		Size:             fileHeader.Size,
		Content:          src,
		Delimiter:        c.FormValue("delimiter"),
		Encoding:         c.FormValue("encoding"),
		HasHeader:        hasHeader,
	})
	if err != nil {
		return writeError(c, err, "failed to start import")
	}

	return c.JSON(http.StatusCreated, apiResponse{Data: out})
}

func (h *ImportHandler) List(c echo.Context) error {
	out, err := h.list.Execute(c.Request().Context(), app.ListImportsInput{
		UserID:  currentUserID(c),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	})
	if err != nil {
		return writeError(c, err, "failed to list imports")
	}

	return c.JSON(http.StatusOK, apiResponse{
		Data: out.Items,
		Meta: listMeta{
			CurrentPage: out.Page,
			LastPage:    out.LastPage,
			PerPage:     out.PerPage,
			Total:       out.Total,
		},
	})
}

func (h *ImportHandler) Status(c echo.Context) error {
	out, err := h.status.Execute(c.Request().Context(), app.GetImportStatusInput{
		ID:     c.Param("id"),
		UserID: currentUserID(c),
	})
	if err != nil {
		return writeError(c, err, "failed to load import")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Cancel(c echo.Context) error {
	out, err := h.cancel.Execute(c.Request().Context(), app.CancelImportInput{
		ID:     c.Param("id"),
		UserID: currentUserID(c),
	})
	if err != nil {
		return writeError(c, err, "failed to cancel import")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) Validate(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file_required", "multipart field \"file\" is required")
	}

	hasHeader, err := parseHasHeader(c.FormValue("has_header"))
	if err != nil {
		return badRequest(c, "invalid_options", "has_header must be a boolean")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "invalid_file", "uploaded file could not be read")
	}
	defer src.Close()

	out, err := h.validate.Execute(c.Request().Context(), app.ValidateCSVStructureInput{
		Content:   src,
		Delimiter: c.FormValue("delimiter"),
		Encoding:  c.FormValue("encoding"),
		HasHeader: hasHeader,
	})
	if err != nil {
		return writeError(c, err, "failed to validate file")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func parseHasHeader(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryInt returns 0 for missing or malformed values so the use case applies its defaults.
func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
