package handler

import (
	"net/http"
	"strconv"

	"boilerplate/internal/usecase"

	"github.com/labstack/echo/v4"
)

type FileHandler struct {
	uc *usecase.FileUsecase
}

func NewFileHandler(uc *usecase.FileUsecase) *FileHandler {
	return &FileHandler{uc: uc}
}

// ファイル系は全部AuthGate + ユーザー単位のレート制限
func (h *FileHandler) RegisterRoutes(g *echo.Group, gate, limit echo.MiddlewareFunc) {
	f := g.Group("/files", gate, limit)
	f.POST("/upload", h.Upload)
	f.POST("/upload-base64", h.UploadBase64)
	f.GET("/:folder/:fileName", h.Presign)
	f.DELETE("/:folder/:fileName", h.Delete)
	f.DELETE("/:folder", h.DeleteFolder)
}

func (h *FileHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	src, err := fh.Open()
	if err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	defer src.Close()

	out, err := h.uc.Upload(c.Request().Context(), usecase.UploadInput{
		Folder:      c.FormValue("folder"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        src,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "File uploaded successfully", out)
}

type base64Request struct {
	File      string `json:"file"`
	Folder    string `json:"folder"`
	MaxSizeMB int    `json:"maxSizeMB"`
}

func (h *FileHandler) UploadBase64(c echo.Context) error {
	var req base64Request
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	url, err := h.uc.UploadBase64(c.Request().Context(), usecase.Base64Input{
		File:      req.File,
		Folder:    req.Folder,
		MaxSizeMB: req.MaxSizeMB,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "File uploaded successfully", map[string]string{"url": url})
}

func (h *FileHandler) Presign(c echo.Context) error {
	expiresIn := 0
	if v := c.QueryParam("expiresIn"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return usecase.NewHTTPError(http.StatusBadRequest, "invalid expiresIn")
		}
		expiresIn = n
	}

	out, err := h.uc.Presign(c.Request().Context(), c.Param("folder"), c.Param("fileName"), expiresIn)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Presigned URL generated", out)
}

func (h *FileHandler) Delete(c echo.Context) error {
	out, err := h.uc.Delete(c.Request().Context(), c.Param("folder"), c.Param("fileName"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "File deleted successfully", out)
}

// folder配下をまとめて削除
func (h *FileHandler) DeleteFolder(c echo.Context) error {
	out, err := h.uc.DeleteFolder(c.Request().Context(), c.Param("folder"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Folder deleted successfully", out)
}
