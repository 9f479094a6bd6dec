package documents

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/shared/server/middleware"
	"leaselens-backend/internal/shared/server/respond"
	"leaselens-backend/internal/shared/util"
)

const maxUploadSize = 50 << 20 // 50MB per request

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
	rg.GET("/documents/:id/pdf", h.pdf)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "No files uploaded", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "No files uploaded", nil)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, Upload{Filename: fh.Filename, Open: openPart(fh)})
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	results := h.Svc.IngestBatch(ctx, userID, uploads)
	if len(results) == 1 && results[0].ID != "" {
		c.Set(middleware.DocumentIDKey, results[0].ID)
	}
	respond.JSON(c, http.StatusOK, gin.H{"results": results})
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	docs, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch documents", nil)
		}
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toListResponse(d))
	}
	respond.JSON(c, http.StatusOK, gin.H{"documents": resp})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	detail, err := h.Svc.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch document", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"document": toDetailResponse(detail)})
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	if err := h.Svc.Delete(ctx, userID, documentID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to delete document", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) pdf(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	doc, body, err := h.Svc.OpenPDF(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "PDF not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to serve PDF", nil)
		}
		return
	}
	defer body.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": `inline; filename="` + util.HeaderFileName(doc.FileName) + `"`,
		"Cache-Control":       "private, max-age=3600",
	}
	contentLength := int64(-1)
	if doc.SizeBytes > 0 {
		contentLength = doc.SizeBytes
	}
	c.DataFromReader(http.StatusOK, contentLength, "application/pdf", body, extraHeaders)
}
