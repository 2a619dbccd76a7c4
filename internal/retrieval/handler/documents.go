package handler

import (
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
	"github.com/kart-io/retrieval-x/pkg/utils/validator"
)

// DocumentPatch is the body of PUT /documents/:id. Absent fields keep
// their stored value.
type DocumentPatch struct {
	Category *string `json:"category" validate:"omitempty,category"`
}

func documentID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if err := validator.Var(id, "required,sourceid"); err != nil {
		return "", errors.ErrInvalidParam.WithMessage("invalid document id")
	}
	return id, nil
}

// UploadDocument stores a multipart file and schedules background indexing.
func (h *Handler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadSize)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			fail(c, errors.ErrBadRequest.WithMessagef("file exceeds %d bytes", h.config.MaxUploadSize))
			return
		}
		fail(c, errors.ErrBadRequest.WithMessage("multipart field \"file\" is required"))
		return
	}

	category := c.PostForm("category")
	if verr := validator.Var(category, "category"); verr != nil {
		fail(c, errors.ErrValidationFailed.WithMessage("invalid category"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
			contentType = byExt
		}
	}

	doc, err := h.svc.UploadDocument(c.Request.Context(), user(c), biz.UploadInput{
		Filename:    filepath.Base(fh.Filename),
		ContentType: contentType,
		Category:    category,
		Data:        data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, response.Accepted("Document uploaded, indexing scheduled", doc))
}

// ListDocuments lists the caller's documents, optionally by category.
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.svc.ListDocuments(c.Request.Context(), user(c), c.Query("category"))
	if err != nil {
		fail(c, err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}
	ok(c, model.DocumentList{Documents: docs})
}

// GetDocument returns document metadata.
func (h *Handler) GetDocument(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		fail(c, err)
		return
	}
	doc, err := h.svc.GetDocument(c.Request.Context(), user(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, doc)
}

// GetDocumentContent streams the stored file with its content type.
func (h *Handler) GetDocumentContent(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		fail(c, err)
		return
	}
	doc, data, err := h.svc.GetDocumentContent(c.Request.Context(), user(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	c.Data(http.StatusOK, contentType, data)
}

// UpdateDocument changes the mutable metadata of a document.
func (h *Handler) UpdateDocument(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req DocumentPatch
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}

	var doc *model.Document
	if req.Category == nil {
		doc, err = h.svc.GetDocument(c.Request.Context(), user(c), id)
	} else {
		doc, err = h.svc.UpdateDocumentCategory(c.Request.Context(), user(c), id, *req.Category)
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, doc)
}

// DeleteDocument removes a document and its stored file.
func (h *Handler) DeleteDocument(c *gin.Context) {
	id, err := documentID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.svc.DeleteDocument(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"document_id": id})
}

// DocumentCategories lists the distinct document categories.
func (h *Handler) DocumentCategories(c *gin.Context) {
	categories, err := h.svc.DocumentCategories(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	ok(c, gin.H{"categories": categories})
}
