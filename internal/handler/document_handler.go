package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errcode"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
	"github.com/0xteamCookie/LearnAbility-backend/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

type documentView struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Type        model.DocumentType   `json:"type"`
	FileType    string               `json:"fileType"`
	MimeType    string               `json:"mimeType"`
	Size        int64                `json:"size"`
	Source      string               `json:"source"`
	Description string               `json:"description"`
	Status      model.DocumentStatus `json:"status"`
	Content     string               `json:"content"`
	SubjectID   string               `json:"subjectId"`
	TopicID     string               `json:"topicId"`
	SessionID   string               `json:"sessionId"`
	CreatedAt   int64                `json:"createdAt"`
	UpdatedAt   int64                `json:"updatedAt"`
}

func toDocumentView(d *model.Document, withContent bool) documentView {
	v := documentView{
		ID:          d.ID,
		Name:        d.Name,
		Type:        d.Type,
		FileType:    d.FileType,
		MimeType:    d.MimeType,
		Size:        d.Size,
		Source:      d.Source,
		Description: d.Description,
		Status:      d.Status,
		SubjectID:   d.SubjectID,
		TopicID:     d.TopicID,
		SessionID:   d.SessionID,
		CreatedAt:   d.Ctime,
		UpdatedAt:   d.Mtime,
	}
	if withContent {
		v.Content = d.Content
	}
	return v
}

func formatUploadLimit(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	if bytes < mb {
		return strconv.FormatInt((bytes+kb-1)/kb, 10) + "KB"
	}
	return strconv.FormatInt(bytes/mb, 10) + "MB"
}

// Upload accepts multipart "files" and answers 202 once every file has a
// record; ingestion continues in the background.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, errcode.ErrTooLarge,
				"upload exceeds "+formatUploadLimit(h.maxUploadBytes))
			return
		}
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "no files uploaded")
		return
	}
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.UploadFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	res, err := h.documents.SubmitFiles(c.Request.Context(), getUserID(c), service.SubmitFilesRequest{
		SubjectID:   c.PostForm("subjectId"),
		TopicID:     c.PostForm("topicId"),
		SessionID:   c.PostForm("sessionId"),
		Description: c.PostForm("description"),
		Files:       files,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Accepted(c, res)
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.SubmitContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	doc, err := h.documents.SubmitContent(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, gin.H{"documentId": doc.ID, "status": doc.Status, "sessionId": doc.SessionID})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toDocumentView(doc, true))
}

func (h *DocumentHandler) List(c *gin.Context) {
	filter := model.DocumentFilter{
		SubjectID: c.Query("subjectId"),
		TopicID:   c.Query("topicId"),
		SessionID: c.Query("sessionId"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = model.DocumentStatus(status)
	}
	offset, limit := parsePaging(c)
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), filter, offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]documentView, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentView(d, false))
	}
	response.Success(c, items)
}

func (h *DocumentHandler) Reingest(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Reingest(c.Request.Context(), getUserID(c), id); err != nil {
		handleError(c, err)
		return
	}
	response.Accepted(c, gin.H{"documentId": id, "status": model.StatusProcessing})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
