package document

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/research-assistant/backend/pkg/utils"
)

// Uploader runs the document pipeline.
type Uploader interface {
	Upload(ctx context.Context, in assistant.UploadInput) (assistant.UploadResult, error)
}

// Handler 文档上传的HTTP处理器
type Handler struct {
	uploader Uploader
	maxBytes int64
}

// New 创建文档处理器，maxBytes 不大于 0 时不限制上传大小。
func New(uploader Uploader, maxBytes int64) *Handler {
	return &Handler{uploader: uploader, maxBytes: maxBytes}
}

// RegisterRoutes 注册文档相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
}

// handleUpload 接收 multipart 文件并生成摘要
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "uploaded file is too large")
			return
		}
		utils.RespondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.FormValue("session_id")
	}

	result, err := h.uploader.Upload(r.Context(), assistant.UploadInput{
		Filename:  header.Filename,
		Data:      data,
		SessionID: sessionID,
	})
	if err != nil {
		utils.RespondError(w, statusFor(err), detailFor(err))
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"session_id": result.SessionID,
		"summary":    result.Summary,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrUnsupportedFormat),
		errors.Is(err, assistant.ErrEmptyDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func detailFor(err error) string {
	switch {
	case errors.Is(err, assistant.ErrUnsupportedFormat):
		return "Unsupported file format"
	case errors.Is(err, assistant.ErrEmptyDocument),
		errors.Is(err, assistant.ErrExtractionFailed),
		errors.Is(err, assistant.ErrSummarizationFailed):
		return err.Error()
	default:
		return "internal error"
	}
}
