package ginserver

import (
	"bufio"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/messages"
)

const uploadFormField = "file"

// UploadHandler accepts a multipart image and answers the URL to reference in imageUrls.
type UploadHandler struct {
	Commands commands.Bus
	MaxBytes int64
	Logger   *slog.Logger
}

func (h UploadHandler) Upload(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = messages.DefaultMaxUploadBytes
	}
	// Multipart framing needs a little room above the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+64<<10)

	header, err := c.FormFile(uploadFormField)
	if err != nil {
		respondError(c, h.Logger, messages.ErrFileRequired, "upload image")
		return
	}
	if header.Size > limit {
		respondError(c, h.Logger, messages.ErrFileTooLarge, "upload image")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, h.Logger, err, "open upload", "caller_id", caller)
		return
	}
	defer file.Close()

	// The declared part type is client controlled; sniff the leading bytes instead.
	reader := bufio.NewReaderSize(file, 512)
	head, _ := reader.Peek(512)
	contentType := http.DetectContentType(head)

	result, err := commands.Dispatch[messages.UploadImageCommand, dto.Upload](c.Request.Context(), h.Commands, messages.UploadImageCommand{
		CallerID:    caller,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      reader,
	})
	if err != nil {
		respondError(c, h.Logger, err, "upload image", "caller_id", caller)
		return
	}
	c.JSON(http.StatusCreated, result)
}

var _ UploadHTTP = UploadHandler{}
