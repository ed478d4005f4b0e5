package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// UploadsHandler receives and serves ticket attachments.
type UploadsHandler struct {
	service *service.AttachmentService
}

// NewUploadsHandler constructs handler.
func NewUploadsHandler(attachments *service.AttachmentService) *UploadsHandler {
	return &UploadsHandler{service: attachments}
}

// Upload POST /uploads/ticket/:ticketId with a multipart "file" field.
func (h *UploadsHandler) Upload(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewFieldError("file", "a file is required")
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	attachment, err := h.service.Upload(c.UserContext(), principal, c.Params("ticketId"), service.UploadInput{
		Filename: header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(attachment)})
}

// Download GET /uploads/:id.
func (h *UploadsHandler) Download(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	attachment, file, err := h.service.Open(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, attachment.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%s", strconv.Quote(attachment.Filename)))
	c.Set("X-Content-Checksum", attachment.Checksum)
	return c.SendStream(file, int(attachment.Size))
}
