package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/dmitrijs2005/spaceshare/internal/server/models"
	"github.com/dmitrijs2005/spaceshare/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the core services over HTTP. Routine request/response
// glue only; all decisions live in the services.
type Handler struct {
	entities *services.EntityService
	attach   *services.AttachmentService
	devices  *services.DeviceService
}

func NewHandler(entities *services.EntityService, attach *services.AttachmentService,
	devices *services.DeviceService) *Handler {
	return &Handler{entities: entities, attach: attach, devices: devices}
}

type createEntityRequest struct {
	Kind               string   `json:"kind"`
	DeclaredMediaCount int      `json:"declared_media_count"`
	GroupIDs           []string `json:"group_ids"`
}

// CreateEntity handles POST /api/entities. The author comes from the token
// when present; anonymous creation yields a claimable entity.
func (h *Handler) CreateEntity(c *fiber.Ctx) error {
	var req createEntityRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}

	entity, err := h.entities.Create(c.Context(), models.EntityKind(req.Kind),
		actingUser(c), req.DeclaredMediaCount, req.GroupIDs)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entity)
}

// GetEntity handles GET /api/entities/:id.
func (h *Handler) GetEntity(c *fiber.Ctx) error {
	entity, err := h.entities.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(entity)
}

// AttachMedia handles POST /api/entities/:id/media (multipart/form-data).
// Fields: file (required), thumbnail, width, height, is_video, set_cover.
func (h *Handler) AttachMedia(c *fiber.Ctx) error {
	req := &services.AttachRequest{
		EntityID:     c.Params("id"),
		ActingUserID: actingUser(c),
		Width:        queryFormInt(c, "width"),
		Height:       queryFormInt(c, "height"),
		IsVideo:      c.FormValue("is_video") == "true",
		SetCover:     c.FormValue("set_cover") == "true",
	}

	file, contentType, err := formFileBytes(c, "file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "file missing")
	}
	req.File = file
	req.FileContentType = contentType

	if thumb, thumbType, err := formFileBytes(c, "thumbnail"); err == nil {
		req.Thumbnail = thumb
		req.ThumbnailContentType = thumbType
	}

	media, err := h.attach.Attach(c.Context(), req)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(media)
}

// DeleteMedia handles DELETE /api/media/:id.
func (h *Handler) DeleteMedia(c *fiber.Ctx) error {
	if err := h.attach.DeleteMedia(c.Context(), c.Params("id"), actingUser(c)); err != nil {
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClaimEntity handles POST /api/entities/:id/claim (auth required).
func (h *Handler) ClaimEntity(c *fiber.Ctx) error {
	user := actingUser(c)
	if user == nil {
		return jsonError(c, fiber.StatusUnauthorized, "missing authorization")
	}
	if err := h.entities.Claim(c.Context(), c.Params("id"), *user); err != nil {
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type registerDeviceRequest struct {
	Token string `json:"token"`
}

// RegisterDevice handles POST /api/devices (auth required).
func (h *Handler) RegisterDevice(c *fiber.Ctx) error {
	user := actingUser(c)
	if user == nil {
		return jsonError(c, fiber.StatusUnauthorized, "missing authorization")
	}

	var req registerDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	if err := h.devices.Register(c.Context(), *user, req.Token); err != nil {
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func formFileBytes(c *fiber.Ctx, field string) ([]byte, string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	// io.ReadAll rather than a single Read: disk-backed multipart files may
	// return short reads, and a truncated blob must fail, not upload.
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}

	ct := fileHeader.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}

func queryFormInt(c *fiber.Ctx, field string) int {
	n, _ := strconv.Atoi(c.FormValue(field))
	return n
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// mapError translates core sentinel errors into HTTP statuses.
func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrForbidden):
		return jsonError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrInvalidState):
		return jsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrAlreadyClaimed):
		return jsonError(c, fiber.StatusConflict, err.Error())
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal error")
	}
}
