package handlers

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	models "github.com/fathima-sithara/image-service/internal/media"
	service "github.com/fathima-sithara/image-service/internal/services"
	"github.com/fathima-sithara/image-service/internal/utils"
)

type Handler struct {
	svc       *service.MediaService
	get       *service.Retriever
	batch     *service.BatchDeleter
	maxUpload int64
	log       *zap.Logger
}

func NewHandler(svc *service.MediaService, get *service.Retriever, batch *service.BatchDeleter, maxUpload int64, log *zap.Logger) *Handler {
	return &Handler{svc: svc, get: get, batch: batch, maxUpload: maxUpload, log: log}
}

// Register mounts the image routes. guard runs before every mutating route.
func (h *Handler) Register(r fiber.Router, guard ...fiber.Handler) {
	mutate := func(hs ...fiber.Handler) []fiber.Handler { return append(append([]fiber.Handler{}, guard...), hs...) }

	r.Get("/images/:ownerKind/:ownerId", h.Get)
	r.Post("/images/:ownerKind/:ownerId", mutate(h.Upload)...)
	r.Delete("/images", mutate(h.Delete)...)
	r.Get("/owners/:ownerKind/:ownerId/images", h.ListByOwner)
	r.Delete("/owners/:ownerKind/:ownerId/images", mutate(h.DeleteOwner)...)
}

// GET /images/:ownerKind/:ownerId?id=&size=
func (h *Handler) Get(c *fiber.Ctx) error {
	// an unknown kind is reported by the retriever, after the size check
	kind, _ := models.ParseOwnerKind(c.Params("ownerKind"))
	rc, ct, err := h.get.Get(c.UserContext(), kind, c.Params("ownerId"), c.Query("id"), c.Query("size"))
	if err != nil {
		return h.writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, ct)
	return c.SendStream(rc)
}

// POST /images/:ownerKind/:ownerId (multipart/form-data, every file part)
func (h *Handler) Upload(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.writeError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "No file uploaded")
	}
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var uploads []service.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if err := utils.ValidateFileHeader(fh, h.maxUpload); err != nil {
				return h.writeError(c, err)
			}
			data, err := utils.ReadFileHeader(fh)
			if err != nil {
				return utils.JSONError(c, fiber.StatusBadRequest, "cannot read file")
			}
			uploads = append(uploads, service.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			})
		}
	}
	if len(uploads) == 0 {
		return utils.JSONError(c, fiber.StatusBadRequest, "No file uploaded")
	}

	ids, err := h.svc.CreateBatch(c.UserContext(), owner, uploads)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ids)
}

// DELETE /images {"image": id} | {"images": [ids]}
func (h *Handler) Delete(c *fiber.Ctx) error {
	var req service.DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}
	if _, err := h.batch.Delete(c.UserContext(), req); err != nil {
		return h.writeError(c, err)
	}
	if req.Image != nil {
		return utils.JSONMessage(c, fiber.StatusOK, "image deleted")
	}
	return utils.JSONMessage(c, fiber.StatusOK, "images deleted")
}

// GET /owners/:ownerKind/:ownerId/images
func (h *Handler) ListByOwner(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.writeError(c, err)
	}
	ids, err := h.svc.ListByOwner(c.UserContext(), owner)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"images": ids})
}

// DELETE /owners/:ownerKind/:ownerId/images
func (h *Handler) DeleteOwner(c *fiber.Ctx) error {
	owner, err := ownerFromParams(c)
	if err != nil {
		return h.writeError(c, err)
	}
	if err := h.svc.CascadeOwnerDeleted(c.UserContext(), owner); err != nil {
		return h.writeError(c, err)
	}
	return utils.JSONMessage(c, fiber.StatusOK, "owner images deleted")
}

func ownerFromParams(c *fiber.Ctx) (models.Owner, error) {
	kind, err := models.ParseOwnerKind(c.Params("ownerKind"))
	if err != nil {
		return models.Owner{}, err
	}
	return models.Owner{Kind: kind, ID: c.Params("ownerId")}, nil
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidSize):
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid size")
	case errors.Is(err, models.ErrInvalidOwnerKind):
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid model type")
	case errors.Is(err, models.ErrUnsupportedMedia):
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid file detected!")
	case errors.Is(err, models.ErrOwnerNotFound):
		return utils.JSONError(c, fiber.StatusNotFound, "Owner not found")
	case errors.Is(err, models.ErrAssetNotFound), errors.Is(err, models.ErrNotFound):
		return utils.JSONError(c, fiber.StatusNotFound, "Image not found")
	case errors.Is(err, models.ErrValidation):
		return utils.JSONError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	h.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	switch {
	case errors.Is(err, models.ErrEncode):
		return utils.JSONError(c, fiber.StatusInternalServerError, "Image processing failed")
	case errors.Is(err, models.ErrIO):
		return utils.JSONError(c, fiber.StatusServiceUnavailable, "Storage unavailable")
	}
	return utils.JSONError(c, fiber.StatusInternalServerError, "internal error")
}
