package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"audioscribe/internal/apperr"
	"audioscribe/internal/model"
	"audioscribe/internal/repository"
	"audioscribe/internal/utils"
)

var tagNamesOnce sync.Once

// registerTagNames makes validation errors report JSON field names.
func registerTagNames() {
	tagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindError turns a JSON binding failure into a validation error listing
// the offending fields.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return apperr.Validation("invalid request body").WithCause(err).WithDetail("fields", fields)
	}
	return apperr.Validation("invalid request body").WithCause(err).WithDetail("message", err.Error())
}

// storeError maps a store failure onto the error taxonomy.
func storeError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("transcription", id)
	}
	return apperr.Store(err)
}

// ListTranscriptions handles GET /transcriptions, newest first.
func (h *Handler) ListTranscriptions(c *gin.Context) {
	rows, err := h.store.List(c.Request.Context())
	if err != nil {
		utils.Error(c, storeError(err, ""))
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetTranscription handles GET /transcriptions/:id.
func (h *Handler) GetTranscription(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, storeError(err, id))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CreateTranscription handles POST /transcriptions.
func (h *Handler) CreateTranscription(c *gin.Context) {
	var in model.TranscriptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.Error(c, bindError(err))
		return
	}
	if strings.TrimSpace(in.Filename) == "" || strings.TrimSpace(in.OriginalText) == "" {
		utils.Error(c, apperr.Validation("filename and original_text are required"))
		return
	}

	rec, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		utils.Error(c, storeError(err, ""))
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// UpdateTranscription handles PUT /transcriptions/:id. Absent fields are
// left unchanged; updated_at is always refreshed.
func (h *Handler) UpdateTranscription(c *gin.Context) {
	id := c.Param("id")
	var patch model.TranscriptionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.Error(c, bindError(err))
		return
	}
	if blank(patch.Filename) || blank(patch.OriginalText) {
		utils.Error(c, apperr.Validation("filename and original_text cannot be blank"))
		return
	}

	rec, err := h.store.Update(c.Request.Context(), id, patch)
	if err != nil {
		utils.Error(c, storeError(err, id))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// blank reports whether a provided field is empty after trimming.
func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

// DeleteTranscription handles DELETE /transcriptions/:id. Deleting an
// absent id succeeds.
func (h *Handler) DeleteTranscription(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		utils.Error(c, storeError(err, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transcription deleted successfully"})
}
