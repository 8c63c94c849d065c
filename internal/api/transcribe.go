package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"audioscribe/internal/apperr"
	"audioscribe/internal/stt"
	"audioscribe/internal/transcribe"
	"audioscribe/internal/utils"
)

const audioField = "audio"

// transcribeForm holds the optional form fields sent next to the audio file.
// Unset booleans keep their defaults.
type transcribeForm struct {
	Provider    string `form:"provider"`
	Model       string `form:"model"`
	Language    string `form:"language"`
	Punctuate   *bool  `form:"punctuate"`
	Diarize     *bool  `form:"diarize"`
	SmartFormat *bool  `form:"smart_format"`
}

func (f transcribeForm) options() stt.Options {
	opts := stt.DefaultOptions()
	opts.Model = f.Model
	opts.Language = f.Language
	if f.Punctuate != nil {
		opts.Punctuate = *f.Punctuate
	}
	if f.Diarize != nil {
		opts.Diarize = *f.Diarize
	}
	if f.SmartFormat != nil {
		opts.SmartFormat = *f.SmartFormat
	}
	return opts
}

// Transcribe handles POST /transcribe.
func (h *Handler) Transcribe(c *gin.Context) {
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}

	up, err := h.upload(c)
	if err != nil {
		utils.Error(c, err)
		return
	}

	var form transcribeForm
	if up != nil {
		if err := c.ShouldBind(&form); err != nil {
			utils.Error(c, apperr.Validation("invalid form field").WithCause(err).
				WithDetail("message", err.Error()))
			return
		}
	}

	out, err := h.svc.Handle(c.Request.Context(), up, transcribe.Request{
		Provider: form.Provider,
		Options:  form.options(),
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeConfiguration) {
			h.logger.Warn().Err(err).Str("provider", form.Provider).Msg("provider not configured")
		}
		utils.Error(c, err)
		return
	}

	resp := gin.H{
		"success":       true,
		"transcription": out.Result,
		"service":       out.Provider,
		"saved":         out.Saved,
	}
	if out.Record != nil {
		resp["transcription_id"] = out.Record.ID
	}
	c.JSON(http.StatusOK, resp)
}

// upload extracts the audio part. A request without one yields a nil
// Upload so the service reports the missing file.
func (h *Handler) upload(c *gin.Context) (transcribe.Upload, error) {
	fh, err := c.FormFile(audioField)
	if err == nil {
		return transcribe.FromFileHeader(fh), nil
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, apperr.TooLarge(c.Request.ContentLength, h.maxBody-multipartSlack)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	default:
		return nil, apperr.Validation("invalid multipart form").WithCause(err)
	}
}
