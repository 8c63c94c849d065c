package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"audioscribe/internal/apperr"
	"audioscribe/internal/stt"
	"audioscribe/internal/utils"
)

// SpeechTest handles GET /speech/test. It verifies the credentials of the
// default provider, or of ?provider= when given.
func (h *Handler) SpeechTest(c *gin.Context) {
	p, err := h.providers.Get(c.Query("provider"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	checker, ok := p.(stt.Checker)
	if !ok {
		utils.Error(c, apperr.Configuration("provider has no credential check").
			WithDetail("provider", p.Name()))
		return
	}

	res, err := checker.Check(c.Request.Context())
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", p.Name()).Msg("credential check failed")
		utils.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  res.Message,
		"projects": res.Projects,
	})
}
