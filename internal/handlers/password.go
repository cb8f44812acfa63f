package handlers

import (
	"errors"
	"net/http"

	"crimewatch/internal/services"
	"crimewatch/internal/validation"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PasswordHandler struct {
	resets *services.PasswordResetService
	log    *zap.SugaredLogger
}

func NewPasswordHandler(resets *services.PasswordResetService, log *zap.SugaredLogger) *PasswordHandler {
	return &PasswordHandler{resets: resets, log: log}
}

func (h *PasswordHandler) ShowRequest(c *gin.Context) {
	Render(c, http.StatusOK, "auth/password_reset.html", nil)
}

func (h *PasswordHandler) Request(c *gin.Context) {
	email := c.PostForm("email")

	err := h.resets.RequestReset(c.Request.Context(), email)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			Render(c, http.StatusBadRequest, "auth/password_reset.html", gin.H{"Email": email, "Errors": verrs})
			return
		}
		h.log.Errorw("password reset request failed", "error", err)
		RenderError(c, http.StatusInternalServerError, "Password reset failed, please try again later.")
		return
	}
	c.Redirect(http.StatusFound, "/password_reset_done")
}

func (h *PasswordHandler) RequestDone(c *gin.Context) {
	Render(c, http.StatusOK, "auth/password_reset_done.html", nil)
}

func (h *PasswordHandler) ShowConfirm(c *gin.Context) {
	_, err := h.resets.CheckToken(c.Request.Context(), c.Param("token"))
	if err != nil && !errors.Is(err, services.ErrInvalidResetToken) {
		h.log.Errorw("password reset check failed", "error", err)
		RenderError(c, http.StatusInternalServerError, "Password reset failed, please try again later.")
		return
	}
	Render(c, http.StatusOK, "auth/password_reset_confirm.html", gin.H{
		"ValidLink": err == nil,
		"Token":     c.Param("token"),
	})
}

func (h *PasswordHandler) Confirm(c *gin.Context) {
	token := c.Param("token")

	user, err := h.resets.ResetPassword(c.Request.Context(), token, c.PostForm("new_password1"), c.PostForm("new_password2"))
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.Is(err, services.ErrInvalidResetToken):
			Render(c, http.StatusBadRequest, "auth/password_reset_confirm.html", gin.H{"ValidLink": false})
		case errors.As(err, &verrs):
			Render(c, http.StatusBadRequest, "auth/password_reset_confirm.html", gin.H{
				"ValidLink": true,
				"Token":     token,
				"Errors":    verrs,
			})
		default:
			h.log.Errorw("password reset failed", "error", err)
			RenderError(c, http.StatusInternalServerError, "Password reset failed, please try again later.")
		}
		return
	}

	// Drop any session opened with the old password.
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	h.log.Infow("password reset completed", "user_id", user.ID)
	c.Redirect(http.StatusFound, "/reset_complete")
}

func (h *PasswordHandler) Complete(c *gin.Context) {
	Render(c, http.StatusOK, "auth/password_reset_complete.html", nil)
}
