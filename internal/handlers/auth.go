package handlers

import (
	"errors"
	"net/http"

	"crimewatch/internal/middleware"
	"crimewatch/internal/services"
	"crimewatch/internal/validation"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users *services.UserService
	log   *zap.SugaredLogger
}

func NewAuthHandler(users *services.UserService, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "auth/register.html", gin.H{"Form": validation.RegistrationForm{}})
}

func (h *AuthHandler) Register(c *gin.Context) {
	form := validation.RegistrationForm{
		Username:  c.PostForm("username"),
		Email:     c.PostForm("email"),
		Password1: c.PostForm("password1"),
		Password2: c.PostForm("password2"),
	}

	user, err := h.users.Register(c.Request.Context(), form)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			form.Password1, form.Password2 = "", ""
			Render(c, http.StatusBadRequest, "auth/register.html", gin.H{"Form": form, "Errors": verrs})
			return
		}
		h.log.Errorw("registration failed", "username", form.Username, "error", err)
		RenderError(c, http.StatusInternalServerError, "Registration failed, please try again later.")
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	session.AddFlash("Registered successfully! You are now logged in.")
	session.Save()

	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := h.users.Authenticate(c.Request.Context(), username, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Error":    "Invalid username or password",
			"Username": username,
		})
		return
	}
	if err != nil {
		h.log.Errorw("login failed", "username", username, "error", err)
		RenderError(c, http.StatusInternalServerError, "Login failed, please try again later.")
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserKey, user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.AddFlash("You have been logged out successfully.")
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}
