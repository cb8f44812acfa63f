package router

import (
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"crimewatch/internal/handlers"
	"crimewatch/internal/middleware"
	"crimewatch/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionName = "crimewatch_session"

type Handlers struct {
	Auth     *handlers.AuthHandler
	Password *handlers.PasswordHandler
	Reports  *handlers.ReportHandler
	Health   *handlers.HealthHandler
	// Media serves local storage at /media; nil when media lives elsewhere.
	Media *handlers.MediaHandler
}

type Options struct {
	SessionSecret string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	Location      *time.Location
	Users         middleware.UserLoader
	Log           *zap.SugaredLogger
}

// New builds the engine: middleware, templates, static assets and routes.
func New(opts Options, h Handlers) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(opts.Log))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((14 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	renderer, err := handlers.LoadTemplates(web.FS, handlers.TemplateFuncs(opts.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	r.HTMLRender = renderer

	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, err
	}
	r.StaticFS("/static", http.FS(static))

	r.Use(middleware.LoadUser(opts.Users))
	RegisterRoutes(r, h)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/login") })

	r.GET("/register", h.Auth.ShowRegister)
	r.POST("/register", h.Auth.Register)
	r.GET("/login", h.Auth.ShowLogin)
	r.POST("/login", h.Auth.Login)
	r.GET("/logout", h.Auth.Logout)
	r.POST("/logout", h.Auth.Logout)

	r.GET("/password_reset", h.Password.ShowRequest)
	r.POST("/password_reset", h.Password.Request)
	r.GET("/password_reset_done", h.Password.RequestDone)
	r.GET("/reset/:token", h.Password.ShowConfirm)
	r.POST("/reset/:token", h.Password.Confirm)
	r.GET("/reset_complete", h.Password.Complete)

	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/dashboard", h.Reports.Dashboard)
		authorized.GET("/report", h.Reports.ShowCreate)
		authorized.POST("/report", h.Reports.Create)
		authorized.GET("/report/edit/:id", h.Reports.ShowEdit)
		authorized.POST("/report/edit/:id", h.Reports.Update)
		authorized.POST("/report/delete/:id", h.Reports.Delete)
		authorized.GET("/report/download/:id", h.Reports.Download)
		authorized.GET("/download_report/:id", h.Reports.Download)
		if h.Media != nil {
			authorized.GET("/media/*key", h.Media.Serve)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.RenderError(c, http.StatusNotFound, "Page not found.")
	})
}
