package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"crimewatch/internal/middleware"
	"crimewatch/internal/models"
	"crimewatch/internal/services"
	"crimewatch/internal/utils"
	"crimewatch/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reports   *services.ReportService
	maxUpload int64
	log       *zap.SugaredLogger
}

func NewReportHandler(reports *services.ReportService, maxUpload int64, log *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, maxUpload: maxUpload, log: log}
}

// reportForm is what the create and edit pages show.
type reportForm struct {
	Title       string
	Description string
	Location    string
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	location := c.Query("location")

	reports, err := h.reports.ListReports(c.Request.Context(), user.ID, location)
	if err != nil {
		h.fail(c, "list reports", err)
		return
	}
	Render(c, http.StatusOK, "report/dashboard.html", gin.H{
		"Reports":  reports,
		"Location": location,
	})
}

func (h *ReportHandler) ShowCreate(c *gin.Context) {
	Render(c, http.StatusOK, "report/create.html", gin.H{"Form": reportForm{}})
}

func (h *ReportHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	in, cleanup, err := h.readInput(c)
	defer cleanup()
	if err != nil {
		h.rejectUpload(c, err)
		return
	}

	_, err = h.reports.SubmitReport(c.Request.Context(), user, in)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			Render(c, http.StatusBadRequest, "report/create.html", gin.H{"Form": formOf(in), "Errors": verrs})
			return
		}
		h.fail(c, "submit report", err)
		return
	}

	redirectWithFlash(c, "/dashboard", "Your report has been submitted successfully.")
}

func (h *ReportHandler) ShowEdit(c *gin.Context) {
	report, ok := h.ownedReport(c)
	if !ok {
		return
	}
	Render(c, http.StatusOK, "report/edit.html", gin.H{
		"Report": report,
		"Form":   reportForm{Title: report.Title, Description: report.Description, Location: report.Location},
	})
}

func (h *ReportHandler) Update(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		RenderError(c, http.StatusNotFound, "Report not found.")
		return
	}

	in, cleanup, err := h.readInput(c)
	defer cleanup()
	if err != nil {
		h.rejectUpload(c, err)
		return
	}
	in.ClearPhoto = c.PostForm("clear_photo") != ""
	in.ClearVideo = c.PostForm("clear_video") != ""

	_, err = h.reports.EditReport(c.Request.Context(), user, id, in)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.Is(err, services.ErrNotFound):
			RenderError(c, http.StatusNotFound, "Report not found.")
		case errors.As(err, &verrs):
			report, gerr := h.reports.GetReport(c.Request.Context(), user.ID, id)
			if gerr != nil {
				h.fail(c, "load report", gerr)
				return
			}
			Render(c, http.StatusBadRequest, "report/edit.html", gin.H{"Report": report, "Form": formOf(in), "Errors": verrs})
		default:
			h.fail(c, "edit report", err)
		}
		return
	}

	redirectWithFlash(c, "/dashboard", "Your report has been updated successfully.")
}

func (h *ReportHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		RenderError(c, http.StatusNotFound, "Report not found.")
		return
	}

	if err := h.reports.DeleteReport(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			RenderError(c, http.StatusNotFound, "Report not found.")
			return
		}
		h.fail(c, "delete report", err)
		return
	}

	redirectWithFlash(c, "/dashboard", "Your report has been deleted.")
}

// Download streams the report as a PDF attachment.
func (h *ReportHandler) Download(c *gin.Context) {
	report, ok := h.ownedReport(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="report.pdf"`)
	c.Status(http.StatusOK)
	if err := h.reports.ExportReport(c.Request.Context(), c.Writer, report); err != nil {
		if c.Writer.Written() {
			h.log.Errorw("pdf stream interrupted", "report_id", report.ID, "error", err)
			return
		}
		c.Writer.Header().Del("Content-Type")
		c.Writer.Header().Del("Content-Disposition")
		h.fail(c, "export report", err)
	}
}

func (h *ReportHandler) ownedReport(c *gin.Context) (*models.Report, bool) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		RenderError(c, http.StatusNotFound, "Report not found.")
		return nil, false
	}
	report, err := h.reports.GetReport(c.Request.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			RenderError(c, http.StatusNotFound, "Report not found.")
		} else {
			h.fail(c, "load report", err)
		}
		return nil, false
	}
	return report, true
}

// readInput collects the form fields and uploads. cleanup is always safe to call.
func (h *ReportHandler) readInput(c *gin.Context) (services.ReportInput, func(), error) {
	var files []multipart.File
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
	}
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	in := services.ReportInput{}
	photo, err := formUpload(c, "photos", &files)
	if err != nil {
		return in, cleanup, err
	}
	video, err := formUpload(c, "videos", &files)
	if err != nil {
		return in, cleanup, err
	}

	in.Title = c.PostForm("title")
	in.Description = c.PostForm("description")
	in.Location = c.PostForm("location")
	in.Photo = photo
	in.Video = video
	return in, cleanup, nil
}

func formUpload(c *gin.Context, field string, opened *[]multipart.File) (*services.Upload, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Filename == "" {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	*opened = append(*opened, f)
	return &services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}, nil
}

func (h *ReportHandler) rejectUpload(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RenderError(c, http.StatusRequestEntityTooLarge, "The upload is too large.")
		return
	}
	h.log.Warnw("unreadable report form", "error", err)
	RenderError(c, http.StatusBadRequest, "The form could not be read.")
}

func (h *ReportHandler) fail(c *gin.Context, action string, err error) {
	h.log.Errorw(action+" failed", "path", c.Request.URL.Path, "error", err)
	_ = c.Error(err)
	RenderError(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
}

func formOf(in services.ReportInput) reportForm {
	return reportForm{Title: in.Title, Description: in.Description, Location: in.Location}
}
