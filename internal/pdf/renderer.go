package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"crimewatch/internal/models"
	"crimewatch/internal/storage"

	"github.com/go-pdf/fpdf"
)

const (
	marginLeft   = 72.0
	marginTop    = 36.0
	marginBottom = 36.0
	lineHeight   = 20.0
	fontFamily   = "Helvetica"
	fontSize     = 12.0
	headingSize  = 16.0

	linkText = "Click here to watch the video"
)

// Layout selects the photo box size. The submission mail and the download use different boxes.
type Layout struct {
	Name        string
	PhotoWidth  float64
	PhotoHeight float64
}

var (
	SubmissionLayout = Layout{Name: "submission", PhotoWidth: 200, PhotoHeight: 200}
	DownloadLayout   = Layout{Name: "download", PhotoWidth: 200, PhotoHeight: 150}
)

// Exporter turns a report into a PDF, either buffered or streamed.
type Exporter interface {
	Bytes(ctx context.Context, report *models.Report, layout Layout) ([]byte, error)
	Render(ctx context.Context, w io.Writer, report *models.Report, layout Layout) error
}

type Options struct {
	// Location is the zone used for the "Date Reported" line.
	Location *time.Location
	// Compress deflates page streams. Tests turn it off to search the text.
	Compress bool
}

// Renderer draws reports with fpdf. Media is read through the storage
// boundary; a missing or unreadable attachment becomes an error line in the
// document instead of failing the export.
type Renderer struct {
	store    storage.Storage
	location *time.Location
	compress bool
}

func NewRenderer(store storage.Storage, opts Options) *Renderer {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{store: store, location: loc, compress: opts.Compress}
}

func (r *Renderer) Render(ctx context.Context, w io.Writer, report *models.Report, layout Layout) error {
	doc, _, err := r.build(ctx, report, layout)
	if err != nil {
		return err
	}
	return doc.Output(w)
}

func (r *Renderer) Bytes(ctx context.Context, report *models.Report, layout Layout) ([]byte, error) {
	b, _, err := r.bytes(ctx, report, layout)
	return b, err
}

// bytes also reports whether any media block had to be replaced by an error line.
func (r *Renderer) bytes(ctx context.Context, report *models.Report, layout Layout) ([]byte, bool, error) {
	doc, degraded, err := r.build(ctx, report, layout)
	if err != nil {
		return nil, false, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), degraded, nil
}

type page struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (p page) line(text string) {
	p.CellFormat(0, lineHeight, p.tr(text), "", 1, "L", false, 0, "")
}

func (r *Renderer) build(ctx context.Context, report *models.Report, layout Layout) (*fpdf.Fpdf, bool, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetCompression(r.compress)
	doc.SetCatalogSort(true)

	stamp := report.UpdatedAt
	if stamp.IsZero() {
		stamp = report.CreatedAt
	}
	doc.SetCreationDate(stamp)
	doc.SetModificationDate(stamp)
	doc.SetTitle("Crime Report: "+report.Title, true)
	doc.SetAuthor(report.User.Username, true)

	doc.SetMargins(marginLeft, marginTop, marginLeft)
	doc.SetAutoPageBreak(true, marginBottom)
	doc.AddPage()

	p := page{Fpdf: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}

	doc.SetFont(fontFamily, "B", headingSize)
	p.line("Crime Report")
	doc.SetFont(fontFamily, "", fontSize)

	p.line("Submitted by: " + report.User.Username)
	p.line("Title: " + report.Title)
	doc.MultiCell(0, lineHeight, p.tr("Description: "+report.Description), "", "L", false)
	p.line("Location: " + report.Location)
	p.line("Date Reported: " + report.CreatedAt.In(r.location).Format("2006-01-02 15:04"))

	photoOK := r.photoBlock(ctx, p, report, layout)
	videoOK := r.videoBlock(ctx, p, report)

	if doc.Err() {
		return nil, false, fmt.Errorf("render report %d: %w", report.ID, doc.Error())
	}
	return doc, !(photoOK && videoOK), nil
}

func (r *Renderer) photoBlock(ctx context.Context, p page, report *models.Report, layout Layout) bool {
	if !report.HasPhoto() {
		p.line("No photo uploaded.")
		return true
	}

	p.line("Attached Photo:")
	name, imageType, err := r.registerImage(ctx, p.Fpdf, report.Photo)
	if err != nil {
		p.line("Photo Error: " + err.Error())
		return false
	}

	_, pageHeight := p.GetPageSize()
	if p.GetY()+layout.PhotoHeight > pageHeight-marginBottom {
		p.AddPage()
	}
	y := p.GetY()
	p.ImageOptions(name, marginLeft, y, layout.PhotoWidth, layout.PhotoHeight, false,
		fpdf.ImageOptions{ImageType: imageType}, 0, "")
	p.SetY(y + layout.PhotoHeight + lineHeight)
	return true
}

func (r *Renderer) registerImage(ctx context.Context, doc *fpdf.Fpdf, key string) (string, string, error) {
	imageType := storage.ImageType(key)
	if imageType == "" {
		return "", "", errors.New("unsupported image format")
	}

	rc, err := r.store.Open(ctx, key)
	if err != nil {
		return "", "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", "", err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", "", err
	}

	doc.RegisterImageOptionsReader(key, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if doc.Err() {
		err := doc.Error()
		doc.ClearError()
		return "", "", err
	}
	return key, imageType, nil
}

func (r *Renderer) videoBlock(ctx context.Context, p page, report *models.Report) bool {
	if !report.HasVideo() {
		p.line("No video uploaded.")
		return true
	}

	p.line("Attached video:")
	p.line("Filename: " + report.VideoName())

	url, err := r.store.URL(ctx, report.Video)
	if err != nil {
		p.line("Video link error: " + err.Error())
		return false
	}

	p.SetTextColor(0, 0, 255)
	p.CellFormat(p.GetStringWidth(linkText), lineHeight, linkText, "", 1, "L", false, 0, url)
	p.SetTextColor(0, 0, 0)
	return true
}
