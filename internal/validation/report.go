package validation

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength    = 100
	MaxLocationLength = 255

	MaxPhotoSize int64 = 5 * 1024 * 1024
	MaxVideoSize int64 = 50 * 1024 * 1024
)

// File describes an upload after it has been fully received.
type File struct {
	Name        string
	ContentType string
	Size        int64
}

// ReportForm is the submitted report before it touches the database. Photo and
// Video are nil when the user attached nothing.
type ReportForm struct {
	Title       string
	Description string
	Location    string
	Photo       *File
	Video       *File
}

func (f *ReportForm) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Location = strings.TrimSpace(f.Location)
}

// ValidateReport returns every problem with f as Errors, or nil.
func ValidateReport(f ReportForm) error {
	var errs Errors

	requireText(&errs, "title", f.Title, MaxTitleLength)
	requireText(&errs, "description", f.Description, 0)
	requireText(&errs, "location", f.Location, MaxLocationLength)

	if f.Photo != nil && f.Photo.Size > MaxPhotoSize {
		errs.Add("photos", ErrPhotoTooLarge)
	}
	if f.Video != nil && f.Video.Size > MaxVideoSize {
		errs.Add("videos", ErrVideoTooLarge)
	}

	return errs.OrNil()
}

func requireText(errs *Errors, field, value string, max int) {
	switch {
	case value == "":
		errs.Add(field, ErrRequired)
	case max > 0 && utf8.RuneCountInString(value) > max:
		errs.Add(field, ErrTooLong)
	}
}
