package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"crimewatch/internal/models"
	"crimewatch/internal/pdf"
	"crimewatch/internal/repository"
	"crimewatch/internal/storage"
	"crimewatch/internal/tasks"
	"crimewatch/internal/validation"

	"go.uber.org/zap"
)

// Upload is a received file. Content must be readable until the service call returns.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

func (u *Upload) file() *validation.File {
	if u == nil {
		return nil
	}
	return &validation.File{Name: u.Filename, ContentType: u.ContentType, Size: u.Size}
}

// ReportInput carries the editable fields of a report. A nil upload keeps the
// current attachment on edit; ClearPhoto and ClearVideo drop it.
type ReportInput struct {
	Title       string
	Description string
	Location    string
	Photo       *Upload
	Video       *Upload
	ClearPhoto  bool
	ClearVideo  bool
}

func (in *ReportInput) validate() error {
	form := validation.ReportForm{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Photo:       in.Photo.file(),
		Video:       in.Video.file(),
	}
	form.Normalize()
	in.Title, in.Description, in.Location = form.Title, form.Description, form.Location
	return validation.ValidateReport(form)
}

// ReportNotifier receives the submission alert.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report *models.Report, pdf []byte) error
}

type ReportService struct {
	reports  *repository.ReportRepo
	store    storage.Storage
	exporter pdf.Exporter
	notifier ReportNotifier
	tasks    tasks.Dispatcher
	log      *zap.SugaredLogger
}

func NewReportService(reports *repository.ReportRepo, store storage.Storage, exporter pdf.Exporter,
	notifier ReportNotifier, dispatcher tasks.Dispatcher, log *zap.SugaredLogger) *ReportService {
	return &ReportService{
		reports:  reports,
		store:    store,
		exporter: exporter,
		notifier: notifier,
		tasks:    dispatcher,
		log:      log,
	}
}

// SubmitReport validates and stores a new report owned by owner, then
// schedules the staff alert. Alert failures never reach the caller.
func (s *ReportService) SubmitReport(ctx context.Context, owner *models.User, in ReportInput) (*models.Report, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	report := &models.Report{
		UserID:      owner.ID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
	}

	var written []string
	err := s.reports.Transaction(ctx, func(tx *repository.ReportRepo) error {
		if err := tx.Create(ctx, report); err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		if in.Photo == nil && in.Video == nil {
			return nil
		}
		if in.Photo != nil {
			key := storage.PhotoKey(owner.ID, report.ID, in.Photo.Filename)
			if err := s.store.Save(ctx, key, in.Photo.Content, in.Photo.ContentType); err != nil {
				return fmt.Errorf("store photo: %w", err)
			}
			written = append(written, key)
			report.Photo = key
		}
		if in.Video != nil {
			key := storage.VideoKey(owner.ID, report.ID, in.Video.Filename)
			if err := s.store.Save(ctx, key, in.Video.Content, in.Video.ContentType); err != nil {
				return fmt.Errorf("store video: %w", err)
			}
			written = append(written, key)
			report.Video = key
		}
		report.UpdatedAt = report.CreatedAt
		return tx.Update(ctx, report)
	})
	if err != nil {
		s.removeObjects(written)
		return nil, err
	}

	report.User = *owner
	s.log.Infow("report submitted", "report_id", report.ID, "user_id", owner.ID)

	snapshot := *report
	s.tasks.Dispatch("notify-report", func(ctx context.Context) error {
		doc, err := s.exporter.Bytes(ctx, &snapshot, pdf.SubmissionLayout)
		if err != nil {
			return fmt.Errorf("render report %d: %w", snapshot.ID, err)
		}
		return s.notifier.NotifyReport(ctx, &snapshot, doc)
	})
	return report, nil
}

// ListReports returns ownerID's reports newest first, optionally narrowed to
// locations containing location (case-insensitive).
func (s *ReportService) ListReports(ctx context.Context, ownerID uint, location string) ([]models.Report, error) {
	reports, err := s.reports.ListForOwner(ctx, ownerID, location)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *ReportService) GetReport(ctx context.Context, ownerID, reportID uint) (*models.Report, error) {
	report, err := s.reports.GetForOwner(ctx, ownerID, reportID)
	if err != nil {
		return nil, notFound(err)
	}
	return report, nil
}

// EditReport replaces the mutable fields of one of owner's reports. id, owner
// and created_at are preserved. Concurrent edits are last-write-wins.
func (s *ReportService) EditReport(ctx context.Context, owner *models.User, reportID uint, in ReportInput) (*models.Report, error) {
	report, err := s.reports.GetForOwner(ctx, owner.ID, reportID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	previous := *report
	var written, stale []string
	err = s.reports.Transaction(ctx, func(tx *repository.ReportRepo) error {
		report.Title = in.Title
		report.Description = in.Description
		report.Location = in.Location

		switch {
		case in.Photo != nil:
			key := storage.PhotoKey(owner.ID, report.ID, in.Photo.Filename)
			if key == previous.Photo {
				key = storage.PhotoKey(owner.ID, report.ID, storage.AlternateName(in.Photo.Filename))
			}
			if err := s.store.Save(ctx, key, in.Photo.Content, in.Photo.ContentType); err != nil {
				return fmt.Errorf("store photo: %w", err)
			}
			written = append(written, key)
			if previous.Photo != "" {
				stale = append(stale, previous.Photo)
			}
			report.Photo = key
		case in.ClearPhoto && previous.Photo != "":
			stale = append(stale, previous.Photo)
			report.Photo = ""
		}

		switch {
		case in.Video != nil:
			key := storage.VideoKey(owner.ID, report.ID, in.Video.Filename)
			if key == previous.Video {
				key = storage.VideoKey(owner.ID, report.ID, storage.AlternateName(in.Video.Filename))
			}
			if err := s.store.Save(ctx, key, in.Video.Content, in.Video.ContentType); err != nil {
				return fmt.Errorf("store video: %w", err)
			}
			written = append(written, key)
			if previous.Video != "" {
				stale = append(stale, previous.Video)
			}
			report.Video = key
		case in.ClearVideo && previous.Video != "":
			stale = append(stale, previous.Video)
			report.Video = ""
		}

		report.UpdatedAt = time.Now()
		return tx.Update(ctx, report)
	})
	if err != nil {
		s.removeObjects(written)
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.removeObjects(stale)
	s.log.Infow("report updated", "report_id", report.ID, "user_id", owner.ID)
	return report, nil
}

// DeleteReport permanently removes one of ownerID's reports and its media.
func (s *ReportService) DeleteReport(ctx context.Context, ownerID, reportID uint) error {
	report, err := s.reports.DeleteForOwner(ctx, ownerID, reportID)
	if err != nil {
		return notFound(err)
	}
	s.removeObjects([]string{report.Photo, report.Video})
	s.log.Infow("report deleted", "report_id", reportID, "user_id", ownerID)
	return nil
}

// ExportReport streams the download layout of report to w.
func (s *ReportService) ExportReport(ctx context.Context, w io.Writer, report *models.Report) error {
	return s.exporter.Render(ctx, w, report, pdf.DownloadLayout)
}

// removeObjects deletes media best-effort; failures are only logged.
func (s *ReportService) removeObjects(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warnw("failed to remove stored media", "key", key, "error", err)
		}
	}
}

func notFound(err error) error {
	if repository.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
