package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"crimewatch/internal/models"
	"crimewatch/web"
)

const (
	subjectWelcome      = "Welcome to Crime Report System"
	subjectRegistration = "New user registered"
	subjectReport       = "New Crime Report Submitted"
	subjectReset        = "Password reset on Crime Report System"
)

// StaffDirectory lists the addresses that receive administrative broadcasts.
type StaffDirectory interface {
	// StaffEmails returns the non-empty emails of staff users, skipping excludeID (0 skips nobody).
	StaffEmails(ctx context.Context, excludeID uint) ([]string, error)
}

// Gateway composes the application's transactional mail and hands it to a Mailer.
type Gateway struct {
	mailer   Mailer
	staff    StaffDirectory
	from     string
	siteURL  string
	location *time.Location
	tmpl     *template.Template
}

type GatewayOptions struct {
	From     string
	SiteURL  string
	Location *time.Location
}

func NewGateway(mailer Mailer, staff StaffDirectory, opts GatewayOptions) (*Gateway, error) {
	tmpl, err := template.ParseFS(web.FS, "templates/email/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Gateway{
		mailer:   mailer,
		staff:    staff,
		from:     opts.From,
		siteURL:  opts.SiteURL,
		location: loc,
		tmpl:     tmpl,
	}, nil
}

func (g *Gateway) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// SendWelcome mails the new user a greeting with the login link.
func (g *Gateway) SendWelcome(ctx context.Context, user *models.User) error {
	if user.Email == "" {
		return nil
	}
	body, err := g.render("welcome.txt", map[string]string{
		"Username": user.Username,
		"LoginURL": g.siteURL + "/login",
	})
	if err != nil {
		return err
	}
	return g.mailer.Send(ctx, Message{
		From:    g.from,
		To:      []string{user.Email},
		Subject: subjectWelcome,
		Body:    body,
	})
}

// SendPasswordReset mails user the link that lets them choose a new password.
func (g *Gateway) SendPasswordReset(ctx context.Context, user *models.User, link string) error {
	if user.Email == "" {
		return nil
	}
	body, err := g.render("password_reset.txt", map[string]string{
		"Username": user.Username,
		"Email":    user.Email,
		"ResetURL": link,
	})
	if err != nil {
		return err
	}
	return g.mailer.Send(ctx, Message{
		From:    g.from,
		To:      []string{user.Email},
		Subject: subjectReset,
		Body:    body,
	})
}

// NotifyRegistration tells every other staff user that user signed up.
func (g *Gateway) NotifyRegistration(ctx context.Context, user *models.User) error {
	to, err := g.staff.StaffEmails(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load staff emails: %w", err)
	}
	if len(to) == 0 {
		return nil
	}
	body, err := g.render("registration.txt", map[string]string{"Username": user.Username})
	if err != nil {
		return err
	}
	return g.mailer.Send(ctx, Message{
		From:    g.from,
		To:      to,
		Subject: subjectRegistration,
		Body:    body,
	})
}

// NotifyReport sends the submission alert with the rendered report attached.
// report.User must be loaded.
func (g *Gateway) NotifyReport(ctx context.Context, report *models.Report, pdf []byte) error {
	to, err := g.staff.StaffEmails(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load staff emails: %w", err)
	}
	if len(to) == 0 {
		return nil
	}
	body, err := g.render("report.txt", map[string]string{
		"Username":  report.User.Username,
		"Title":     report.Title,
		"Location":  report.Location,
		"CreatedAt": report.CreatedAt.In(g.location).Format("2006-01-02 15:04"),
	})
	if err != nil {
		return err
	}
	return g.mailer.Send(ctx, Message{
		From:    g.from,
		To:      to,
		Subject: subjectReport,
		Body:    body,
		Attachments: []Attachment{{
			Filename:    ReportAttachmentName(report),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
}

func ReportAttachmentName(report *models.Report) string {
	return fmt.Sprintf("crime_report_by_%s.pdf", report.User.Username)
}
