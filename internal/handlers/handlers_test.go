package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"crimewatch/internal/db"
	"crimewatch/internal/handlers"
	"crimewatch/internal/notify"
	"crimewatch/internal/pdf"
	"crimewatch/internal/repository"
	"crimewatch/internal/router"
	"crimewatch/internal/services"
	"crimewatch/internal/storage"
	"crimewatch/internal/tasks"
	"crimewatch/internal/validation"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

func (m *recordingMailer) bySubject(subject string) []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Message
	for _, msg := range m.sent {
		if msg.Subject == subject {
			out = append(out, msg)
		}
	}
	return out
}

type testServer struct {
	*httptest.Server
	mailer   *recordingMailer
	users    *services.UserService
	userRepo *repository.UserRepo
	store    storage.Storage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	log := zap.NewNop().Sugar()
	store := storage.NewLocal(t.TempDir(), "http://media.test/media")
	mailer := &recordingMailer{}
	userRepo := repository.NewUserRepo(conn)
	gateway, err := notify.NewGateway(mailer, userRepo, notify.GatewayOptions{
		From: "noreply@crimewatch.test", SiteURL: "http://crimewatch.test", Location: time.UTC,
	})
	require.NoError(t, err)

	dispatcher := tasks.Sync{Log: log}
	renderer := pdf.NewRenderer(store, pdf.Options{Location: time.UTC})
	users := services.NewUserService(userRepo, gateway, dispatcher, log)
	reports := services.NewReportService(repository.NewReportRepo(conn), store, renderer, gateway, dispatcher, log)
	resets := services.NewPasswordResetService(userRepo, gateway, dispatcher, log, services.PasswordResetOptions{
		Secret: []byte("test-secret"), TTL: time.Hour, SiteURL: "http://crimewatch.test",
	})

	engine, err := router.New(router.Options{
		SessionSecret: "test-secret",
		Location:      time.UTC,
		Users:         users,
		Log:           log,
	}, router.Handlers{
		Auth:     handlers.NewAuthHandler(users, log),
		Password: handlers.NewPasswordHandler(resets, log),
		Reports:  handlers.NewReportHandler(reports, 64<<20, log),
		Health:   handlers.NewHealthHandler(conn),
		Media:    handlers.NewMediaHandler(store, log),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mailer: mailer, users: users, userRepo: userRepo, store: store}
}

func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func noRedirect(c *http.Client) *http.Client {
	return &http.Client{
		Jar:           c.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func document(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func (s *testServer) register(t *testing.T, c *http.Client, username string) *http.Response {
	t.Helper()
	resp, err := c.PostForm(s.URL+"/register", url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password1": {"correct horse"},
		"password2": {"correct horse"},
	})
	require.NoError(t, err)
	return resp
}

type upload struct {
	field, name string
	data        []byte
}

func (s *testServer) postMultipart(t *testing.T, c *http.Client, path string, fields map[string]string, files ...upload) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *testServer) submit(t *testing.T, c *http.Client, title, location string) {
	t.Helper()
	resp := s.postMultipart(t, c, "/report", map[string]string{
		"title": title, "description": "Reported from the test suite.", "location": location,
	})
	resp.Body.Close()
	require.Equal(t, "/dashboard", resp.Request.URL.Path)
}

func firstReportID(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	id, ok := doc.Find("li.report").First().Attr("id")
	require.True(t, ok)
	return strings.TrimPrefix(id, "report-")
}

func TestAnonymousRequestsRedirectToLogin(t *testing.T) {
	s := newTestServer(t)
	c := noRedirect(s.client(t))

	for _, path := range []string{"/", "/dashboard", "/report", "/report/edit/1", "/report/download/1"} {
		resp, err := c.Get(s.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestRegisterLogsInAndSendsMail(t *testing.T) {
	s := newTestServer(t)
	_, err := s.users.CreateStaff(context.Background(), validation.RegistrationForm{
		Username: "chief", Email: "chief@example.com", Password1: "station-house", Password2: "station-house",
	})
	require.NoError(t, err)
	c := s.client(t)

	resp := s.register(t, c, "alice")
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	doc := document(t, resp)
	assert.Contains(t, doc.Find(".flash").Text(), "Registered successfully! You are now logged in.")
	assert.Contains(t, doc.Find(".nav").Text(), "alice")

	assert.ElementsMatch(t, []string{"Welcome to Crime Report System", "New user registered"}, s.mailer.subjects())
}

func TestRegisterShowsAllFieldErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, s.client(t), "alice").Body.Close()

	resp, err := s.client(t).PostForm(s.URL+"/register", url.Values{
		"username":  {"alice"},
		"email":     {"alice@example.com"},
		"password1": {"correct horse"},
		"password2": {"battery staple"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	doc := document(t, resp)
	errs := doc.Find(".field-error").Map(func(_ int, sel *goquery.Selection) string { return sel.Text() })
	assert.Contains(t, errs, "Username already exists.")
	assert.Contains(t, errs, "Email already registered.")
	assert.Contains(t, errs, "Passwords do not match.")
	val, _ := doc.Find("input#username").Attr("value")
	assert.Equal(t, "alice", val)
}

func TestLoginAndLogout(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	s.register(t, c, "alice").Body.Close()

	resp, err := c.Post(s.URL+"/logout", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, document(t, resp).Find(".flash").Text(), "You have been logged out successfully.")

	resp, err = c.PostForm(s.URL+"/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, document(t, resp).Find(".flash.error").Text(), "Invalid username or password")

	resp, err = c.PostForm(s.URL+"/login", url.Values{"username": {"alice"}, "password": {"correct horse"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	resp.Body.Close()
}

func TestSubmitAndFilterDashboard(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	s.register(t, c, "alice").Body.Close()

	resp := s.postMultipart(t, c, "/report", map[string]string{
		"title": "Theft", "description": "Bike stolen **outside** the library.", "location": "Main St",
	})
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	doc := document(t, resp)
	assert.Contains(t, doc.Find(".flash").Text(), "Your report has been submitted successfully.")
	assert.Equal(t, "outside", doc.Find(".description strong").Text())

	resp, err := c.Get(s.URL + "/dashboard?location=main")
	require.NoError(t, err)
	doc = document(t, resp)
	require.Equal(t, 1, doc.Find("li.report").Length())
	assert.Equal(t, "Theft", doc.Find(".report-title").Text())
	assert.Equal(t, "Main St", doc.Find(".report-location").Text())

	resp, err = c.Get(s.URL + "/dashboard?location=Oak")
	require.NoError(t, err)
	doc = document(t, resp)
	assert.Zero(t, doc.Find("li.report").Length())
	assert.Contains(t, doc.Find(".empty").Text(), `No reports match "Oak".`)

	assert.Contains(t, s.mailer.subjects(), "New Crime Report Submitted")
}

func TestSubmitRejectsOversizedPhoto(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	s.register(t, c, "alice").Body.Close()

	big := make([]byte, validation.MaxPhotoSize+1)
	resp := s.postMultipart(t, c, "/report", map[string]string{
		"title": "Theft", "description": "d", "location": "Main St",
	}, upload{field: "photos", name: "big.png", data: big})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	doc := document(t, resp)
	assert.Contains(t, doc.Find(".field-error").Text(), "Photo file size should not exceed 5MB.")
	val, _ := doc.Find("input#title").Attr("value")
	assert.Equal(t, "Theft", val)

	resp, err := c.Get(s.URL + "/dashboard")
	require.NoError(t, err)
	assert.Zero(t, document(t, resp).Find("li.report").Length())
}

func TestEditDownloadAndDelete(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	s.register(t, c, "alice").Body.Close()
	s.submit(t, c, "Theft", "Main St")

	resp, err := c.Get(s.URL + "/dashboard")
	require.NoError(t, err)
	id := firstReportID(t, document(t, resp))

	resp, err = c.Get(s.URL + "/report/edit/" + id)
	require.NoError(t, err)
	val, _ := document(t, resp).Find("input#location").Attr("value")
	assert.Equal(t, "Main St", val)

	resp = s.postMultipart(t, c, "/report/edit/"+id, map[string]string{
		"title": "Burglary", "description": "Door forced.", "location": "Oak Ave",
	})
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	doc := document(t, resp)
	assert.Equal(t, "Burglary", doc.Find(".report-title").Text())
	assert.Equal(t, "Oak Ave", doc.Find(".report-location").Text())

	for _, path := range []string{"/report/download/", "/download_report/"} {
		resp, err = c.Get(s.URL + path + id)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="report.pdf"`, resp.Header.Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
		assert.Contains(t, string(body), "(Title: Burglary)")
	}

	resp, err = c.Post(s.URL+"/report/delete/"+id, "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	doc = document(t, resp)
	assert.Contains(t, doc.Find(".flash").Text(), "Your report has been deleted.")
	assert.Zero(t, doc.Find("li.report").Length())
}

func TestOtherUsersReportsAreNotFound(t *testing.T) {
	s := newTestServer(t)
	alice := s.client(t)
	s.register(t, alice, "alice").Body.Close()
	s.submit(t, alice, "Theft", "Main St")
	resp, err := alice.Get(s.URL + "/dashboard")
	require.NoError(t, err)
	id := firstReportID(t, document(t, resp))

	mallory := s.client(t)
	s.register(t, mallory, "mallory").Body.Close()

	checks := []struct{ method, path string }{
		{http.MethodGet, "/report/edit/" + id},
		{http.MethodPost, "/report/edit/" + id},
		{http.MethodPost, "/report/delete/" + id},
		{http.MethodGet, "/report/download/" + id},
		{http.MethodGet, "/report/edit/999"},
		{http.MethodGet, "/report/edit/abc"},
	}
	for _, ch := range checks {
		var resp *http.Response
		if ch.method == http.MethodGet {
			resp, err = mallory.Get(s.URL + ch.path)
		} else {
			resp = s.postMultipart(t, mallory, ch.path, map[string]string{"title": "x", "description": "x", "location": "x"})
		}
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, fmt.Sprintf("%s %s", ch.method, ch.path))
	}

	resp, err = alice.Get(s.URL + "/dashboard")
	require.NoError(t, err)
	doc := document(t, resp)
	assert.Equal(t, 1, doc.Find("li.report").Length())
	assert.Equal(t, "Theft", doc.Find(".report-title").Text())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func (s *testServer) userID(t *testing.T, email string) uint {
	t.Helper()
	u, err := s.userRepo.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.ID
}

func TestMediaIsServedToOwnerAndStaffOnly(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.users.CreateStaff(ctx, validation.RegistrationForm{
		Username: "chief", Email: "chief@example.com", Password1: "station-house", Password2: "station-house",
	})
	require.NoError(t, err)

	alice := s.client(t)
	s.register(t, alice, "alice").Body.Close()
	key := storage.PhotoKey(s.userID(t, "alice@example.com"), 1, "bike.png")
	require.NoError(t, s.store.Save(ctx, key, strings.NewReader("png bytes"), "image/png"))

	resp, err := alice.Get(s.URL + "/media/" + key)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png bytes", string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	chief := s.client(t)
	resp, err = chief.PostForm(s.URL+"/login", url.Values{"username": {"chief"}, "password": {"station-house"}})
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = chief.Get(s.URL + "/media/" + key)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "staff")

	mallory := s.client(t)
	s.register(t, mallory, "mallory").Body.Close()
	for _, path := range []string{
		"/media/" + key,
		"/media/photos/user_2/report_1/../../" + strings.TrimPrefix(key, "photos/"),
		"/media/photos/user_" + fmt.Sprint(s.userID(t, "mallory@example.com")) + "/report_1/missing.png",
		"/media/notes.txt",
	} {
		resp, err = mallory.Get(s.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	resp, err = noRedirect(s.client(t)).Get(s.URL + "/media/" + key)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

var resetLink = regexp.MustCompile(`http://crimewatch\.test(/reset/\S+)`)

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, s.client(t), "alice").Body.Close()
	c := s.client(t)

	resp, err := c.Get(s.URL + "/login")
	require.NoError(t, err)
	href, _ := document(t, resp).Find(`a[href="/password_reset"]`).Attr("href")
	assert.Equal(t, "/password_reset", href)

	resp, err = c.PostForm(s.URL+"/password_reset", url.Values{"email": {"not-an-email"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, document(t, resp).Find(".field-error").Text(), "Enter a valid email address.")

	resp, err = c.PostForm(s.URL+"/password_reset", url.Values{"email": {"nobody@example.com"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/password_reset_done", resp.Request.URL.Path)
	assert.Empty(t, s.mailer.bySubject("Password reset on Crime Report System"))

	resp, err = c.PostForm(s.URL+"/password_reset", url.Values{"email": {"Alice@Example.com"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/password_reset_done", resp.Request.URL.Path)
	mails := s.mailer.bySubject("Password reset on Crime Report System")
	require.Len(t, mails, 1)
	assert.Equal(t, []string{"alice@example.com"}, mails[0].To)
	m := resetLink.FindStringSubmatch(mails[0].Body)
	require.NotNil(t, m, mails[0].Body)
	link := m[1]

	resp, err = c.Get(s.URL + link)
	require.NoError(t, err)
	doc := document(t, resp)
	assert.Equal(t, 1, doc.Find("input#new_password1").Length())

	resp, err = c.PostForm(s.URL+link, url.Values{"new_password1": {"new password"}, "new_password2": {"other password"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, document(t, resp).Find(".field-error").Text(), "Passwords do not match.")

	resp, err = c.PostForm(s.URL+link, url.Values{"new_password1": {"new password"}, "new_password2": {"new password"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/reset_complete", resp.Request.URL.Path)

	resp, err = c.PostForm(s.URL+"/login", url.Values{"username": {"alice"}, "password": {"correct horse"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, err = c.PostForm(s.URL+"/login", url.Values{"username": {"alice"}, "password": {"new password"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)

	resp, err = c.Get(s.URL + link)
	require.NoError(t, err)
	doc = document(t, resp)
	assert.Contains(t, doc.Find(".invalid-link").Text(), "already been used")
	assert.Zero(t, doc.Find("input#new_password1").Length())

	resp, err = c.PostForm(s.URL+link, url.Values{"new_password1": {"third password"}, "new_password2": {"third password"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHEICPhotoSubmissionDownloadsWithErrorLine(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	s.register(t, c, "alice").Body.Close()

	resp := s.postMultipart(t, c, "/report", map[string]string{
		"title": "Theft", "description": "d", "location": "Main St",
	}, upload{field: "photos", name: "IMG_0001.HEIC", data: bytes.Repeat([]byte{0x42}, 1024)})
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	id := firstReportID(t, document(t, resp))

	resp, err := c.Get(s.URL + "/report/download/" + id)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "(Photo Error: unsupported image format)")
}
