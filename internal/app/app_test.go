package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"autoinspect/internal/archive"
	"autoinspect/internal/config"
	"autoinspect/internal/inspection"
	"autoinspect/internal/testutil"
)

// fakePortalServer serves one stored report and records submissions.
type fakePortalServer struct {
	mu         sync.Mutex
	report     string
	submitCode int
	bodies     []*inspection.Body
}

func (s *fakePortalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/inspector/inspection-report/41":
		io.WriteString(w, s.report)
	case r.Method == http.MethodPost && r.URL.Path == "/api/inspector/inspection-report/41":
		if s.submitCode != 0 {
			w.WriteHeader(s.submitCode)
			io.WriteString(w, `{"message": "rejected"}`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		s.bodies = append(s.bodies, &inspection.Body{Data: data, ContentType: r.Header.Get("Content-Type")})
	default:
		http.NotFound(w, r)
	}
}

func newTestConfig(t *testing.T, portalURL string) *config.Config {
	t.Helper()
	cfg := config.NewConfig("inspector-1", t.TempDir())
	cfg.Portal.BaseURL = portalURL
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Archive = config.ArchiveConfig{Type: "filesystem", Name: "test", FSRoot: filepath.Join(cfg.BaseDir, "archive")}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *InspectApp {
	t.Helper()
	a, err := NewInspectApp(context.Background(), cfg, operation)
	if err != nil {
		t.Fatalf("NewInspectApp() error = %v", err)
	}
	return a
}

func writePhoto(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("\xff\xd8\xff\xe0"+name), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspectApp_Submit(t *testing.T) {
	srv := &fakePortalServer{report: `{"id": 41, "frame": "{\"radio\":{\"frame_demage\":1}}", "request_id": {"has_red": true, "has_green": false}}`}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	cfg := newTestConfig(t, ts.URL)
	photos := t.TempDir()
	writePhoto(t, photos, "a.jpg")
	writePhoto(t, photos, "b.jpg")
	single := writePhoto(t, t.TempDir(), "seat.jpg")

	a := newTestApp(t, cfg, "Submit")
	receipt, err := a.Submit(context.Background(), SubmitOptions{
		InspectionID: "41",
		Edits:        []inspection.Edit{{Field: inspection.FieldDamageNotes, Value: "rear bumper scuff"}},
		Attachments: map[string][]string{
			"bodyDamageImage": {photos},
			"seatDamageImage": {single},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	opID := a.op.ID
	if opID == 0 {
		t.Fatal("Submit() did not persist the operation")
	}
	if len(receipt.Uploads) != 3 {
		t.Errorf("receipt uploads = %+v, want 3", receipt.Uploads)
	}

	subs, err := a.Submissions("41")
	if err != nil || len(subs) != 1 || subs[0].OperationID != opID {
		t.Fatalf("Submissions() = %+v, %v", subs, err)
	}
	if !subs[0].Encrypted {
		t.Error("receipt was not archived encrypted")
	}

	asked := false
	got, err := a.Receipt(receipt.ID, func() (string, error) {
		asked = true
		return "secret", nil
	})
	if err != nil {
		t.Fatalf("Receipt() error = %v", err)
	}
	if !asked {
		t.Error("passphrase was not requested for an encrypted receipt")
	}
	if got.DamageNotes != "rear bumper scuff" || got.ColorTag != inspection.ColorRed {
		t.Errorf("receipt = %+v", got)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(srv.bodies) != 1 {
		t.Fatalf("portal got %d submissions, want 1", len(srv.bodies))
	}
	mp, err := testutil.DecodeMultipart(srv.bodies[0])
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range mp.Files {
		names = append(names, f.Name+"/"+f.Filename)
	}
	want := "exterior_body_demage/a.jpg exterior_body_demage/b.jpg interior_seat_demage/seat.jpg"
	if strings.Join(names, " ") != want {
		t.Errorf("file parts = %v, want %s", names, want)
	}
	if !strings.Contains(mp.Fields["frame"], `"frame_demage":1`) {
		t.Errorf("stored frame data lost: %s", mp.Fields["frame"])
	}

	// Close archived a DB snapshot versioned by the operation.
	arch, err := archive.NewFileSystemArchive("check", cfg.Archive.FSRoot)
	if err != nil {
		t.Fatal(err)
	}
	v, err := arch.GetMetadataVersion(cfg.InspectorID, "db")
	if err != nil || v != opID {
		t.Errorf("archived db version = %d, %v, want %d", v, err, opID)
	}
	var snapshot bytes.Buffer
	if err := arch.GetMetadata(cfg.InspectorID, "db", &snapshot); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(snapshot.Bytes(), []byte("SQLite format 3")) {
		t.Error("archived snapshot is not a SQLite database")
	}

	logData, err := os.ReadFile(filepath.Join(cfg.LogDir, "inspect.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logData), "inspection report submitted") {
		t.Errorf("log file missing submission entry:\n%s", logData)
	}
}

func TestInspectApp_SubmitFailureMarksOperation(t *testing.T) {
	srv := &fakePortalServer{report: `{"id": 41}`, submitCode: http.StatusBadGateway}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	a := newTestApp(t, newTestConfig(t, ts.URL), "Submit")
	defer a.Close()

	_, err := a.Submit(context.Background(), SubmitOptions{InspectionID: "41"})
	if err == nil {
		t.Fatal("Submit() expected error")
	}
	if a.op.Status != "error" {
		t.Errorf("operation status = %q, want error", a.op.Status)
	}
	ops, err := a.GetHistory(10)
	if err != nil || len(ops) != 1 || ops[0].Operation != "Submit" || ops[0].Parameters != "41" {
		t.Errorf("GetHistory() = %+v, %v", ops, err)
	}
}

func TestInspectApp_SubmitRejectsBadAttachment(t *testing.T) {
	ts := httptest.NewServer(&fakePortalServer{report: `{"id": 41}`})
	defer ts.Close()

	cfg := newTestConfig(t, ts.URL)
	cfg.Attachments.MaxSize = 4
	big := writePhoto(t, t.TempDir(), "big.jpg")

	a := newTestApp(t, cfg, "Submit")
	defer a.Close()

	_, err := a.Submit(context.Background(), SubmitOptions{
		InspectionID: "41",
		Attachments:  map[string][]string{"bodyDamageImage": {big}},
	})
	if err == nil || !strings.Contains(err.Error(), "loading attachments") {
		t.Errorf("Submit() error = %v, want attachment load failure", err)
	}
}

func TestInspectApp_ReadOnlyCommandsDoNotPersist(t *testing.T) {
	ts := httptest.NewServer(&fakePortalServer{report: `{"id": 41, "wheels": "{\"radio\":{\"spare_tire\":1}}"}`})
	defer ts.Close()

	cfg := newTestConfig(t, ts.URL)
	a := newTestApp(t, cfg, "Show")

	form, warnings, err := a.Show(context.Background(), "41")
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if v, _ := form.Get("spareTire"); v.String() != "1" || len(warnings) != 0 {
		t.Errorf("spareTire = %q, warnings = %v", v, warnings)
	}
	if a.op.Persisted() {
		t.Error("Show persisted an operation")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	arch, _ := archive.NewFileSystemArchive("check", cfg.Archive.FSRoot)
	if v, _ := arch.GetMetadataVersion(cfg.InspectorID, "db"); v != 0 {
		t.Errorf("read-only run archived a snapshot (version %d)", v)
	}
}

func TestNewInspectApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "invalid config", mutate: func(c *config.Config) { c.InspectorID = "" }},
		{name: "unknown database", mutate: func(c *config.Config) { c.Database.Type = "postgres" }},
		{name: "unknown archive", mutate: func(c *config.Config) { c.Archive.Type = "tape" }},
		{name: "unknown encryption", mutate: func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{name: "unknown metrics", mutate: func(c *config.Config) { c.Metrics.Type = "graphite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, "http://127.0.0.1:1")
			tt.mutate(cfg)
			if _, err := NewInspectApp(context.Background(), cfg, "Test"); err == nil {
				t.Error("NewInspectApp() expected error")
			}
		})
	}
}

func TestNewInspectApp_LocalBehindArchive(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")

	arch, err := archive.NewFileSystemArchive("seed", cfg.Archive.FSRoot)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("snapshot")
	if err := arch.PutMetadata(cfg.InspectorID, "db", bytes.NewReader(data), int64(len(data)), 5); err != nil {
		t.Fatal(err)
	}

	_, err = NewInspectApp(context.Background(), cfg, "Submit")
	if err == nil || !strings.Contains(err.Error(), "behind") {
		t.Errorf("NewInspectApp() error = %v, want local-behind error", err)
	}
}

func TestInspectApp_CheckArchive(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	a := newTestApp(t, cfg, "ArchiveCheck")
	defer a.Close()
	if err := a.CheckArchive(); err != nil {
		t.Errorf("CheckArchive() error = %v", err)
	}

	cfg2 := newTestConfig(t, "http://127.0.0.1:1")
	cfg2.Archive = config.ArchiveConfig{Type: "none"}
	b := newTestApp(t, cfg2, "ArchiveCheck")
	defer b.Close()
	if err := b.CheckArchive(); err == nil {
		t.Error("CheckArchive() without archive expected error")
	}
}

func TestInspectApp_ReceiptPassphraseError(t *testing.T) {
	ts := httptest.NewServer(&fakePortalServer{report: `{"id": 41}`})
	defer ts.Close()

	a := newTestApp(t, newTestConfig(t, ts.URL), "Submit")
	defer a.Close()

	receipt, err := a.Submit(context.Background(), SubmitOptions{InspectionID: "41", Fresh: true})
	if err != nil {
		t.Fatal(err)
	}
	prompt := errors.New("no terminal")
	_, err = a.Receipt(receipt.ID, func() (string, error) { return "", prompt })
	if !errors.Is(err, prompt) {
		t.Errorf("Receipt() error = %v, want passphrase error", err)
	}
}
