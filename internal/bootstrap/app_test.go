package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/bootstrap"
	"tga-backend/internal/shared/config"
)

const officeConfig = `{"projectType":"office","totalArea":1000,"floors":3,"region":"germany",
"disciplines":[{"code":"EL","name":"Electrical"},{"code":"HY","name":"Hydraulic"},{"code":"HV","name":"HVAC"}]}`

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Port:                "0",
		Env:                 "dev",
		CORSAllowOrigin:     []string{"http://localhost:5173"},
		ObjectStoreType:     "local",
		LocalStoreDir:       t.TempDir(),
		AutomationProvider:  "simulated",
		PollInterval:        time.Millisecond,
		PollMaxAttempts:     10,
		ComplianceStandards: []string{"DIN 18015", "VDI 2052"},
		UnresolvedPolicy:    "compliant",
		MaxUploadBytes:      1 << 20,
	}
}

func buildApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := bootstrap.Build(testConfig(t))
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			t.Errorf("close app: %v", err)
		}
	})
	return app
}

func TestBuildDefaultsToMemoryAndSimulated(t *testing.T) {
	app := buildApp(t)
	if app.DB != nil {
		t.Fatalf("expected no database without DATABASE_URL")
	}
	if app.Provider.Name != "simulated" {
		t.Fatalf("expected simulated provider, got %q", app.Provider.Name)
	}
	if app.Queue != nil {
		t.Fatalf("expected no queue without a queue URL")
	}
	if app.Router == nil || app.Orchestrator == nil || app.JobsService == nil {
		t.Fatalf("expected router, orchestrator and service to be wired")
	}
}

func TestBuildRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.UnresolvedPolicy = "maybe"
	if _, err := bootstrap.Build(cfg); err == nil {
		t.Fatalf("expected error for unknown unresolved policy")
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := bootstrap.Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestProjectLifecycleEndToEnd(t *testing.T) {
	app := buildApp(t)
	router := app.Router

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("dwgFile", "office.dwg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte("AC1027 drawing")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.WriteField("projectConfig", officeConfig); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		ProjectID string `json:"projectId"`
		StatusURL string `json:"statusUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ProjectID == "" {
		t.Fatalf("expected projectId, got empty")
	}

	deadline := time.Now().Add(5 * time.Second)
	var status struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	for {
		respStatus := httptest.NewRecorder()
		router.ServeHTTP(respStatus, httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+created.ProjectID+"/status", nil))
		if respStatus.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", respStatus.Code)
		}
		if err := json.NewDecoder(respStatus.Body).Decode(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Status == "completed" || status.Status == "error" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, last status %q", status.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status.Status != "completed" || status.Progress != 100 {
		t.Fatalf("expected completed at 100, got %q at %d", status.Status, status.Progress)
	}

	respResults := httptest.NewRecorder()
	router.ServeHTTP(respResults, httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+created.ProjectID+"/results", nil))
	if respResults.Code != http.StatusOK {
		t.Fatalf("expected results 200, got %d: %s", respResults.Code, respResults.Body.String())
	}
	var results struct {
		GeneratedFiles []json.RawMessage `json:"generatedFiles"`
		Violations     []struct {
			RuleID string `json:"ruleId"`
		} `json:"violations"`
		OutputDownloadURL string `json:"outputDownloadUrl"`
	}
	if err := json.NewDecoder(respResults.Body).Decode(&results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results.GeneratedFiles) != 9 {
		t.Fatalf("expected 9 generated files, got %d", len(results.GeneratedFiles))
	}
	if len(results.Violations) != 1 || results.Violations[0].RuleID != "R-18015-01" {
		t.Fatalf("unexpected violations: %+v", results.Violations)
	}
	if results.OutputDownloadURL == "" {
		t.Fatalf("expected a download URL")
	}

	respDownload := httptest.NewRecorder()
	router.ServeHTTP(respDownload, httptest.NewRequest(http.MethodGet, results.OutputDownloadURL, nil))
	if respDownload.Code != http.StatusOK {
		t.Fatalf("expected download 200, got %d", respDownload.Code)
	}
	if got := respDownload.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("expected application/zip, got %q", got)
	}
	if !bytes.HasPrefix(respDownload.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip archive")
	}
}

func TestHealthAndStandardsRoutes(t *testing.T) {
	app := buildApp(t)

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/standards", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected standards 200, got %d", resp.Code)
	}
}
