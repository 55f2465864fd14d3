package standards

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/standards/condition"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	catalog := MustLoad()
	h := NewHandler(catalog, NewChecker(catalog, condition.PolicyCompliant), []string{"DIN 18015", "VDI 2052"})
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestGetStandardWithSlashInID(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/standards/VOB/C", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body standardView
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "VOB/C" || len(body.Rules) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestGetUnknownStandard(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/standards/ISO%209001", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCheckUsesDefaultStandards(t *testing.T) {
	r := newTestRouter()
	payload := `{"project":{"projectType":"office","totalArea":1000,"floors":3,"region":"germany",
		"disciplines":[{"code":"EL","name":"Elétrico"}]}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/standards/check", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Violations []Violation       `json:"violations"`
		Report     []StandardResult `json:"complianceReport"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Violations) != 1 || body.Violations[0].RuleID != "R-18015-01" {
		t.Fatalf("unexpected violations %+v", body.Violations)
	}
	if len(body.Report) != 2 || body.Report[0].Compliant || !body.Report[1].Compliant {
		t.Fatalf("unexpected report %+v", body.Report)
	}
}

func TestCheckRejectsInvalidProject(t *testing.T) {
	r := newTestRouter()
	payload := `{"project":{"projectType":"castle","totalArea":0,"floors":1,"region":"germany"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/standards/check", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "projectType") {
		t.Fatalf("expected field issue in body: %s", w.Body.String())
	}
}

func TestClassifyEndpoint(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/standards/classify", strings.NewReader(`{"description":"quadro eletrica"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"categories":["Elétrico"]`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
