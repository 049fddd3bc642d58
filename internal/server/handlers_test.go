package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"gstrecon/internal"
	"gstrecon/internal/config"
	"gstrecon/internal/recon"
	"gstrecon/internal/session"
)

func testServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := config.Config{
		OutputDir:   t.TempDir(),
		UploadDir:   t.TempDir(),
		CORSOrigins: []string{"http://localhost:5173"},
	}
	srv := New(cfg, log, session.NewService(recon.DefaultConfig(), log), nil)
	return srv, srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/sessions", gin.H{
		"client_name": "Acme Traders",
		"period":      "2025-04",
		"invoices": []gin.H{
			{
				"source_id":      "scan-1",
				"supplier_gstin": "27AAAAA0000A1Z5",
				"invoice_number": "INV-001",
				"raw_date":       "15/04/2025",
				"taxable_value":  "1000",
				"cgst":           "90",
				"sgst":           "90",
				"igst":           "0",
				"total_amount":   "1180",
				"status":         "ok",
			},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: status=%d body=%s", w.Code, w.Body.String())
	}

	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	return sess.ID
}

func gstr2bWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"GSTIN of supplier", "Invoice number", "Invoice Date", "Taxable Value", "CGST", "SGST", "IGST", "Invoice Value"},
		{"27AAAAA0000A1Z5", "INV-001", "15/04/2025", 1000, 90, 90, 0, 1180},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func uploadGSTR2B(t *testing.T, router *gin.Engine, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "gstr2b.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(gstr2bWorkbook(t)); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/sessions/%s/gstr2b/upload", sessionID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, router := testServer(t)
	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSessionWorkflowOverHTTP(t *testing.T) {
	_, router := testServer(t)
	id := createTestSession(t, router)

	if w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/accept", nil); w.Code != http.StatusOK {
		t.Fatalf("accept: status=%d body=%s", w.Code, w.Body.String())
	}

	if w := uploadGSTR2B(t, router, id); w.Code != http.StatusOK {
		t.Fatalf("gstr2b upload: status=%d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/reconcile", nil); w.Code != http.StatusOK {
		t.Fatalf("reconcile: status=%d body=%s", w.Code, w.Body.String())
	}

	w := doJSON(t, router, http.MethodGet, "/api/sessions/"+id+"/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: status=%d body=%s", w.Code, w.Body.String())
	}
	var card internal.ReportCard
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatal(err)
	}
	if card.Summary.ComplianceStatus != internal.Compliant {
		t.Fatalf("compliance: %s", card.Summary.ComplianceStatus)
	}
}

func TestReportBeforeReconcileIs404(t *testing.T) {
	_, router := testServer(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/sessions/"+id+"/report", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestEditAfterReconcileIsConflict(t *testing.T) {
	_, router := testServer(t)
	id := createTestSession(t, router)

	doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/accept", nil)
	uploadGSTR2B(t, router, id)
	doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/reconcile", nil)

	w := doJSON(t, router, http.MethodPut, "/api/sessions/"+id+"/invoices", gin.H{
		"invoices": []gin.H{{"supplier_gstin": "27AAAAA0000A1Z5", "invoice_number": "INV-002"}},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestForgetJobRemovesIt(t *testing.T) {
	srv, router := testServer(t)

	jobID, done := srv.runner.Start(nil)
	<-done

	if w := doJSON(t, router, http.MethodGet, "/api/jobs/"+jobID, nil); w.Code != http.StatusOK {
		t.Fatalf("poll: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/jobs/"+jobID, nil); w.Code != http.StatusOK {
		t.Fatalf("forget: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodGet, "/api/jobs/"+jobID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("poll after forget: status=%d", w.Code)
	}
}

func TestForgetUnknownJobIs404(t *testing.T) {
	_, router := testServer(t)
	if w := doJSON(t, router, http.MethodDelete, "/api/jobs/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDocumentLookupWithoutStoreIs503(t *testing.T) {
	_, router := testServer(t)
	if w := doJSON(t, router, http.MethodGet, "/api/documents/1", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	_, router := testServer(t)
	w := doJSON(t, router, http.MethodGet, "/api/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
