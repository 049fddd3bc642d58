package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gstrecon/internal"
	"gstrecon/internal/export"
	"gstrecon/internal/extract"
	"gstrecon/internal/gstr2b"
	"gstrecon/internal/session"
)

// uploadDocuments accepts one or more invoice documents, stores them under
// the upload dir, and starts a background extraction job. When the job
// finishes a session is created from its records; the job endpoint reports
// the session id once it exists.
func (s *Server) uploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file required"})
		return
	}
	clientName := c.PostForm("client_name")
	period := c.PostForm("period")
	if clientName == "" || period == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_name and period required"})
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		dst := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(file.Filename)))
		if err := c.SaveUploadedFile(file, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		paths = append(paths, dst)

		if s.db != nil {
			if _, err := s.db.UpsertDocument(clientName, period, file.Filename, fileHash(dst), dst, "received"); err != nil {
				s.log.WithError(err).Warn("failed to record uploaded document")
			}
		}
	}

	jobID, done := s.runner.Start(paths)
	go func() {
		progress, ok := <-done
		if !ok || progress.Status != extract.JobDone {
			return
		}
		sess, err := s.sessions.Create(clientName, period, progress.Records)
		if err != nil {
			s.log.WithError(err).WithField("job", jobID).Error("failed to create session from extraction job")
			return
		}
		s.rememberJobSession(jobID, sess.ID)
		if s.db != nil {
			_ = s.db.SaveSessionState(sess.ID, sess.ClientName, sess.Period, sess.Stage, "")
			_ = s.db.SaveInvoices(sess.ID, internal.OriginExtracted, sess.Extracted)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "processing"})
}

func (s *Server) jobProgress(c *gin.Context) {
	jobID := c.Param("jobId")
	progress, ok := s.runner.Poll(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	resp := gin.H{
		"job_id": progress.JobID,
		"status": progress.Status,
		"total":  progress.Total,
		"done":   progress.Done,
	}
	if sessionID, ok := s.jobSession(jobID); ok {
		resp["session_id"] = sessionID
	}
	c.JSON(http.StatusOK, resp)
}

// forgetJob drops a finished job from the registry so long-lived servers do
// not accumulate completed-job snapshots. The session created from the job
// is unaffected.
func (s *Server) forgetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, ok := s.runner.Poll(jobID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	s.runner.Forget(jobID)
	s.dropJobSession(jobID)
	c.JSON(http.StatusOK, gin.H{"message": "job forgotten"})
}

func (s *Server) getDocument(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document store not configured"})
		return
	}
	id, err := strconv.Atoi(c.Param("documentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}
	doc, err := s.db.GetDocumentByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          doc.ID,
		"client_name": doc.ClientName,
		"period":      doc.Period,
		"filename":    doc.Filename,
		"status":      doc.Status,
		"received_at": doc.ReceivedAt,
	})
}

type createSessionRequest struct {
	ClientName string                   `json:"client_name" binding:"required"`
	Period     string                   `json:"period" binding:"required"`
	Invoices   []internal.InvoiceRecord `json:"invoices" binding:"required"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sess, err := s.sessions.Create(req.ClientName, req.Period, req.Invoices)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if s.db != nil {
		_ = s.db.SaveSessionState(sess.ID, sess.ClientName, sess.Period, sess.Stage, "")
		_ = s.db.SaveInvoices(sess.ID, internal.OriginExtracted, sess.Extracted)
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.List()})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(id); err != nil {
		s.renderError(c, err)
		return
	}
	if s.db != nil {
		_ = s.db.DeleteSessionState(id)
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

type editInvoicesRequest struct {
	Invoices []internal.InvoiceRecord `json:"invoices" binding:"required"`
}

func (s *Server) editInvoices(c *gin.Context) {
	var req editInvoicesRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sess, err := s.sessions.EditExtracted(c.Param("id"), req.Invoices)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if s.db != nil {
		_ = s.db.SaveInvoices(sess.ID, internal.OriginExtracted, sess.Extracted)
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) acceptExtracted(c *gin.Context) {
	sess, err := s.sessions.AcceptExtracted(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if s.db != nil {
		_ = s.db.SaveSessionState(sess.ID, sess.ClientName, sess.Period, sess.Stage, sess.GSTR2BSource)
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) uploadGSTR2B(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	records, err := gstr2b.ParseReader(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.sessions.IngestGSTR2B(c.Param("id"), records, internal.GSTR2BManualUpload)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.persistGSTR2B(sess)
	c.JSON(http.StatusOK, sess)
}

type fetchGSTR2BRequest struct {
	GSTIN  string `json:"gstin" binding:"required"`
	Period string `json:"period" binding:"required"`
}

func (s *Server) fetchGSTR2B(c *gin.Context) {
	var req fetchGSTR2BRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	records, err := s.gst.FetchB2B(c.Request.Context(), req.GSTIN, req.Period)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.sessions.IngestGSTR2B(c.Param("id"), records, internal.GSTR2BGovtAPI)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.persistGSTR2B(sess)
	c.JSON(http.StatusOK, sess)
}

func (s *Server) reconcile(c *gin.Context) {
	sess, err := s.sessions.RunReconciliation(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if s.db != nil && sess.Report != nil {
		_ = s.db.SaveSessionState(sess.ID, sess.ClientName, sess.Period, sess.Stage, sess.GSTR2BSource)
		_ = s.db.SaveReport(sess.ID, *sess.Report)
		_ = s.db.InsertRun(uuid.NewString(), sess.ID, map[string]int{
			"matched":    sess.Report.Summary.SuccessfullyMatched,
			"discrepant": sess.Report.Summary.DiscrepanciesFound,
			"missing":    sess.Report.Summary.MissingFromGSTR2B,
			"extra":      sess.Report.Summary.ExtraInGSTR2B,
		})
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "report": sess.Report})
}

func (s *Server) getReport(c *gin.Context) {
	card, err := s.sessions.GetReport(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) downloadReport(c *gin.Context) {
	id := c.Param("id")
	card, err := s.sessions.GetReport(id)
	if err != nil {
		s.renderError(c, err)
		return
	}

	outputPath := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("reconciliation_%s.xlsx", id))
	if err := export.ReportToXLSX(card, outputPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(outputPath, filepath.Base(outputPath))
}

func (s *Server) persistGSTR2B(sess session.Session) {
	if s.db == nil {
		return
	}
	_ = s.db.SaveSessionState(sess.ID, sess.ClientName, sess.Period, sess.Stage, sess.GSTR2BSource)
	_ = s.db.SaveInvoices(sess.ID, internal.OriginGSTR2B, sess.GSTR2B)
}

func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNoReportAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrSessionBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrInvalidStageTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrEmptyCollection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func fileHash(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
