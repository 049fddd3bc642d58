package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gstrecon/internal"
	"gstrecon/internal/gstr2b"
)

type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Progress is a snapshot of one extraction job. Records is only populated
// once the job is done.
type Progress struct {
	JobID   string                   `json:"job_id"`
	Status  JobStatus                `json:"status"`
	Total   int                      `json:"total"`
	Done    int                      `json:"done"`
	Records []internal.InvoiceRecord `json:"records,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// Runner executes extraction jobs in the background. Callers either poll
// with Poll or block on the channel returned by Start; both see the same
// snapshots.
type Runner struct {
	log *logrus.Logger

	mu   sync.RWMutex
	jobs map[string]Progress
}

func NewRunner(log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{log: log, jobs: make(map[string]Progress)}
}

// Start launches extraction over the given files and returns immediately.
// The channel receives the final snapshot exactly once, then closes.
func (r *Runner) Start(files []string) (string, <-chan Progress) {
	jobID := uuid.NewString()
	r.setProgress(Progress{JobID: jobID, Status: JobRunning, Total: len(files)})

	done := make(chan Progress, 1)
	go func() {
		defer close(done)

		records := make([]internal.InvoiceRecord, 0, len(files))
		for i, file := range files {
			extracted, err := FromFile(file)
			if err != nil {
				r.log.WithError(err).WithField("file", file).Warn("extraction failed for document")
				records = append(records, internal.InvoiceRecord{
					SourceID: filepath.Base(file),
					Status:   internal.StatusError,
					Flags:    []string{"document_unreadable"},
				})
			} else {
				records = append(records, extracted...)
			}
			r.setProgress(Progress{JobID: jobID, Status: JobRunning, Total: len(files), Done: i + 1})
		}

		final := Progress{JobID: jobID, Status: JobDone, Total: len(files), Done: len(files), Records: records}
		r.setProgress(final)
		done <- final
	}()

	return jobID, done
}

// Poll returns the current snapshot of a job.
func (r *Runner) Poll(jobID string) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.jobs[jobID]
	return p, ok
}

// Forget drops a finished job from the registry.
func (r *Runner) Forget(jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

func (r *Runner) setProgress(p Progress) {
	r.mu.Lock()
	r.jobs[p.JobID] = p
	r.mu.Unlock()
}

// FromFile dispatches on the file extension. Workbooks reuse the GSTR2B
// column mapper, which understands the same invoice table layout on the
// purchase register side.
func FromFile(path string) ([]internal.InvoiceRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sourceID := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		rec, err := FromPDF(sourceID, content)
		if err != nil {
			return nil, err
		}
		return []internal.InvoiceRecord{rec}, nil
	case ".html", ".htm":
		return FromHTML(sourceID, string(content))
	case ".xlsx", ".xls":
		return gstr2b.ParseReader(bytes.NewReader(content))
	case ".txt", ".text":
		return []internal.InvoiceRecord{FromText(sourceID, string(content))}, nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", path)
	}
}
