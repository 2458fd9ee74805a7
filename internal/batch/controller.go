package batch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"battery_project/internal/domain"
	"battery_project/internal/pipeline"
	"battery_project/pkg/logger"

	"github.com/google/uuid"
)

// DuplicatePolicy decides what happens to a job whose filename was already
// processed or queued: park it for an explicit decision, or skip it outright.
type DuplicatePolicy string

const (
	DuplicateHold DuplicatePolicy = "hold"
	DuplicateSkip DuplicatePolicy = "skip"
)

// ErrBatchRunning is returned when a batch is dispatched while another one
// is still in flight.
var ErrBatchRunning = errors.New("a batch is already running")

// ExtractFunc is the external OCR/LLM call. It is the only suspension point
// in the pipeline; everything downstream is synchronous.
type ExtractFunc func(ctx context.Context, job domain.ImageJob) (domain.ExtractionResult, error)

// Session is the part of the session store the controller needs: duplicate
// lookups and the merge path for successful extractions.
type Session interface {
	KnownFile(fileName string) bool
	MarkProcessed(fileName string)
	Ingest(batteryID string, points ...domain.DataPoint)
}

// Controller owns the ImageJob collection and drives batches of extraction
// calls through an AIMD-adjusted worker gate. Every job mutation goes
// through the controller's mutex, so status updates from concurrently
// settling extractions never interleave destructively. Completion order is
// first-settled, first-processed; chronological ordering is restored later
// by the series merger, which re-sorts unconditionally.
type Controller struct {
	session Session
	extract ExtractFunc
	policy  *AIMDPolicy
	gate    *Gate
	dup     DuplicatePolicy

	mu      sync.Mutex
	jobs    map[string]*domain.ImageJob
	order   []string
	running bool

	batchTotal   int
	batchSettled int
	progress     float64
}

// NewController wires a controller to a session store and an extraction
// call. Concurrency bounds follow the AIMD policy.
func NewController(session Session, extract ExtractFunc, policy *AIMDPolicy, dup DuplicatePolicy) *Controller {
	if policy == nil {
		policy = NewAIMDPolicy(DefaultStartConcurrency, DefaultMinConcurrency, DefaultMaxConcurrency)
	}
	if dup != DuplicateSkip {
		dup = DuplicateHold
	}
	return &Controller{
		session: session,
		extract: extract,
		policy:  policy,
		gate:    NewGate(policy.Limit()),
		dup:     dup,
		jobs:    make(map[string]*domain.ImageJob),
	}
}

// Enqueue registers one image as a job. Jobs whose filename matches a file
// already processed this session, or another job already queued, are flagged
// duplicate; under the skip policy that is terminal, under hold they wait
// for an explicit decision. Duplicate detection is exact filename match
// only, no content hashing.
func (c *Controller) Enqueue(fileName, mime string, payload []byte) domain.ImageJob {
	c.mu.Lock()
	defer c.mu.Unlock()

	job := &domain.ImageJob{
		ID:        c.jobID(fileName, len(payload)),
		FileName:  fileName,
		MIME:      mime,
		Payload:   payload,
		Status:    domain.StatusQueued,
		CreatedAt: time.Now(),
	}

	if c.isDuplicateLocked(fileName) {
		job.Status = domain.StatusDuplicate
		if c.dup == DuplicateSkip {
			job.Error = "duplicate filename, skipped"
		}
	}

	c.jobs[job.ID] = job
	c.order = append(c.order, job.ID)
	return *job
}

func (c *Controller) jobID(fileName string, size int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", fileName, size)
	id := fmt.Sprintf("%016x", h.Sum64())
	if _, taken := c.jobs[id]; taken {
		id = id + "-" + uuid.NewString()[:8]
	}
	return id
}

func (c *Controller) isDuplicateLocked(fileName string) bool {
	if c.session != nil && c.session.KnownFile(fileName) {
		return true
	}
	for _, id := range c.order {
		j := c.jobs[id]
		if j.FileName == fileName && (j.Status == domain.StatusQueued || j.Status == domain.StatusProcessing || j.Status == domain.StatusSuccess) {
			return true
		}
	}
	return false
}

// RunBatch processes every currently queued job and blocks until all of them
// settle. Job start order follows queue order; each job acquires a gate slot
// whose capacity tracks the AIMD limit. Per-job failures are isolated into
// job state and never abort the batch; only dispatching while another batch
// runs fails the call as a whole. There is no mid-batch cancellation beyond
// the caller's context covering the individual extraction calls.
func (c *Controller) RunBatch(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrBatchRunning
	}
	var queued []string
	for _, id := range c.order {
		if c.jobs[id].Status == domain.StatusQueued {
			queued = append(queued, id)
		}
	}
	c.running = true
	c.batchTotal = len(queued)
	c.batchSettled = 0
	c.progress = 0
	c.mu.Unlock()

	logger.Infof("Batch started: %d jobs, concurrency %d", len(queued), c.policy.Limit())

	var wg sync.WaitGroup
	for _, id := range queued {
		c.gate.Acquire()
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			defer c.gate.Release()
			c.runJob(ctx, jobID)
		}(id)
	}
	wg.Wait()

	c.mu.Lock()
	c.running = false
	done := c.batchSettled
	c.mu.Unlock()

	logger.Infof("Batch finished: %d/%d settled, concurrency %d", done, len(queued), c.policy.Limit())
	return nil
}

func (c *Controller) runJob(ctx context.Context, jobID string) {
	job, ok := c.transition(jobID, domain.StatusQueued, domain.StatusProcessing, "")
	if !ok {
		return
	}

	res, err := c.extract(ctx, job)
	if err == nil && !res.Success {
		err = errors.New(resError(res))
	}
	if err != nil {
		c.settleError(jobID, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	point, err := pipeline.BuildDataPoint(res.ExtractedData, res.Timestamp)
	if err != nil {
		// Parse failure is its own error class, attributable to the file and
		// battery; nothing is merged, same as an extraction failure.
		c.settleError(jobID, fmt.Sprintf("battery %s (%s): %v", res.BatteryID, job.FileName, err))
		return
	}

	if c.session != nil {
		// Each completion re-reads the latest series inside the store lock,
		// so two results for the same battery settling close together never
		// lose an update.
		c.session.Ingest(res.BatteryID, point)
		c.session.MarkProcessed(job.FileName)
	}
	c.settleSuccess(jobID, res.BatteryID, verificationFlags(res.ExtractedData))
}

func resError(res domain.ExtractionResult) string {
	if res.Error != "" {
		return res.Error
	}
	return "extraction reported failure without a message"
}

// verificationFlags reports, for each core metric, whether the raw
// extraction contained a recognizable key for it.
func verificationFlags(extracted string) map[string]bool {
	keys := pipeline.ExtractedKeys(extracted)
	flags := make(map[string]bool, len(pipeline.CoreMetrics))
	for _, m := range pipeline.CoreMetrics {
		flags[m] = keys[m]
	}
	return flags
}

// transition flips a job from one status to another atomically. Returns a
// copy of the job and false when the job is gone or not in the expected
// state (e.g. re-queued away while waiting on the gate).
func (c *Controller) transition(jobID string, from, to domain.JobStatus, msg string) (domain.ImageJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok || job.Status != from {
		return domain.ImageJob{}, false
	}
	job.Status = to
	job.Error = msg
	return *job, true
}

func (c *Controller) settleError(jobID, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job, ok := c.jobs[jobID]; ok {
		job.Status = domain.StatusError
		job.Error = msg
		logger.Errorf("Job %s failed: %s", jobID, msg)
	}
	c.settleLocked()
	c.gate.Resize(c.policy.OnFailure())
}

func (c *Controller) settleSuccess(jobID, batteryID string, verified map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job, ok := c.jobs[jobID]; ok {
		job.Status = domain.StatusSuccess
		job.Error = ""
		job.BatteryID = batteryID
		job.Verified = verified
	}
	c.settleLocked()
	c.gate.Resize(c.policy.OnSuccess())
}

// settleLocked advances batch progress. Progress is monotonically
// non-decreasing and reaches exactly 100 once every job in the batch has
// settled, regardless of concurrency level.
func (c *Controller) settleLocked() {
	c.batchSettled++
	if c.batchTotal > 0 {
		c.progress = float64(c.batchSettled) / float64(c.batchTotal) * 100
	} else {
		c.progress = 100
	}
}

// Requeue moves an error job back to queued for the next batch.
func (c *Controller) Requeue(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("unknown job %s", jobID)
	}
	if job.Status != domain.StatusError {
		return fmt.Errorf("job %s is %s, only error jobs can be re-queued", jobID, job.Status)
	}
	job.Status = domain.StatusQueued
	job.Error = ""
	return nil
}

// ResolveDuplicate applies the user's decision for a held duplicate:
// "process" re-queues it anyway, "skip" leaves it terminal.
func (c *Controller) ResolveDuplicate(jobID, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("unknown job %s", jobID)
	}
	if job.Status != domain.StatusDuplicate {
		return fmt.Errorf("job %s is %s, not a duplicate", jobID, job.Status)
	}
	switch action {
	case "process":
		job.Status = domain.StatusQueued
		job.Error = ""
	case "skip":
		job.Error = "duplicate filename, skipped"
	default:
		return fmt.Errorf("invalid action %q (use process or skip)", action)
	}
	return nil
}

// Jobs returns a snapshot of all jobs in enqueue order, payloads omitted.
func (c *Controller) Jobs() []domain.ImageJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ImageJob, 0, len(c.order))
	for _, id := range c.order {
		j := *c.jobs[id]
		j.Payload = nil
		out = append(out, j)
	}
	return out
}

// Job returns one job by id.
func (c *Controller) Job(jobID string) (domain.ImageJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return domain.ImageJob{}, false
	}
	j := *job
	j.Payload = nil
	return j, true
}

// Progress returns the current batch completion percentage.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Concurrency returns the current AIMD limit.
func (c *Controller) Concurrency() int {
	return c.policy.Limit()
}

// StatusCounts tallies jobs per status.
func (c *Controller) StatusCounts() map[domain.JobStatus]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[domain.JobStatus]int)
	for _, job := range c.jobs {
		counts[job.Status]++
	}
	return counts
}

// Reset drops every job. Used by the session clear path only.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = make(map[string]*domain.ImageJob)
	c.order = nil
	c.batchTotal = 0
	c.batchSettled = 0
	c.progress = 0
}
