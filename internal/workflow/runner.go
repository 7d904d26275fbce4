package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/orcaops/orcaops/internal/jobmanager"
	"github.com/orcaops/orcaops/internal/servicemgr"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

const (
	defaultMaxParallel    = 4
	jobIDMaxBytes         = 128
	pollInterval          = 500 * time.Millisecond
	extraTimeoutBudget    = 30 * time.Second
	defaultJobTimeoutSecs = 600
)

var jobIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Runner drives a WorkflowSpec's DAG to completion through the Job
// Manager and Service Manager (§4.5), level by level, short-circuiting
// downstream jobs once an upstream one fails.
type Runner struct {
	jobManager  *jobmanager.Manager
	services    *servicemgr.Manager
	maxParallel int
}

// New returns a Runner with the default max_parallel (4, §4.5).
func New(jm *jobmanager.Manager, sm *servicemgr.Manager) *Runner {
	return &Runner{jobManager: jm, services: sm, maxParallel: defaultMaxParallel}
}

// WithMaxParallel overrides the default worker pool size.
func (r *Runner) WithMaxParallel(n int) *Runner {
	if n > 0 {
		r.maxParallel = n
	}
	return r
}

// task is one scheduled unit of work: a workflow job, possibly one row
// of its matrix expansion.
type task struct {
	jobName    string
	key        string // WorkflowRecord.JobStatuses key
	jobID      string
	job        *orcaops.WorkflowJob
	matrixVars map[string]string
	matrixKey  string
}

// Run executes spec to completion, returning the final WorkflowRecord.
// cancel is checked at the start of every level (§4.5 step 1).
func (r *Runner) Run(ctx context.Context, spec *orcaops.WorkflowSpec, workflowID, triggeredBy string) *orcaops.WorkflowRecord {
	now := time.Now().UTC()
	record := &orcaops.WorkflowRecord{
		WorkflowID:  workflowID,
		SpecName:    spec.Name,
		Status:      orcaops.WorkflowStatusRunning,
		CreatedAt:   now,
		StartedAt:   &now,
		JobStatuses: make(map[string]*orcaops.WorkflowJobStatus, len(spec.Jobs)),
		Env:         spec.Env,
		TriggeredBy: triggeredBy,
	}

	levels, err := GetLevels(spec)
	if err != nil {
		record.Status = orcaops.WorkflowStatusFailed
		record.Error = err.Error()
		return finish(record)
	}

	jobTasks := make(map[string][]*task, len(spec.Jobs))
	for name, job := range spec.Jobs {
		rows := ExpandMatrix(job.Matrix)
		tasks := make([]*task, 0, len(rows))
		for _, row := range rows {
			key := taskKey(name, row, len(rows))
			jobID := deriveJobID(workflowID, name, row, len(rows))
			t := &task{jobName: name, key: key, jobID: jobID, job: job, matrixVars: row, matrixKey: MatrixKey(row)}
			tasks = append(tasks, t)
			record.JobStatuses[key] = &orcaops.WorkflowJobStatus{
				Status:    orcaops.JobStatusQueued,
				JobID:     jobID,
				MatrixKey: t.matrixKey,
			}
		}
		jobTasks[name] = tasks
	}

	var mu sync.Mutex

	for _, level := range levels {
		if ctx.Err() != nil {
			cancelQueued(record, &mu, "workflow cancelled")
			record.Status = finalStatus(record)
			return finish(record)
		}

		var runnable []*task
		for _, name := range level {
			job := spec.Jobs[name]
			should, reason := r.shouldRun(record, &mu, spec, job)
			if !should {
				mu.Lock()
				for _, t := range jobTasks[name] {
					st := record.JobStatuses[t.key]
					if st.Status == orcaops.JobStatusQueued {
						st.Status = orcaops.JobStatusCancelled
						st.Error = reason
					}
				}
				mu.Unlock()
				continue
			}
			runnable = append(runnable, jobTasks[name]...)
		}

		r.runLevel(ctx, record, &mu, spec, workflowID, runnable)

		if !r.applyShortCircuit(record, &mu, spec, level) {
			break
		}
	}

	record.Status = finalStatus(record)
	return finish(record)
}

// shouldRun evaluates §4.5 step 2's gating rule for job given the
// current state of its dependencies.
func (r *Runner) shouldRun(record *orcaops.WorkflowRecord, mu *sync.Mutex, spec *orcaops.WorkflowSpec, job *orcaops.WorkflowJob) (bool, string) {
	onComplete := job.OnComplete
	if onComplete == "" {
		onComplete = orcaops.OnCompleteSuccess
	}

	mu.Lock()
	statuses := make(map[string]string, len(spec.Jobs))
	for name := range spec.Jobs {
		statuses[name] = string(aggregateStatus(record, name))
	}
	mu.Unlock()

	switch onComplete {
	case orcaops.OnCompleteAlways:
		// fall through to if_condition below
	case orcaops.OnCompleteFailure:
		any := false
		for _, dep := range job.Requires {
			if statuses[dep] == string(orcaops.JobStatusFailed) || statuses[dep] == string(orcaops.JobStatusTimedOut) {
				any = true
				break
			}
		}
		if !any {
			return false, "condition not met"
		}
	default: // success
		for _, dep := range job.Requires {
			if statuses[dep] != string(orcaops.JobStatusSuccess) {
				return false, "condition not met"
			}
		}
	}

	if job.IfCondition != "" {
		cond, err := ParseCondition(job.IfCondition)
		if err != nil {
			return false, "condition not met"
		}
		ok := cond.Eval(ConditionContext{
			JobStatus: func(name string) string {
				if s, ok := statuses[name]; ok {
					return s
				}
				return "unknown"
			},
			Env: func(name string) string { return record.Env[name] },
		})
		if !ok {
			return false, "condition not met"
		}
	}
	return true, ""
}

// runLevel schedules every task in tasks across a bounded worker pool
// (§4.5 step 3) and blocks until all have reached a terminal state.
func (r *Runner) runLevel(ctx context.Context, record *orcaops.WorkflowRecord, mu *sync.Mutex, spec *orcaops.WorkflowSpec, workflowID string, tasks []*task) {
	if len(tasks) == 0 {
		return
	}

	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.runTask(ctx, record, mu, spec, workflowID, t)
		}()
	}
	wg.Wait()
}

// runTask executes one task end to end: optional services, JobSpec
// construction, submission, and polling (§4.5 step 4).
func (r *Runner) runTask(ctx context.Context, record *orcaops.WorkflowRecord, mu *sync.Mutex, spec *orcaops.WorkflowSpec, workflowID string, t *task) {
	setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
		st.Status = orcaops.JobStatusRunning
		started := time.Now().UTC()
		st.StartedAt = &started
	})

	var started *servicemgr.Started
	if len(t.job.Services) > 0 && r.services != nil {
		s, err := r.services.StartServices(ctx, t.job.Services, workflowID+"-"+t.jobName)
		if err != nil {
			setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
				st.Status = orcaops.JobStatusFailed
				st.Error = fmt.Sprintf("service startup failed: %v", err)
				finishNow(st)
			})
			return
		}
		started = s
	}
	if started != nil {
		defer r.services.Teardown(context.Background(), started)
	}

	jobSpec := r.buildJobSpec(spec, t, started, workflowID)

	if _, err := r.jobManager.Submit(jobSpec); err != nil {
		setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
			st.Status = orcaops.JobStatusFailed
			st.Error = fmt.Sprintf("submit failed: %v", err)
			finishNow(st)
		})
		return
	}

	effectiveTimeout := t.job.Timeout
	if effectiveTimeout <= 0 {
		effectiveTimeout = defaultJobTimeoutSecs
	}
	deadline := time.Now().Add(time.Duration(effectiveTimeout)*time.Second + extraTimeoutBudget)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rec, err := r.jobManager.Get(t.jobID)
		if err == nil && rec.Status.Terminal() {
			setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
				st.Status = rec.Status
				st.Error = rec.Error
				finishNow(st)
			})
			return
		}

		select {
		case <-ctx.Done():
			r.jobManager.Cancel(t.jobID)
			setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
				st.Status = orcaops.JobStatusCancelled
				finishNow(st)
			})
			return
		default:
		}

		if time.Now().After(deadline) {
			r.jobManager.Cancel(t.jobID)
			setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
				st.Status = orcaops.JobStatusTimedOut
				finishNow(st)
			})
			return
		}

		select {
		case <-ctx.Done():
			r.jobManager.Cancel(t.jobID)
			setStatus(record, mu, t.key, func(st *orcaops.WorkflowJobStatus) {
				st.Status = orcaops.JobStatusCancelled
				finishNow(st)
			})
			return
		case <-ticker.C:
		}
	}
}

// buildJobSpec materializes a JobSpec for t (§4.5 step 4).
func (r *Runner) buildJobSpec(spec *orcaops.WorkflowSpec, t *task, started *servicemgr.Started, workflowID string) *orcaops.JobSpec {
	env := map[string]string{}
	for k, v := range spec.Env {
		env[k] = v
	}
	for k, v := range t.job.Env {
		env[k] = v
	}
	for k, v := range t.matrixVars {
		env[k] = v
	}
	if started != nil {
		for k, v := range started.EnvVars {
			env[k] = v
		}
	}

	image := t.job.Image
	for k, v := range t.matrixVars {
		image = strings.ReplaceAll(image, "${{ matrix."+k+" }}", v)
	}

	timeout := t.job.Timeout
	if timeout < orcaops.MinTTLSeconds {
		timeout = orcaops.MinTTLSeconds
	}

	return &orcaops.JobSpec{
		JobID: t.jobID,
		Sandbox: orcaops.SandboxSpec{
			Image: image,
			Env:   env,
		},
		Commands:    t.job.Commands,
		Artifacts:   t.job.Artifacts,
		TTLSeconds:  timeout,
		TriggeredBy: "workflow",
		ParentJobID: workflowID,
		Tags:        []string{"workflow", spec.Name, t.jobName},
	}
}

// applyShortCircuit implements §4.5 step 5: an on_complete=="success"
// failure/timeout in this level cancels still-queued downstream jobs
// that are also on_complete=="success". It returns false once nothing
// further can run.
func (r *Runner) applyShortCircuit(record *orcaops.WorkflowRecord, mu *sync.Mutex, spec *orcaops.WorkflowSpec, level []string) bool {
	mu.Lock()
	failedSuccessGated := false
	failed := map[string]bool{}
	for _, name := range level {
		job := spec.Jobs[name]
		onComplete := job.OnComplete
		if onComplete == "" {
			onComplete = orcaops.OnCompleteSuccess
		}
		if onComplete != orcaops.OnCompleteSuccess {
			continue
		}
		status := aggregateStatus(record, name)
		if status == orcaops.JobStatusFailed || status == orcaops.JobStatusTimedOut {
			failedSuccessGated = true
			failed[name] = true
		}
	}
	mu.Unlock()

	if !failedSuccessGated {
		return anyQueuedRemains(record, mu)
	}

	downstream := map[string]bool{}
	for grew := true; grew; {
		grew = false
		for name, job := range spec.Jobs {
			for _, req := range job.Requires {
				if !downstream[name] && (failed[req] || downstream[req]) {
					downstream[name], grew = true, true
				}
			}
		}
	}

	mu.Lock()
	for name, job := range spec.Jobs {
		onComplete := job.OnComplete
		if onComplete == "" {
			onComplete = orcaops.OnCompleteSuccess
		}
		if onComplete != orcaops.OnCompleteSuccess || !downstream[name] {
			continue
		}
		for key, st := range record.JobStatuses {
			if belongsTo(key, name) && st.Status == orcaops.JobStatusQueued {
				st.Status = orcaops.JobStatusCancelled
				st.Error = "upstream failure"
			}
		}
	}
	mu.Unlock()

	return anyQueuedRemains(record, mu)
}

func anyQueuedRemains(record *orcaops.WorkflowRecord, mu *sync.Mutex) bool {
	mu.Lock()
	defer mu.Unlock()
	for _, st := range record.JobStatuses {
		if st.Status == orcaops.JobStatusQueued {
			return true
		}
	}
	return false
}

// cancelQueued marks every still-queued job cancelled with reason.
func cancelQueued(record *orcaops.WorkflowRecord, mu *sync.Mutex, reason string) {
	mu.Lock()
	defer mu.Unlock()
	for _, st := range record.JobStatuses {
		if st.Status == orcaops.JobStatusQueued {
			st.Status = orcaops.JobStatusCancelled
			st.Error = reason
		}
	}
}

// aggregateStatus reduces every task belonging to jobName to a single
// status for dependency gating: success only if every task succeeded,
// failed if any task failed, timed_out if any timed out (and none
// failed), cancelled if any was cancelled and none failed/timed out,
// else the (non-terminal) state continues to gate as not-yet-success.
func aggregateStatus(record *orcaops.WorkflowRecord, jobName string) orcaops.JobStatus {
	var worst orcaops.JobStatus
	seen := false
	allSuccess := true
	for key, st := range record.JobStatuses {
		if !belongsTo(key, jobName) {
			continue
		}
		seen = true
		if st.Status != orcaops.JobStatusSuccess {
			allSuccess = false
		}
		switch st.Status {
		case orcaops.JobStatusFailed:
			worst = orcaops.JobStatusFailed
		case orcaops.JobStatusTimedOut:
			if worst != orcaops.JobStatusFailed {
				worst = orcaops.JobStatusTimedOut
			}
		case orcaops.JobStatusCancelled:
			if worst == "" {
				worst = orcaops.JobStatusCancelled
			}
		}
	}
	if !seen {
		return orcaops.JobStatusQueued
	}
	if allSuccess {
		return orcaops.JobStatusSuccess
	}
	if worst != "" {
		return worst
	}
	return orcaops.JobStatusRunning
}

// belongsTo reports whether a JobStatuses key was derived from jobName
// (either the bare name, for an unmatrixed job, or "name[matrixKey]").
func belongsTo(key, jobName string) bool {
	if key == jobName {
		return true
	}
	return strings.HasPrefix(key, jobName+"[")
}

func setStatus(record *orcaops.WorkflowRecord, mu *sync.Mutex, key string, mutate func(*orcaops.WorkflowJobStatus)) {
	mu.Lock()
	defer mu.Unlock()
	mutate(record.JobStatuses[key])
}

func finishNow(st *orcaops.WorkflowJobStatus) {
	now := time.Now().UTC()
	st.FinishedAt = &now
}

// finalStatus computes the workflow's overall status by the §4.5
// priority order: all success → success; all cancelled → cancelled;
// a mix of success with failure/cancel → partial; else → failed.
func finalStatus(record *orcaops.WorkflowRecord) orcaops.WorkflowStatus {
	var anySuccess, anyFailureOrCancel, allSuccess, allCancelled bool
	allSuccess = true
	allCancelled = true
	for _, st := range record.JobStatuses {
		switch st.Status {
		case orcaops.JobStatusSuccess:
			anySuccess = true
			allCancelled = false
		case orcaops.JobStatusCancelled:
			allSuccess = false
			anyFailureOrCancel = true
		default: // failed, timed_out, or anything non-terminal left over
			allSuccess = false
			allCancelled = false
			anyFailureOrCancel = true
		}
	}
	switch {
	case allSuccess:
		return orcaops.WorkflowStatusSuccess
	case allCancelled:
		return orcaops.WorkflowStatusCancelled
	case anySuccess && anyFailureOrCancel:
		return orcaops.WorkflowStatusPartial
	default:
		return orcaops.WorkflowStatusFailed
	}
}

func finish(record *orcaops.WorkflowRecord) *orcaops.WorkflowRecord {
	now := time.Now().UTC()
	record.FinishedAt = &now
	if record.Status == orcaops.WorkflowStatusRunning {
		record.Status = finalStatus(record)
	}
	return record
}

// taskKey derives the WorkflowRecord.JobStatuses key for one matrix
// row: the bare job name when it is the only row, else
// "name[matrixKey]".
func taskKey(jobName string, row map[string]string, totalRows int) string {
	if totalRows <= 1 {
		return jobName
	}
	return jobName + "[" + MatrixKey(row) + "]"
}

// deriveJobID derives `wf-<workflow_id>-<job_name>[-<matrix_suffix>]`,
// sanitized to the job_id charset and capped at 128 bytes (§4.5 step 3).
func deriveJobID(workflowID, jobName string, row map[string]string, totalRows int) string {
	id := "wf-" + workflowID + "-" + jobName
	if totalRows > 1 {
		id += "-" + MatrixKey(row)
	}
	id = jobIDSanitizer.ReplaceAllString(id, "-")
	if len(id) > jobIDMaxBytes {
		id = id[:jobIDMaxBytes]
	}
	return strings.Trim(id, "-")
}
