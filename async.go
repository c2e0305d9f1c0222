package mokka

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Default async dispatcher sizing.
const (
	DefaultAsyncWorkers   = 4
	DefaultAsyncQueueSize = 64
)

// Handle is the caller's view of an asynchronous request. It completes
// exactly once, with either a response or an error, and may be canceled at
// any point before completion.
type Handle struct {
	done   chan struct{}
	once   sync.Once
	resp   *http.Response
	err    error
	cancel context.CancelFunc
}

// Done returns a channel closed when the request has completed, failed or
// been canceled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Response blocks until the request completes and returns its outcome.
// It may be called any number of times; every call returns the same result.
func (h *Handle) Response() (*http.Response, error) {
	<-h.done
	return h.resp, h.err
}

// Cancel abandons the request. A request still waiting for a worker never
// runs at all; a request mid-flight is interrupted, including a pending
// retry sleep. Cancel after completion is a no-op.
func (h *Handle) Cancel() {
	h.cancel()
}

// complete publishes the outcome and releases waiters. Later calls lose.
func (h *Handle) complete(resp *http.Response, err error) {
	h.once.Do(func() {
		h.resp = resp
		h.err = err
		close(h.done)
	})
}

// asyncJob pairs a request with the handle and optional callback its
// outcome is delivered to.
type asyncJob struct {
	req      *http.Request
	handle   *Handle
	callback func(*http.Response, error)
}

// AsyncDispatcher runs whole pipeline executions on a fixed pool of worker
// goroutines. Jobs wait in a bounded queue; a full queue rejects rather
// than blocks the submitter.
type AsyncDispatcher struct {
	client *Client
	jobs   chan *asyncJob
	quit   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewAsyncDispatcher creates a dispatcher with the given worker count and
// queue capacity and starts its workers.
func NewAsyncDispatcher(client *Client, workers, queueSize int) *AsyncDispatcher {
	if workers < 1 {
		workers = DefaultAsyncWorkers
	}
	if queueSize < 1 {
		queueSize = DefaultAsyncQueueSize
	}

	d := &AsyncDispatcher{
		client: client,
		jobs:   make(chan *asyncJob, queueSize),
		quit:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues job for execution. Jobs submitted after Stop or into a full
// queue complete immediately with a dispatcher error.
func (d *AsyncDispatcher) Submit(job *asyncJob) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		job.fail(failedJobError(job.req, "dispatcher stopped"))
		return
	}

	select {
	case d.jobs <- job:
		d.mu.Unlock()
		if d.client.metrics != nil {
			d.client.metrics.RecordAsyncQueueDepth("default", len(d.jobs))
		}
	default:
		d.mu.Unlock()
		job.fail(failedJobError(job.req, "dispatcher queue full"))
	}
}

// Stop shuts the workers down and fails every job still queued with
// ErrDispatcherStopped so no handle blocks forever. Jobs already running
// finish normally.
func (d *AsyncDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.quit)
	d.wg.Wait()

	for {
		select {
		case job := <-d.jobs:
			job.fail(failedJobError(job.req, "dispatcher stopped"))
		default:
			return
		}
	}
}

// QueueDepth returns the number of jobs waiting for a worker.
func (d *AsyncDispatcher) QueueDepth() int {
	return len(d.jobs)
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()

	for {
		// Quit wins over queued work so Stop can fail the queue fast.
		select {
		case <-d.quit:
			return
		default:
		}

		select {
		case job := <-d.jobs:
			d.run(job)
		case <-d.quit:
			return
		}
	}
}

// run executes one job. A job whose context is already done never enters
// the pipeline, so a cancel-before-dispatch records nothing anywhere.
func (d *AsyncDispatcher) run(job *asyncJob) {
	if d.client.metrics != nil {
		d.client.metrics.RecordAsyncQueueDepth("default", len(d.jobs))
	}

	if err := job.req.Context().Err(); err != nil {
		job.fail(&ClientError{
			Type:      ErrorTypeCanceled,
			Message:   "request canceled before dispatch",
			Cause:     err,
			Method:    job.req.Method,
			URL:       job.req.URL.String(),
			Endpoint:  endpointFromRequest(job.req),
			Timestamp: time.Now(),
		})
		return
	}

	if d.client.logAsync() {
		d.client.logger.Debug("Async job starting", "method", job.req.Method, "url", job.req.URL.String())
	}

	resp, err := d.client.Do(job.req)
	job.handle.complete(resp, err)
	if job.callback != nil {
		job.callback(resp, err)
	}
}

// fail completes the job with err without running the pipeline.
func (j *asyncJob) fail(err error) {
	j.handle.complete(nil, err)
	if j.callback != nil {
		j.callback(nil, err)
	}
}

func failedJobError(req *http.Request, message string) *ClientError {
	clientErr := &ClientError{
		Type:      ErrorTypeDispatcher,
		Message:   message,
		Cause:     ErrDispatcherStopped,
		Timestamp: time.Now(),
	}
	if req != nil {
		clientErr.Method = req.Method
		if req.URL != nil {
			clientErr.URL = req.URL.String()
			clientErr.Endpoint = endpointFromRequest(req)
		}
	}
	return clientErr
}

// dispatcher returns the client's async dispatcher, starting it on first
// use.
func (c *Client) dispatcher() *AsyncDispatcher {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()

	if c.async == nil {
		c.async = NewAsyncDispatcher(c, c.asyncWorkers, c.asyncQueue)
	}
	return c.async
}

// DoAsync executes req on the dispatcher's worker pool and returns a handle
// the caller can wait on or cancel. The full pipeline, retry sleeps
// included, runs off the calling goroutine.
func (c *Client) DoAsync(req *http.Request) *Handle {
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	handle := &Handle{done: make(chan struct{}), cancel: cancel}
	c.dispatcher().Submit(&asyncJob{req: req, handle: handle})
	return handle
}

// DoWithCallback executes req asynchronously and invokes callback with the
// outcome on the worker goroutine. The callback always runs, on success,
// failure or cancellation. The returned handle can cancel or await the
// request like DoAsync.
func (c *Client) DoWithCallback(req *http.Request, callback func(*http.Response, error)) *Handle {
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	handle := &Handle{done: make(chan struct{}), cancel: cancel}
	c.dispatcher().Submit(&asyncJob{req: req, handle: handle, callback: callback})
	return handle
}
