package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GenerationRequest is a follow-up document generation queued by a
// function-call handler, executed after the current turn completes.
type GenerationRequest struct {
	DocType      DocType
	TemplateID   string
	Instructions string
}

// GenerationJob is the transient, cancellable unit of work streaming content
// for one assistant turn. It owns the only buffers for not-yet-committed
// document content; nothing it accumulates reaches the store before
// finalize.
type GenerationJob struct {
	ID             string
	ConversationID string
	MessageID      string

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	buffers     map[DocType]*strings.Builder
	templates   map[DocType]string
	followUps   []GenerationRequest
	finalized   bool
	callHonored bool
}

func newGenerationJob(parent context.Context, conversationID, messageID string) *GenerationJob {
	ctx, cancel := context.WithCancel(parent)
	return &GenerationJob{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		MessageID:      messageID,
		ctx:            ctx,
		cancel:         cancel,
		buffers:        make(map[DocType]*strings.Builder),
		templates:      make(map[DocType]string),
	}
}

// Context returns the job's cancellation context.
func (j *GenerationJob) Context() context.Context {
	return j.ctx
}

// Cancel requests cooperative cancellation. It never unwinds I/O already in
// flight; it only stops further chunk application and downgrades finalize to
// a discard.
func (j *GenerationJob) Cancel() {
	j.cancel()
}

// Cancelled reports whether the job has been cancelled.
func (j *GenerationJob) Cancelled() bool {
	select {
	case <-j.ctx.Done():
		return true
	default:
		return false
	}
}

// AppendFragment appends a document fragment to the job's buffer for the
// given type. Fragments arriving after finalize has begun are discarded.
func (j *GenerationJob) AppendFragment(docType DocType, fragment string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finalized {
		return
	}
	buf, ok := j.buffers[docType]
	if !ok {
		buf = &strings.Builder{}
		j.buffers[docType] = buf
	}
	buf.WriteString(fragment)
}

// BufferedLen returns the accumulated fragment length for one type.
func (j *GenerationJob) BufferedLen(docType DocType) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	if buf, ok := j.buffers[docType]; ok {
		return buf.Len()
	}
	return 0
}

// BeginFinalize marks the finalize barrier. It returns false if finalize has
// already begun, making finalize idempotent.
func (j *GenerationJob) BeginFinalize() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finalized {
		return false
	}
	j.finalized = true
	return true
}

// TakeBuffers drains the accumulated buffers. Call only after BeginFinalize.
func (j *GenerationJob) TakeBuffers() map[DocType]string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[DocType]string, len(j.buffers))
	for t, buf := range j.buffers {
		out[t] = buf.String()
	}
	j.buffers = make(map[DocType]*strings.Builder)
	return out
}

// SetTemplate records which prompt template produced the buffered content
// for a type, so the committed version carries it.
func (j *GenerationJob) SetTemplate(docType DocType, templateID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.templates[docType] = templateID
}

func (j *GenerationJob) templateFor(docType DocType) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.templates[docType]
}

// HonorCall marks the turn's single function-call slot as used. It returns
// false if a call was already honored this turn.
func (j *GenerationJob) HonorCall() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.callHonored {
		return false
	}
	j.callHonored = true
	return true
}

// CallHonored reports whether a function call has been honored this turn.
func (j *GenerationJob) CallHonored() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.callHonored
}

// QueueFollowUp records a generation to run after this turn completes.
func (j *GenerationJob) QueueFollowUp(req GenerationRequest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.followUps = append(j.followUps, req)
}

// FollowUps returns the queued follow-up generations.
func (j *GenerationJob) FollowUps() []GenerationRequest {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]GenerationRequest(nil), j.followUps...)
}
