package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/medvolt/scanblur/internal/client/api"
	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/client/storage"
	"github.com/medvolt/scanblur/internal/logging"
)

// Backend is the slice of the REST client the session needs.
type Backend interface {
	RequestUploadTarget(ctx context.Context, fileNameHint string) (api.UploadTarget, error)
	InvokeBlurProcess(ctx context.Context, originalKey string) error
	RequestDownloadURL(ctx context.Context, key string) (string, error)
}

// Transfer performs the direct presigned transfers.
type Transfer interface {
	PutBytes(ctx context.Context, putURL string, data []byte, contentType string) error
	FetchTo(ctx context.Context, getURL string, w io.Writer) error
}

// Emitter sends client-originated push events; the channel buffers while
// disconnected, so an emission never fails for connectivity reasons.
type Emitter interface {
	Emit(event string, payload any) error
}

// inputs to the event loop

type input interface{ attemptOf() int }

// anyAttempt marks inputs not bound to a specific attempt.
const anyAttempt = -1

type inStart struct {
	name string
	mime string
	data []byte
}

type inTokenResult struct {
	attempt int
	err     error
}

type inTargetResult struct {
	attempt int
	target  api.UploadTarget
	err     error
}

type inTransferResult struct {
	attempt int
	err     error
}

type inBlurred struct {
	originalKey string
	blurredKey  string
}

type inProcessingError struct {
	message string
}

type inURLResult struct {
	attempt int
	url     string
	err     error
}

type inStallTick struct {
	attempt int
}

func (inStart) attemptOf() int            { return anyAttempt }
func (i inTokenResult) attemptOf() int    { return i.attempt }
func (i inTargetResult) attemptOf() int   { return i.attempt }
func (i inTransferResult) attemptOf() int { return i.attempt }
func (inBlurred) attemptOf() int          { return anyAttempt }
func (inProcessingError) attemptOf() int  { return anyAttempt }
func (i inURLResult) attemptOf() int      { return i.attempt }
func (i inStallTick) attemptOf() int      { return i.attempt }

// Manager runs the upload state machine. One Manager serves the whole
// process; each Upload call starts a fresh attempt that logically replaces
// the previous session without cancelling its in-flight network work. Stale
// completions are matched against the current attempt and dropped.
type Manager struct {
	backend    Backend
	provider   auth.Provider
	transfer   Transfer
	emitter    Emitter
	logger     logging.Logger
	stallAfter time.Duration
	onChange   func(State)

	inputs   chan input
	registry *Registry

	// Loop-owned; read elsewhere only via Snapshot.
	cur        State
	curData    []byte
	attempt    int
	stallTimer *time.Timer

	snapshots chan chan State
}

// Option configures a Manager.
type Option func(*Manager)

// WithStallThreshold sets how long AwaitingProcessing may last before a
// non-fatal stall notice is raised. Zero disables the notice.
func WithStallThreshold(d time.Duration) Option {
	return func(m *Manager) { m.stallAfter = d }
}

// WithChangeListener registers a callback invoked with a state copy after
// every transition. It runs on the loop goroutine and must not block.
func WithChangeListener(fn func(State)) Option {
	return func(m *Manager) { m.onChange = fn }
}

func NewManager(backend Backend, provider auth.Provider, transfer Transfer, emitter Emitter, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		backend:    backend,
		provider:   provider,
		transfer:   transfer,
		emitter:    emitter,
		logger:     logger,
		stallAfter: 2 * time.Minute,
		inputs:     make(chan input, 64),
		registry:   NewRegistry(),
		cur:        State{Phase: PhaseIdle},
		snapshots:  make(chan chan State),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Registry exposes the correlation registry (read-only use intended).
func (m *Manager) Registry() *Registry { return m.registry }

// Run consumes inputs until ctx is cancelled. All transitions happen here.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-m.snapshots:
			reply <- m.cur
		case in := <-m.inputs:
			m.handle(ctx, in)
		}
	}
}

// Snapshot returns a copy of the current state, serialized through the loop.
func (m *Manager) Snapshot() State {
	reply := make(chan State, 1)
	m.snapshots <- reply
	return <-reply
}

// Upload starts a new attempt for the selected file. Any previous attempt is
// superseded: its terminal artifacts leave the projection, but in-flight
// calls are not cancelled and their late completions are silently ignored.
func (m *Manager) Upload(fileName, mimeType string, data []byte) {
	m.inputs <- inStart{name: fileName, mime: mimeType, data: data}
}

// HandleBlurred feeds an image-blurred event into the loop. Correlation is
// by originalKey only; uncorrelated events are ignored, and duplicates of an
// already-applied event are no-ops.
func (m *Manager) HandleBlurred(originalKey, blurredKey string) {
	m.inputs <- inBlurred{originalKey: originalKey, blurredKey: blurredKey}
}

// HandleProcessingError feeds an asynchronous backend failure into the loop.
func (m *Manager) HandleProcessingError(message string) {
	m.inputs <- inProcessingError{message: message}
}

// Attach subscribes the manager to the push channel's processing events.
// The returned detach func removes every registration; call it when the
// manager is discarded so handlers do not leak across lifetimes.
func (m *Manager) Attach(ch *push.Channel) func() {
	blurredID := ch.Subscribe(push.EventImageBlurred, func(env push.Envelope) {
		var p push.ImageBlurred
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		m.HandleBlurred(p.OriginalKey, p.BlurredKey)
	})
	procID := ch.Subscribe(push.EventProcessingError, func(env push.Envelope) {
		var p push.ProcessingError
		_ = json.Unmarshal(env.Data, &p)
		m.HandleProcessingError(p.Message)
	})
	uploadID := ch.Subscribe(push.EventUploadError, func(env push.Envelope) {
		var p push.ProcessingError
		_ = json.Unmarshal(env.Data, &p)
		m.HandleProcessingError(p.Message)
	})

	return func() {
		ch.Unsubscribe(push.EventImageBlurred, blurredID)
		ch.Unsubscribe(push.EventProcessingError, procID)
		ch.Unsubscribe(push.EventUploadError, uploadID)
	}
}

func (m *Manager) handle(ctx context.Context, in input) {
	// Completions of superseded attempts are dropped wholesale.
	if a := in.attemptOf(); a != anyAttempt && a != m.attempt {
		m.logger.Debug(ctx, "dropping stale completion", "attempt", a, "current", m.attempt)
		return
	}

	switch in := in.(type) {
	case inStart:
		m.startAttempt(ctx, in)
	case inTokenResult:
		m.onToken(ctx, in)
	case inTargetResult:
		m.onTarget(ctx, in)
	case inTransferResult:
		m.onTransfer(ctx, in)
	case inBlurred:
		m.onBlurred(ctx, in)
	case inProcessingError:
		m.onProcessingError(ctx, in)
	case inURLResult:
		m.onURL(ctx, in)
	case inStallTick:
		m.onStallTick(ctx)
	}
}

func (m *Manager) startAttempt(ctx context.Context, in inStart) {
	// Supersede: drop interest in the previous attempt's key. In-flight
	// calls keep running; their completions fail the attempt check above.
	m.registry.Remove(m.cur.OriginalKey)
	m.stopStallTimer()

	m.attempt++
	m.cur = State{FileName: in.name, MIMEType: in.mime, Size: len(in.data), Phase: PhaseValidating}
	m.curData = in.data
	m.changed()

	if err := storage.ValidateSelection(in.name, in.data); err != nil {
		m.fail(ctx, FailValidation, err.Error())
		return
	}

	m.cur.Phase = PhaseAcquiringToken
	m.changed()

	attempt := m.attempt
	go func() {
		_, err := m.provider.Token(ctx)
		m.inputs <- inTokenResult{attempt: attempt, err: err}
	}()
}

func (m *Manager) onToken(ctx context.Context, in inTokenResult) {
	if m.cur.Phase != PhaseAcquiringToken {
		return
	}
	if in.err != nil {
		m.fail(ctx, FailAuth, in.err.Error())
		return
	}

	m.cur.Phase = PhaseRequestingUploadTarget
	m.changed()

	attempt, name := m.attempt, m.cur.FileName
	go func() {
		target, err := m.backend.RequestUploadTarget(ctx, name)
		m.inputs <- inTargetResult{attempt: attempt, target: target, err: err}
	}()
}

func (m *Manager) onTarget(ctx context.Context, in inTargetResult) {
	if m.cur.Phase != PhaseRequestingUploadTarget {
		return
	}
	if in.err != nil {
		m.fail(ctx, FailUploadTargetDenied, in.err.Error())
		return
	}

	// The backend's key is authoritative and becomes the durable
	// correlation identifier for every later event of this attempt.
	m.cur.OriginalKey = in.target.ObjectKey
	m.registry.Register(in.target.ObjectKey, m.attempt)
	m.cur.Phase = PhaseTransferring
	m.changed()

	attempt, putURL, mime := m.attempt, in.target.PutURL, m.cur.MIMEType
	data := m.curData
	go func() {
		err := m.transfer.PutBytes(ctx, putURL, data, mime)
		m.inputs <- inTransferResult{attempt: attempt, err: err}
	}()
}

func (m *Manager) onTransfer(ctx context.Context, in inTransferResult) {
	if m.cur.Phase != PhaseTransferring {
		return
	}
	if in.err != nil {
		m.fail(ctx, FailTransfer, in.err.Error())
		return
	}

	// Tell the backend the object exists. The push emission is buffered by
	// the channel while disconnected; the REST call is fire-and-forget and
	// never fails the attempt on its own.
	key := m.cur.OriginalKey
	if err := m.emitter.Emit(push.EventImageUploaded, push.ImageUploaded{OriginalKey: key}); err != nil {
		m.logger.Warn(ctx, "emit image-uploaded-to-s3 failed", "key", key, "error", err)
	}
	go func() {
		if err := m.backend.InvokeBlurProcess(ctx, key); err != nil {
			m.logger.Warn(ctx, "invoke-blur-process failed", "key", key, "error", err)
		}
	}()

	m.cur.Phase = PhaseAwaitingProcessing
	m.changed()
	m.startStallTimer()
}

func (m *Manager) onBlurred(ctx context.Context, in inBlurred) {
	attempt, ok := m.registry.Lookup(in.originalKey)
	if !ok || attempt != m.attempt || in.originalKey != m.cur.OriginalKey {
		m.logger.Debug(ctx, "ignoring uncorrelated image-blurred event", "key", in.originalKey)
		return
	}

	switch m.cur.Phase {
	case PhaseAwaitingProcessing:
		m.stopStallTimer()
		m.cur.BlurredKey = in.blurredKey
		m.cur.StallNotice = false
		m.cur.Phase = PhaseFetchingDownloadURL
		m.changed()

		a, key := m.attempt, in.blurredKey
		go func() {
			url, err := m.backend.RequestDownloadURL(ctx, key)
			m.inputs <- inURLResult{attempt: a, url: url, err: err}
		}()
	case PhaseFetchingDownloadURL, PhaseReady:
		// Redelivery after reconnect: already applied, nothing to do.
		if in.blurredKey != m.cur.BlurredKey {
			m.logger.Warn(ctx, "conflicting image-blurred redelivery ignored",
				"key", in.originalKey, "have", m.cur.BlurredKey, "got", in.blurredKey)
		}
	}
}

func (m *Manager) onProcessingError(ctx context.Context, in inProcessingError) {
	if m.cur.Phase.Terminal() || m.cur.Phase == PhaseIdle {
		return
	}
	msg := in.message
	if msg == "" {
		msg = "backend reported a processing failure"
	}
	m.fail(ctx, FailProcessing, msg)
}

func (m *Manager) onURL(ctx context.Context, in inURLResult) {
	if m.cur.Phase != PhaseFetchingDownloadURL {
		return
	}
	if in.err != nil {
		m.fail(ctx, FailDownloadTargetDenied, in.err.Error())
		return
	}

	m.cur.DownloadURL = in.url
	m.cur.Phase = PhaseReady
	m.registry.Remove(m.cur.OriginalKey)
	m.curData = nil
	m.changed()
}

func (m *Manager) onStallTick(ctx context.Context) {
	if m.cur.Phase != PhaseAwaitingProcessing || m.cur.StallNotice {
		return
	}
	m.cur.StallNotice = true
	m.logger.Warn(ctx, "processing is taking longer than expected", "key", m.cur.OriginalKey)
	m.changed()
}

func (m *Manager) fail(ctx context.Context, kind FailKind, message string) {
	m.stopStallTimer()
	m.registry.Remove(m.cur.OriginalKey)
	m.curData = nil
	m.cur.Phase = PhaseFailed
	m.cur.LastError = &Failure{Kind: kind, Message: message}
	m.logger.Error(ctx, "upload attempt failed", "kind", string(kind), "message", message)
	m.changed()
}

func (m *Manager) startStallTimer() {
	if m.stallAfter <= 0 {
		return
	}
	attempt := m.attempt
	m.stallTimer = time.AfterFunc(m.stallAfter, func() {
		m.inputs <- inStallTick{attempt: attempt}
	})
}

func (m *Manager) stopStallTimer() {
	if m.stallTimer != nil {
		m.stallTimer.Stop()
		m.stallTimer = nil
	}
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange(m.cur)
	}
}

// Download streams the blurred artifact into w. The stored URL is advisory:
// when storage rejects it as expired, one fresh URL is requested and the
// fetch retried.
func (m *Manager) Download(ctx context.Context, w io.Writer) error {
	s := m.Snapshot()
	if s.Phase != PhaseReady {
		return errors.New("no processed artifact available yet")
	}

	err := m.transfer.FetchTo(ctx, s.DownloadURL, w)
	if !errors.Is(err, storage.ErrURLExpired) {
		return err
	}

	url, err := m.backend.RequestDownloadURL(ctx, s.BlurredKey)
	if err != nil {
		return err
	}
	return m.transfer.FetchTo(ctx, url, w)
}
