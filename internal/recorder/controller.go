package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
)

// State names a position in the recording flow.
type State string

const (
	StateIdle        State = "idle"
	StateRecording   State = "recording"
	StatePaused      State = "paused"
	StateStyleSelect State = "style-select"
	StateProcessing  State = "processing"
	StatePreview     State = "preview"
	StatePaywall     State = "paywall"
)

// Stage names a step of the processing animation shown while a
// submission is in flight. The stages advance on fixed delays and are
// cancelled as soon as the real response lands.
type Stage string

const (
	StageUploading    Stage = "uploading"
	StageTranscribing Stage = "transcribing"
	StageRewriting    Stage = "rewriting"
)

const (
	// DefaultMaxDuration is the recording ceiling before auto-stop.
	DefaultMaxDuration = 600 * time.Second

	defaultTranscribeDelay = 1400 * time.Millisecond
	defaultRewriteDelay    = 3200 * time.Millisecond
)

var (
	ErrNotIdle      = errors.New("recorder: a session is already active")
	ErrNoSession    = errors.New("recorder: no active session")
	ErrWrongState   = errors.New("recorder: action not allowed in current state")
	ErrProcessing   = errors.New("recorder: cannot cancel while processing")
	ErrEmptyCapture = errors.New("recorder: capture produced no audio")
)

// Config tunes the controller. Zero values fall back to the production
// defaults.
type Config struct {
	MaxDuration     time.Duration
	TranscribeDelay time.Duration
	RewriteDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.TranscribeDelay <= 0 {
		c.TranscribeDelay = defaultTranscribeDelay
	}
	if c.RewriteDelay <= 0 {
		c.RewriteDelay = defaultRewriteDelay
	}
	return c
}

// Controller drives a single recording session at a time through the
// idle -> recording <-> paused -> style-select -> processing ->
// preview | paywall flow. All methods are safe for concurrent use.
type Controller struct {
	device    CaptureDevice
	submitter Submitter
	events    EventSink
	logger    *zap.Logger
	cfg       Config

	mu          sync.Mutex
	state       State
	session     CaptureSession
	audio       []byte
	deadline    time.Time
	remaining   time.Duration
	stopTimer   *time.Timer
	stageTimers []*time.Timer
	note        *notes.Note
	paywallMsg  string

	notesTotal int64
	isPremium  bool
}

func NewController(device CaptureDevice, submitter Submitter, events EventSink, logger *zap.Logger, cfg Config) *Controller {
	if events == nil {
		events = NopEventSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		device:    device,
		submitter: submitter,
		events:    events,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		state:     StateIdle,
	}
}

// UpdateQuota records the last-fetched note total and premium flag.
// StartRecording consults them before opening the microphone.
func (c *Controller) UpdateQuota(total int64, premium bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notesTotal = total
	c.isPremium = premium
}

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining reports how much recording time is left before auto-stop.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRecording:
		left := time.Until(c.deadline)
		if left < 0 {
			return 0
		}
		return left
	case StatePaused:
		return c.remaining
	default:
		return 0
	}
}

// Note returns the note produced by the last successful submission.
func (c *Controller) Note() *notes.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.note
}

// PaywallMessage returns the quota message when the flow ended in the
// paywall state.
func (c *Controller) PaywallMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paywallMsg
}

// StartRecording opens the microphone and begins the countdown. When
// the free-tier quota is already exhausted the flow jumps straight to
// the paywall instead of touching the device.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	if !c.isPremium && c.notesTotal >= notes.FreeNoteLimit {
		c.paywallMsg = notes.QuotaMessage
		c.setStateLocked(StatePaywall)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	session, err := c.device.Start(ctx)
	if err != nil {
		c.events.Error("Could not access the microphone.")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		session.Release()
		return ErrNotIdle
	}
	c.session = session
	c.note = nil
	c.paywallMsg = ""
	c.deadline = time.Now().Add(c.cfg.MaxDuration)
	c.stopTimer = time.AfterFunc(c.cfg.MaxDuration, c.autoStop)
	c.setStateLocked(StateRecording)
	return nil
}

// TogglePause flips between recording and paused. The countdown is
// frozen while paused.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRecording:
		if err := c.session.Pause(); err != nil {
			return err
		}
		c.remaining = time.Until(c.deadline)
		if c.remaining < 0 {
			c.remaining = 0
		}
		c.stopCountdownLocked()
		c.setStateLocked(StatePaused)
		return nil
	case StatePaused:
		if err := c.session.Resume(); err != nil {
			return err
		}
		c.deadline = time.Now().Add(c.remaining)
		c.stopTimer = time.AfterFunc(c.remaining, c.autoStop)
		c.setStateLocked(StateRecording)
		return nil
	default:
		return ErrWrongState
	}
}

// StopRecording finalizes the capture and advances to style selection.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRecordingLocked()
}

func (c *Controller) stopRecordingLocked() error {
	if c.state != StateRecording && c.state != StatePaused {
		return ErrWrongState
	}
	if c.session == nil {
		return ErrNoSession
	}
	audio, err := c.session.Stop()
	c.session.Release()
	c.session = nil
	c.stopCountdownLocked()
	if err != nil {
		c.setStateLocked(StateIdle)
		c.events.Error("Recording failed.")
		return err
	}
	if len(audio) == 0 {
		c.setStateLocked(StateIdle)
		c.events.Error("Recording produced no audio.")
		return ErrEmptyCapture
	}
	c.audio = audio
	c.setStateLocked(StateStyleSelect)
	return nil
}

func (c *Controller) autoStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return
	}
	if err := c.stopRecordingLocked(); err != nil {
		c.logger.Warn("auto-stop failed", zap.Error(err))
	}
}

// SelectStyle submits the captured audio with the chosen style. It
// blocks until the submission finishes, so callers run it off the UI
// loop. The stage animation advances on timers until the response
// lands.
func (c *Controller) SelectStyle(ctx context.Context, styleID string) error {
	c.mu.Lock()
	if c.state != StateStyleSelect {
		c.mu.Unlock()
		return ErrWrongState
	}
	audio := c.audio
	c.audio = nil
	c.setStateLocked(StateProcessing)
	c.startStageTimersLocked()
	c.mu.Unlock()

	note, err := c.submitter.Submit(ctx, audio, styleID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopStageTimersLocked()
	if err != nil {
		if errors.Is(err, notes.ErrQuotaExceeded) {
			c.paywallMsg = notes.QuotaMessage
			c.setStateLocked(StatePaywall)
			return nil
		}
		c.setStateLocked(StateIdle)
		c.events.Error("Something went wrong. Please try again.")
		return err
	}
	c.note = &note
	c.setStateLocked(StatePreview)
	return nil
}

// Cancel aborts the flow and returns to idle, releasing the device,
// timers and any buffered audio. It is idempotent and safe to call
// from teardown. Cancelling while a submission is in flight is not
// allowed.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateProcessing {
		return ErrProcessing
	}
	c.releaseLocked()
	if c.state != StateIdle {
		c.setStateLocked(StateIdle)
	}
	return nil
}

func (c *Controller) releaseLocked() {
	if c.session != nil {
		c.session.Release()
		c.session = nil
	}
	c.stopCountdownLocked()
	c.stopStageTimersLocked()
	c.audio = nil
	c.remaining = 0
}

func (c *Controller) stopCountdownLocked() {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
}

func (c *Controller) startStageTimersLocked() {
	c.events.StageChanged(StageUploading)
	c.stageTimers = []*time.Timer{
		time.AfterFunc(c.cfg.TranscribeDelay, func() { c.emitStage(StageTranscribing) }),
		time.AfterFunc(c.cfg.RewriteDelay, func() { c.emitStage(StageRewriting) }),
	}
}

func (c *Controller) stopStageTimersLocked() {
	for _, t := range c.stageTimers {
		t.Stop()
	}
	c.stageTimers = nil
}

func (c *Controller) emitStage(stage Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateProcessing {
		c.events.StageChanged(stage)
	}
}

func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.events.StateChanged(state)
}
