// Package session holds per-tab application state and the view state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/neuroscanx/internal/auth"
	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/triage"
	"github.com/google/uuid"
)

// View is the active top-level screen.
type View string

const (
	ViewLanding   View = "landing"
	ViewLogin     View = "login"
	ViewSignup    View = "signup"
	ViewDashboard View = "dashboard"
	ViewResults   View = "results"
)

var (
	ErrWrongView        = errors.New("action not allowed in current view")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrImageIndex       = errors.New("image index out of range")
	// ErrSuperseded is returned when an analysis finished after the session
	// logged out; its outcome is discarded.
	ErrSuperseded = errors.New("analysis outcome discarded")
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// Snapshot is a consistent copy of session state.
type Snapshot struct {
	SessionID string                 `json:"session_id"`
	View      View                   `json:"view"`
	Analyzing bool                   `json:"analyzing"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	DarkMode  bool                   `json:"dark_mode"`
	Identity  *auth.Identity         `json:"identity,omitempty"`
	Draft     *DraftView             `json:"draft,omitempty"`
	ReportID  string                 `json:"report_id,omitempty"`
	Result    *domain.AnalysisResult `json:"result,omitempty"`
}

// Session is the state of one browser tab. All mutation goes through its
// transition methods.
type Session struct {
	mu          sync.Mutex
	id          string
	auth        auth.Authenticator
	now         func() time.Time
	newReportID func() string

	view      View
	analyzing bool
	errMsg    string
	errKind   string
	dark      bool
	identity  *auth.Identity
	report    *domain.Report
	draft     Draft
	epoch     uint64
	lastSeen  time.Time
}

// New creates a session on the landing view with the dark theme.
func New(id string, a auth.Authenticator) *Session {
	if a == nil {
		a = auth.Stub{}
	}
	s := &Session{
		id:          id,
		auth:        a,
		now:         time.Now,
		newReportID: NewReportID,
		view:        ViewLanding,
		dark:        true,
	}
	s.lastSeen = s.now()
	return s
}

// NewReportID returns a short uppercase report identifier.
func NewReportID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

// ID returns the session key.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		View:      s.view,
		Analyzing: s.analyzing,
		Error:     s.errMsg,
		ErrorKind: s.errKind,
		DarkMode:  s.dark,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	if s.view == ViewDashboard {
		dv := s.draft.View()
		snap.Draft = &dv
	}
	if s.report != nil {
		snap.ReportID = s.report.ID
		snap.Result = s.report.Result
	}
	return snap
}

// Report returns the held report, if any.
func (s *Session) Report() (*domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewResults || s.report == nil {
		return nil, false
	}
	return s.report, true
}

// LastSeen returns the time of the last transition or read through the registry.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Busy reports whether an analysis is outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzing
}

func (s *Session) touch() {
	s.lastSeen = s.now()
}

// transition moves from one of the allowed views to next.
func (s *Session) transition(next View, from ...View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inLocked(from...) {
		return fmt.Errorf("%w: %s -> %s", ErrWrongView, s.view, next)
	}
	s.view = next
	s.touch()
	return nil
}

func (s *Session) inLocked(views ...View) bool {
	for _, v := range views {
		if s.view == v {
			return true
		}
	}
	return false
}

// ChooseSignIn moves landing to login.
func (s *Session) ChooseSignIn() error {
	return s.transition(ViewLogin, ViewLanding)
}

// ChooseSignUp moves landing to signup.
func (s *Session) ChooseSignUp() error {
	return s.transition(ViewSignup, ViewLanding)
}

// SwitchAuthMode toggles between login and signup.
func (s *Session) SwitchAuthMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.view {
	case ViewLogin:
		s.view = ViewSignup
	case ViewSignup:
		s.view = ViewLogin
	default:
		return fmt.Errorf("%w: cannot switch auth mode from %s", ErrWrongView, s.view)
	}
	s.touch()
	return nil
}

// Back returns from login or signup to landing.
func (s *Session) Back() error {
	return s.transition(ViewLanding, ViewLogin, ViewSignup)
}

// SubmitCredentials verifies creds and moves to the dashboard on success.
// The mode is taken from the current view. On rejection the state is unchanged.
func (s *Session) SubmitCredentials(ctx context.Context, creds auth.Credentials) error {
	s.mu.Lock()
	from := s.view
	if from != ViewLogin && from != ViewSignup {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot submit credentials from %s", ErrWrongView, from)
	}
	creds.Mode = auth.ModeLogin
	if from == ViewSignup {
		creds.Mode = auth.ModeSignup
	}
	s.touch()
	s.mu.Unlock()

	id, err := s.auth.Verify(ctx, creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != from {
		return fmt.Errorf("%w: view changed to %s during sign-in", ErrWrongView, s.view)
	}
	s.identity = &id
	s.view = ViewDashboard
	s.draft = Draft{}
	s.errMsg, s.errKind = "", ""
	s.touch()
	slog.Info("Session signed in", "session_id", s.id, "mode", creds.Mode)
	return nil
}

// Logout returns to landing and clears identity, result, draft and error.
// An outstanding analysis is abandoned.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inLocked(ViewDashboard, ViewResults) {
		return fmt.Errorf("%w: cannot log out from %s", ErrWrongView, s.view)
	}
	s.view = ViewLanding
	s.identity = nil
	s.report = nil
	s.draft = Draft{}
	s.errMsg, s.errKind = "", ""
	s.analyzing = false
	s.epoch++
	s.touch()
	return nil
}

// ReturnToInput moves results back to the dashboard and drops the result.
func (s *Session) ReturnToInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewResults {
		return fmt.Errorf("%w: no results to leave from %s", ErrWrongView, s.view)
	}
	s.view = ViewDashboard
	s.report = nil
	s.touch()
	return nil
}

// ToggleTheme flips the theme flag and returns the new dark-mode value.
func (s *Session) ToggleTheme() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dark = !s.dark
	s.touch()
	return s.dark
}

// Analyze runs one analysis of the current draft.
//
// An empty draft returns domain.ErrEmptySubmission without any state change.
// On success the session moves to results; on failure it stays on the
// dashboard with the error banner set. The analyzer is called without the
// session lock held.
func (s *Session) Analyze(ctx context.Context, a Analyzer) error {
	return s.AnalyzeIf(ctx, a, nil)
}

// AnalyzeIf is Analyze with an admission check. admit runs under the session
// lock once the view, in-flight and empty-draft checks have passed; its error
// is returned unchanged and the state is left as it was.
func (s *Session) AnalyzeIf(ctx context.Context, a Analyzer, admit func() error) error {
	s.mu.Lock()
	if s.view != ViewDashboard {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot analyze from %s", ErrWrongView, s.view)
	}
	if s.analyzing {
		s.mu.Unlock()
		return ErrAnalysisInFlight
	}
	req := s.draft.Request()
	if err := req.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if admit != nil {
		if err := admit(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.analyzing = true
	s.errMsg, s.errKind = "", ""
	s.report = nil
	epoch := s.epoch
	s.touch()
	s.mu.Unlock()

	result, err := a.Analyze(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if epoch != s.epoch {
		slog.Info("Discarding analysis outcome after logout", "session_id", s.id)
		return ErrSuperseded
	}
	s.analyzing = false
	if err != nil {
		s.errMsg = triage.UserMessage(err)
		s.errKind = triage.Classify(err)
		return err
	}
	s.report = &domain.Report{ID: s.newReportID(), CreatedAt: s.now(), Result: result}
	s.view = ViewResults
	return nil
}

// editDraft applies fn to the draft while on the dashboard.
func (s *Session) editDraft(fn func(d *Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewDashboard {
		return fmt.Errorf("%w: draft is only editable on the dashboard, not %s", ErrWrongView, s.view)
	}
	if err := fn(&s.draft); err != nil {
		return err
	}
	s.touch()
	return nil
}

// SetText updates symptom and history text. Nil leaves a field unchanged.
func (s *Session) SetText(symptoms, history *string) error {
	return s.editDraft(func(d *Draft) error {
		if symptoms != nil {
			d.Symptoms = *symptoms
		}
		if history != nil {
			d.History = *history
		}
		return nil
	})
}

// AddImages appends images to the selection; extra images are dropped.
func (s *Session) AddImages(imgs ...domain.Image) (dropped int, err error) {
	err = s.editDraft(func(d *Draft) error {
		dropped = d.AddImages(imgs...)
		return nil
	})
	return dropped, err
}

// RemoveImage removes the selected image at index.
func (s *Session) RemoveImage(index int) error {
	return s.editDraft(func(d *Draft) error {
		if !d.RemoveImage(index) {
			return fmt.Errorf("%w: %d", ErrImageIndex, index)
		}
		return nil
	})
}

// SetListening starts or stops voice capture.
func (s *Session) SetListening(on bool) error {
	return s.editDraft(func(d *Draft) error {
		d.Listening = on
		return nil
	})
}

// ToggleListening flips voice capture and returns the new value.
func (s *Session) ToggleListening() (on bool, err error) {
	err = s.editDraft(func(d *Draft) error {
		d.Listening = !d.Listening
		on = d.Listening
		return nil
	})
	return on, err
}

// AppendSpeech adds a finalized speech segment to transcript and symptoms.
func (s *Session) AppendSpeech(segment string) error {
	return s.editDraft(func(d *Draft) error {
		d.AppendFinalSegment(segment)
		return nil
	})
}

// ClearVoice empties the voice transcript.
func (s *Session) ClearVoice() error {
	return s.editDraft(func(d *Draft) error {
		d.VoiceTranscript = ""
		return nil
	})
}
