package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sanjio/sanjio/internal/countdown"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/session"
	"github.com/sanjio/sanjio/internal/submission"
)

var (
	ErrCannotEnter = errors.New("cannot enter exam")
	ErrNoQuestions = errors.New("exam has no questions")
)

// Backend is what the exam-taking view needs from the server.
type Backend interface {
	StartAttempt(ctx context.Context, examID string) (*model.AttemptRef, error)
	FetchPaper(ctx context.Context, examID string) (*model.AttemptPaper, error)
	FetchExamInfo(ctx context.Context, examID string) (*model.ExamInfo, error)
	submission.Finisher
}

// ExitReason says why the candidate must leave the exam-taking view.
type ExitReason int

const (
	ExitSubmitted ExitReason = iota
	ExitTimeUp
)

func (r ExitReason) String() string {
	if r == ExitTimeUp {
		return "time_up"
	}
	return "submitted"
}

// Exit is delivered once on View.Done.
type Exit struct {
	Reason ExitReason
	Err    error
}

type options struct {
	clock   countdown.Clock
	cadence time.Duration
	onTick  func(countdown.Remaining)
	log     zerolog.Logger
}

type Option func(*options)

func WithClock(c countdown.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithCadence(d time.Duration) Option {
	return func(o *options) { o.cadence = d }
}

// WithTick receives every countdown tick.
func WithTick(fn func(countdown.Remaining)) Option {
	return func(o *options) { o.onTick = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// View is one mounted exam-taking view: a loaded store, a running countdown
// and the submission state of the attempt.
type View struct {
	ExamID    string
	AttemptID string
	StartedAt time.Time
	Info      model.ExamInfo

	store     *session.Store
	submitter *submission.Submitter
	countdown *countdown.Controller
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	exitOnce  sync.Once
	exit      chan Exit
	closeOnce sync.Once
}

// Enter starts (or resumes) the attempt, fetches the paper and the exam info
// in parallel and loads the store. On any failure the store is left as it
// was and the error wraps ErrCannotEnter.
func Enter(ctx context.Context, backend Backend, store *session.Store, examID string, opts ...Option) (*View, error) {
	o := options{clock: countdown.SystemClock{}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With().Str("component", "ExamAttempt").Str("exam_id", examID).Logger()

	ref, err := backend.StartAttempt(ctx, examID)
	if err != nil {
		log.Warn().Err(err).Msg("Start attempt failed")
		return nil, fmt.Errorf("%w: start attempt: %w", ErrCannotEnter, err)
	}

	var (
		paper *model.AttemptPaper
		info  *model.ExamInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := backend.FetchPaper(gctx, examID)
		if err != nil {
			return fmt.Errorf("fetch paper: %w", err)
		}
		paper = p
		return nil
	})
	g.Go(func() error {
		i, err := backend.FetchExamInfo(gctx, examID)
		if err != nil {
			return fmt.Errorf("fetch exam info: %w", err)
		}
		info = i
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("Loading exam failed")
		return nil, fmt.Errorf("%w: %w", ErrCannotEnter, err)
	}

	if len(paper.Questions) == 0 {
		log.Warn().Msg("Exam has no questions")
		return nil, fmt.Errorf("%w: %w", ErrCannotEnter, ErrNoQuestions)
	}

	attemptID := paper.AttemptID
	if attemptID == "" {
		attemptID = ref.AttemptID
	}
	startedAt := paper.StartedAt
	if startedAt.IsZero() {
		startedAt = ref.StartedAt
	}

	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		ExamID:    examID,
		AttemptID: attemptID,
		StartedAt: startedAt,
		Info:      *info,
		store:     store,
		log:       log.With().Str("attempt_id", attemptID).Logger(),
		ctx:       viewCtx,
		cancel:    cancel,
		exit:      make(chan Exit, 1),
	}

	store.Initialize(examID, paper.Questions)
	v.submitter = submission.New(backend, store, attemptID, o.log)
	v.submitter.Begin()

	duration := countdown.Unlimited
	if !info.Unlimited() {
		duration = *info.DurationMinutes
	}
	ctlOpts := []countdown.Option{countdown.WithClock(o.clock), countdown.WithLogger(o.log)}
	if o.cadence > 0 {
		ctlOpts = append(ctlOpts, countdown.WithCadence(o.cadence))
	}
	if o.onTick != nil {
		ctlOpts = append(ctlOpts, countdown.WithTick(o.onTick))
	}
	v.countdown = countdown.New(startedAt, duration, v.onExpire, ctlOpts...)
	v.countdown.Start(viewCtx)

	v.log.Info().
		Int("questions", len(paper.Questions)).
		Bool("unlimited", v.countdown.Unlimited()).
		Time("started_at", startedAt).
		Msg("Entered exam")

	return v, nil
}

func (v *View) Store() *session.Store { return v.store }

func (v *View) Countdown() *countdown.Controller { return v.countdown }

func (v *View) Submitter() *submission.Submitter { return v.submitter }

// Done yields one Exit when the candidate must leave the view.
func (v *View) Done() <-chan Exit { return v.exit }

// Submit is the candidate's explicit submit. A retryable failure keeps the
// view open; success or a failure after the deadline closes it.
func (v *View) Submit(ctx context.Context) error {
	err := v.submitter.Submit(ctx, submission.TriggerExplicit)
	switch {
	case err == nil:
		v.finish(Exit{Reason: ExitSubmitted})
		return nil
	case errors.Is(err, submission.ErrTimeUp):
		v.finish(Exit{Reason: ExitTimeUp, Err: err})
		return err
	default:
		return err
	}
}

func (v *View) onExpire() {
	err := v.submitter.Submit(v.ctx, submission.TriggerExpiry)
	if errors.Is(err, submission.ErrInFlight) {
		// the in-flight explicit submit reports the outcome
		return
	}
	v.finish(Exit{Reason: ExitTimeUp, Err: err})
}

func (v *View) finish(e Exit) {
	v.exitOnce.Do(func() {
		v.log.Info().
			Str("reason", e.Reason.String()).
			AnErr("error", e.Err).
			Msg("Leaving exam")
		v.exit <- e
		v.Close()
	})
}

// Close stops the countdown. The store keeps its progress.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.countdown.Stop()
		v.cancel()
	})
}

// Leave closes the view and clears the session store.
func (v *View) Leave() {
	v.Close()
	v.store.Reset()
}
