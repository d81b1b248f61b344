package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/session"
	ws "github.com/sanjio/sanjio/internal/websocket"
)

const defaultAutosaveInterval = 15 * time.Second

// Autosaver mirrors answer changes of one exam to the server over a
// websocket. It is best effort: the local snapshot stays the source of
// truth, and a dropped connection is redialled on the next change or tick.
type Autosaver struct {
	url      string
	examID   string
	dialer   *websocket.Dialer
	interval time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	want map[string]int
	sent map[string]int

	kick   chan struct{}
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutosaver mirrors answers of examID to streamURL.
func NewAutosaver(streamURL, examID string, log zerolog.Logger) *Autosaver {
	return &Autosaver{
		url:      streamURL,
		examID:   examID,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		interval: defaultAutosaveInterval,
		log:      log.With().Str("component", "Autosaver").Str("exam_id", examID).Logger(),
		want:     map[string]int{},
		sent:     map[string]int{},
		kick:     make(chan struct{}, 1),
	}
}

// SetInterval changes the retry and keepalive period. Call before Start.
func (a *Autosaver) SetInterval(d time.Duration) {
	if d > 0 {
		a.interval = d
	}
}

// Observe records the answers of st. States of other exams, and the empty
// state left after a reset, are ignored.
func (a *Autosaver) Observe(st session.State) {
	if st.ExamID != a.examID {
		return
	}
	a.mu.Lock()
	a.want = maps.Clone(st.Answers)
	if a.want == nil {
		a.want = map[string]int{}
	}
	a.mu.Unlock()

	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Pending reports how many answer changes have not been acknowledged.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.diffLocked())
}

// Start runs the sender until Stop or ctx is done.
func (a *Autosaver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.run(ctx)
}

// Stop ends the sender and closes the connection.
func (a *Autosaver) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

type change struct {
	qid    string
	answer int
}

func (a *Autosaver) diffLocked() []change {
	var out []change
	for qid, opt := range a.want {
		if a.sent[qid] != opt {
			out = append(out, change{qid: qid, answer: opt})
		}
	}
	for qid := range a.sent {
		if _, ok := a.want[qid]; !ok {
			out = append(out, change{qid: qid, answer: 0})
		}
	}
	slices.SortFunc(out, func(x, y change) int {
		switch {
		case x.qid < y.qid:
			return -1
		case x.qid > y.qid:
			return 1
		}
		return 0
	})
	return out
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.done)
	defer a.closeConn()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.kick:
		case <-ticker.C:
			if a.conn != nil && a.Pending() == 0 {
				if err := a.ping(); err != nil {
					a.log.Debug().Err(err).Msg("Keepalive failed")
					a.closeConn()
				}
				continue
			}
		}

		if err := a.flush(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn().Err(err).Int("pending", a.Pending()).Msg("Autosave failed, will retry")
			a.closeConn()
		}
	}
}

func (a *Autosaver) flush(ctx context.Context) error {
	a.mu.Lock()
	changes := a.diffLocked()
	a.mu.Unlock()
	if len(changes) == 0 {
		return nil
	}

	if a.conn == nil {
		conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
		if err != nil {
			return fmt.Errorf("dial autosave stream: %w", err)
		}
		a.conn = conn
		a.log.Debug().Msg("Autosave stream connected")
	}

	for _, ch := range changes {
		req := ws.AutosaveRequest{Action: ws.ActionAutosave, QID: ch.qid, Answer: ch.answer}
		if err := ws.WriteTyped(a.conn, req); err != nil {
			return fmt.Errorf("write autosave: %w", err)
		}
		var resp ws.ErrorResponse
		if err := ws.ReadJSON(a.conn, &resp); err != nil {
			return fmt.Errorf("read autosave ack: %w", err)
		}
		if resp.Event == ws.EventError {
			// a rejected change is not retried
			a.log.Warn().Str("q_id", ch.qid).Str("error", resp.Error).Msg("Autosave rejected")
		}

		a.mu.Lock()
		if ch.answer == 0 {
			delete(a.sent, ch.qid)
		} else {
			a.sent[ch.qid] = ch.answer
		}
		a.mu.Unlock()
	}
	return nil
}

func (a *Autosaver) ping() error {
	if err := ws.WriteTyped(a.conn, ws.PingRequest{Action: ws.ActionPing}); err != nil {
		return err
	}
	var resp ws.ResponseEnvelope
	if err := ws.ReadJSON(a.conn, &resp); err != nil {
		return err
	}
	if resp.Event != ws.EventPong {
		return errors.New("unexpected keepalive reply " + string(resp.Event))
	}
	return nil
}

func (a *Autosaver) closeConn() {
	if a.conn == nil {
		return
	}
	_ = a.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	a.conn.Close()
	a.conn = nil
}
