// Package conversation keeps the local message list of one open conversation in
// sync with the backend.
//
// Sends are optimistic: the user's message is appended before the request goes out
// and is never removed. The server reply, or an inline "Error: ..." message, is
// appended when the request resolves. A View allows one send in flight at a time.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

// ErrClosed is returned by Load once the view has been closed.
var ErrClosed = errors.New("conversation view closed")

// ErrorPrefix starts the content of the synthetic message appended when a send fails.
const ErrorPrefix = "Error: "

// Backend is the subset of the chat API a View needs.
type Backend interface {
	GetChat(ctx context.Context, id chat.ID, includeMessages bool) (chat.Conversation, error)
	PostMessage(ctx context.Context, id chat.ID, role chat.Role, content string) (chat.Message, error)
}

// State of a View.
type State int

const (
	Idle State = iota
	Sending
)

func (s State) String() string {
	if s == Sending {
		return "sending"
	}
	return "idle"
}

// Snapshot is a copy of the view state handed to subscribers. Snapshots published
// from different goroutines may arrive out of order; Version orders them.
type Snapshot struct {
	Version  uint64
	ID       chat.ID
	Title    string
	Messages []chat.Message
	Input    string
	State    State
	LoadErr  error
}

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *View) {
		v.logger = logging.OrNop(l)
	}
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// View is the state machine behind one conversation screen. Its lifetime is bound
// to the context passed to New and ends at Close or when that context is done;
// requests still pending then are cancelled and their results dropped.
type View struct {
	id      chat.ID
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	title     string
	messages  []chat.Message
	input     string
	state     State
	loadErr   error
	version   uint64
	closed    bool
	sendDone  chan struct{}
	nextSub   int
	listeners map[int]func(Snapshot)
}

// New opens a view on conversation id. Nothing is fetched until Load.
func New(parent context.Context, id chat.ID, backend Backend, opts ...Option) *View {
	ctx, cancel := context.WithCancel(parent)

	idle := make(chan struct{})
	close(idle)

	v := &View{
		id:        id,
		backend:   backend,
		logger:    zap.NewNop(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		messages:  []chat.Message{},
		sendDone:  idle,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.Named("conversation").With(zap.String("chat_id", id.String()))
	return v
}

// ID returns the conversation id.
func (v *View) ID() chat.ID {
	return v.id
}

// Load fetches the conversation and replaces the local state wholesale.
//
// A failed load leaves an empty message list and records the error (see LoadErr);
// it is not turned into an inline message. The error is also returned.
func (v *View) Load(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.ctx, cancel)
	defer stop()

	conv, err := v.backend.GetChat(ctx, v.id, true)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		v.messages = []chat.Message{}
		v.loadErr = err
		v.logger.Warn("failed to load conversation",
			zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
	} else {
		v.title = conv.Title
		v.messages = append(make([]chat.Message, 0, len(conv.Messages)+2), conv.Messages...)
		v.loadErr = nil
		v.logger.Debug("conversation loaded", zap.Int("messages", len(conv.Messages)))
	}
	v.version++
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.publish(snap)
	return err
}

// SetInput replaces the input buffer.
func (v *View) SetInput(text string) {
	v.mu.Lock()
	v.input = text
	v.version++
	snap := v.snapshotLocked()
	v.mu.Unlock()
	v.publish(snap)
}

// Input returns the input buffer.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// SendInput sends the current input buffer.
func (v *View) SendInput() bool {
	return v.Send(v.Input())
}

// Send appends text as a provisional user message, clears the input and starts the
// request in the background. It reports false, changing nothing, when text is
// blank, another send is in flight, or the view's lifetime has ended.
func (v *View) Send(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	v.mu.Lock()
	if v.closed || v.state == Sending || v.ctx.Err() != nil {
		v.mu.Unlock()
		return false
	}

	sentAt := v.now()
	v.messages = append(v.messages, chat.Message{
		ID:        chat.NewProvisionalID(),
		Role:      chat.RoleUser,
		Content:   text,
		CreatedAt: sentAt,
	})
	v.input = ""
	v.state = Sending
	done := make(chan struct{})
	v.sendDone = done
	v.wg.Add(1)
	v.version++
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.publish(snap)
	go v.deliver(text, sentAt, done)
	return true
}

func (v *View) deliver(text string, sentAt time.Time, done chan struct{}) {
	defer v.wg.Done()
	defer close(done)

	reply, err := v.backend.PostMessage(v.ctx, v.id, chat.RoleUser, text)
	if err == nil && (reply.ID == "" || reply.Role == "") {
		err = apperr.New(apperr.KindServer, "post message", "server returned an empty reply")
	}

	v.mu.Lock()
	v.state = Idle
	if v.closed || v.ctx.Err() != nil {
		v.mu.Unlock()
		v.logger.Debug("discarding send result after close", zap.Error(err))
		return
	}

	if err != nil {
		v.logger.Warn("failed to send message",
			zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
		reply = chat.Message{
			ID:        chat.NewProvisionalID(),
			Role:      chat.RoleAssistant,
			Content:   ErrorPrefix + apperr.MessageOf(err),
			CreatedAt: sentAt,
		}
	}
	v.messages = append(v.messages, reply)
	v.version++
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.publish(snap)
}

// Wait blocks until the pending send, if any, has been resolved and published to
// subscribers, or until ctx is done.
func (v *View) Wait(ctx context.Context) error {
	v.mu.Lock()
	done := v.sendDone
	v.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels pending requests, discards their results and waits for them to
// return. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.listeners = make(map[int]func(Snapshot))
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
}

// Messages returns a copy of the local message list.
func (v *View) Messages() []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]chat.Message(nil), v.messages...)
}

// State returns Idle or Sending.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Title returns the title from the last successful load.
func (v *View) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.title
}

// LoadErr returns the error of the last load, nil if it succeeded.
func (v *View) LoadErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}

// Snapshot returns a copy of the whole view state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. fn runs on the
// goroutine that made the change, outside the view lock.
func (v *View) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Version:  v.version,
		ID:       v.id,
		Title:    v.title,
		Messages: append([]chat.Message(nil), v.messages...),
		Input:    v.input,
		State:    v.state,
		LoadErr:  v.loadErr,
	}
}

func (v *View) publish(snap Snapshot) {
	v.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
