package stomp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// pipeConn is an in-memory transport: the test plays the client side
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *pipeConn) WriteMessage(data []byte) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	case p.out <- append([]byte(nil), data...):
		return nil
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

type stubPrincipals map[string]*models.Principal

func (s stubPrincipals) ResolvePrincipal(_ context.Context, username string) (*models.Principal, error) {
	if p, ok := s[username]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("user %s not found", username)
}

type recordingSecurity struct {
	mu        sync.Mutex
	connected []string
	rejected  []string
}

func (r *recordingSecurity) LogChannelConnected(_ context.Context, username, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, username)
}

func (r *recordingSecurity) LogChannelRejected(_ context.Context, _, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

type harness struct {
	t        *testing.T
	tokens   *auth.TokenManager
	broker   *broker.Broker
	alice    *models.Principal
	bob      *models.Principal
	security *recordingSecurity
	gate     *Gate
}

func newHarness(t *testing.T) *harness {
	tokens := auth.NewTokenManager("stomp-test-secret", time.Hour, "")
	alice := &models.Principal{UserID: uuid.New(), Username: "alice", Role: models.RoleUser}
	bob := &models.Principal{UserID: uuid.New(), Username: "bob", Role: models.RoleUser}
	return &harness{
		t:        t,
		tokens:   tokens,
		broker:   broker.New(slog.New(slog.DiscardHandler)),
		alice:    alice,
		bob:      bob,
		security: &recordingSecurity{},
		gate:     NewGate(tokens, stubPrincipals{"alice": alice, "bob": bob}),
	}
}

func (h *harness) token(username string) string {
	token, err := h.tokens.Issue(username)
	require.NoError(h.t, err)
	return token
}

type client struct {
	t       *testing.T
	conn    *pipeConn
	session *Session
	errCh   chan error
}

func (h *harness) start(ctx context.Context, opts Options) *client {
	conn := newPipeConn()
	opts.Security = h.security
	opts.Logger = slog.New(slog.DiscardHandler)
	s := NewSession(conn, h.gate, h.broker, opts)

	c := &client{t: h.t, conn: conn, session: s, errCh: make(chan error, 1)}
	go func() { c.errCh <- s.Serve(ctx) }()
	return c
}

func (c *client) send(f *frame.Frame) {
	var buf bytes.Buffer
	require.NoError(c.t, frame.NewWriter(&buf).Write(f))
	c.conn.in <- buf.Bytes()
}

func (c *client) recv() *frame.Frame {
	c.t.Helper()
	select {
	case data := <-c.conn.out:
		f, err := frame.NewReader(bytes.NewReader(data)).Read()
		require.NoError(c.t, err)
		require.NotNil(c.t, f)
		return f
	case <-time.After(2 * time.Second):
		c.t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func (c *client) expectNoFrame() {
	select {
	case data := <-c.conn.out:
		c.t.Fatalf("unexpected frame: %q", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func (c *client) result() error {
	c.t.Helper()
	select {
	case err := <-c.errCh:
		return err
	case <-time.After(2 * time.Second):
		c.t.Fatal("session did not stop")
		return nil
	}
}

func (c *client) connect(headers ...string) *frame.Frame {
	c.send(frame.New(frame.CONNECT, append([]string{frame.AcceptVersion, "1.0,1.1,1.2", frame.Host, "localhost"}, headers...)...))
	return c.recv()
}

func TestSession_ConnectRequiresToken(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name    string
		headers []string
	}{
		{"no token", nil},
		{"garbage bearer", []string{"Authorization", "Bearer garbage"}},
		{"wrong scheme", []string{"Authorization", "Basic " + h.token("alice")}},
		{"unknown user", []string{"Authorization", "Bearer " + h.token("ghost")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := h.start(context.Background(), Options{})
			reply := c.connect(tt.headers...)

			assert.Equal(t, frame.ERROR, reply.Command)
			assert.Equal(t, "authentication failed", reply.Header.Get(frame.Message))

			var perr *ProtocolError
			require.True(t, errors.As(c.result(), &perr))
			assert.True(t, c.conn.isClosed())
			assert.Nil(t, c.session.Principal())
		})
	}
	assert.Len(t, h.security.rejected, len(tests))
	assert.Empty(t, h.security.connected)
}

func TestSession_ConnectAttachesPrincipal(t *testing.T) {
	h := newHarness(t)

	for _, header := range []string{"Authorization", "token"} {
		t.Run(header, func(t *testing.T) {
			value := h.token("alice")
			if header == "Authorization" {
				value = "Bearer " + value
			}

			c := h.start(context.Background(), Options{})
			reply := c.connect(header, value)

			require.Equal(t, frame.CONNECTED, reply.Command)
			assert.Equal(t, "1.2", reply.Header.Get(frame.Version))
			assert.Equal(t, "0,0", reply.Header.Get(frame.HeartBeat))
			assert.Equal(t, "alice", reply.Header.Get("user-name"))
			assert.Equal(t, c.session.ID(), reply.Header.Get(frame.Session))
			assert.Equal(t, h.alice, c.session.Principal())

			c.send(frame.New(frame.DISCONNECT))
			assert.NoError(t, c.result())
		})
	}
}

func TestSession_FrameBeforeConnect(t *testing.T) {
	h := newHarness(t)
	c := h.start(context.Background(), Options{})

	c.send(frame.New(frame.SUBSCRIBE, frame.Id, "sub-0", frame.Destination, broker.TopicTasks))
	reply := c.recv()
	assert.Equal(t, frame.ERROR, reply.Command)
	assert.Equal(t, "not connected", reply.Header.Get(frame.Message))
	assert.Error(t, c.result())
	assert.True(t, c.conn.isClosed())
}

func TestSession_UnsupportedVersion(t *testing.T) {
	h := newHarness(t)
	c := h.start(context.Background(), Options{})

	c.send(frame.New(frame.CONNECT, frame.AcceptVersion, "2.0", "token", h.token("alice")))
	reply := c.recv()
	assert.Equal(t, frame.ERROR, reply.Command)
	assert.Equal(t, "unsupported protocol version", reply.Header.Get(frame.Message))
	assert.Error(t, c.result())
}

func TestSession_PerUserDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.start(ctx, Options{})
	require.Equal(t, frame.CONNECTED, alice.connect("Authorization", "Bearer "+h.token("alice")).Command)
	bob := h.start(ctx, Options{})
	require.Equal(t, frame.CONNECTED, bob.connect("token", h.token("bob")).Command)

	for _, c := range []*client{alice, bob} {
		c.send(frame.New(frame.SUBSCRIBE,
			frame.Id, "sub-queue",
			frame.Destination, "/user/queue/notifications",
			frame.Receipt, "r-1"))
		receipt := c.recv()
		require.Equal(t, frame.RECEIPT, receipt.Command)
		assert.Equal(t, "r-1", receipt.Header.Get(frame.ReceiptId))

		c.send(frame.New(frame.SUBSCRIBE, frame.Id, "sub-tasks", frame.Destination, broker.TopicTasks, frame.Receipt, "r-2"))
		require.Equal(t, frame.RECEIPT, c.recv().Command)
	}

	require.NoError(t, h.broker.PublishToUser(ctx, h.alice.UserID, broker.QueueNotifications, map[string]string{"type": "CREATED"}))

	msg := alice.recv()
	assert.Equal(t, frame.MESSAGE, msg.Command)
	assert.Equal(t, "/user/queue/notifications", msg.Header.Get(frame.Destination))
	assert.Equal(t, "sub-queue", msg.Header.Get(frame.Subscription))
	assert.Equal(t, "application/json", msg.Header.Get(frame.ContentType))
	assert.NotEmpty(t, msg.Header.Get(frame.MessageId))
	assert.JSONEq(t, `{"type":"CREATED"}`, string(msg.Body))
	bob.expectNoFrame()

	require.NoError(t, h.broker.Publish(ctx, broker.TopicTasks, map[string]string{"action": "UPDATED"}))
	for _, c := range []*client{alice, bob} {
		msg := c.recv()
		assert.Equal(t, broker.TopicTasks, msg.Header.Get(frame.Destination))
		assert.Equal(t, "sub-tasks", msg.Header.Get(frame.Subscription))
	}

	alice.send(frame.New(frame.UNSUBSCRIBE, frame.Id, "sub-tasks", frame.Receipt, "r-3"))
	require.Equal(t, frame.RECEIPT, alice.recv().Command)
	require.NoError(t, h.broker.Publish(ctx, broker.TopicTasks, map[string]string{"action": "DELETED"}))
	bob.recv()
	alice.expectNoFrame()

	alice.send(frame.New(frame.DISCONNECT, frame.Receipt, "bye"))
	assert.Equal(t, "bye", alice.recv().Header.Get(frame.ReceiptId))
	require.NoError(t, alice.result())

	topics, queues := h.broker.Stats()
	assert.Equal(t, 1, topics, "only bob's topic subscription remains")
	assert.Equal(t, 1, queues)
	assert.ElementsMatch(t, []string{"alice", "bob"}, h.security.connected)
}

func TestSession_RejectedFramesCloseTheSession(t *testing.T) {
	tests := []struct {
		name        string
		frame       *frame.Frame
		wantMessage string
	}{
		{"unknown destination", frame.New(frame.SUBSCRIBE, frame.Id, "s", frame.Destination, "/topic/secret"), "unknown destination"},
		{"missing destination", frame.New(frame.SUBSCRIBE, frame.Id, "s"), "missing destination header"},
		{"missing subscription id", frame.New(frame.SUBSCRIBE, frame.Destination, broker.TopicTasks), "missing id header"},
		{"send", frame.New(frame.SEND, frame.Destination, broker.TopicTasks), "sending is not supported"},
		{"second connect", frame.New(frame.CONNECT, frame.AcceptVersion, "1.2"), "already connected"},
		{"unknown command", frame.New(frame.BEGIN, frame.Transaction, "tx"), "unsupported command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := h.start(context.Background(), Options{})
			require.Equal(t, frame.CONNECTED, c.connect("token", h.token("alice")).Command)

			c.send(tt.frame)
			reply := c.recv()
			assert.Equal(t, frame.ERROR, reply.Command)
			assert.Equal(t, tt.wantMessage, reply.Header.Get(frame.Message))

			var perr *ProtocolError
			require.True(t, errors.As(c.result(), &perr))
			assert.True(t, c.conn.isClosed())

			topics, queues := h.broker.Stats()
			assert.Zero(t, topics+queues)
		})
	}
}

func TestSession_HeartbeatsAreIgnored(t *testing.T) {
	h := newHarness(t)
	c := h.start(context.Background(), Options{})
	require.Equal(t, frame.CONNECTED, c.connect("token", h.token("alice")).Command)

	c.conn.in <- []byte("\n")
	c.send(frame.New(frame.SUBSCRIBE, frame.Id, "s", frame.Destination, broker.TopicNotifications, frame.Receipt, "ok"))
	assert.Equal(t, frame.RECEIPT, c.recv().Command)
}

func TestSession_ContextCancelClosesSession(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	c := h.start(ctx, Options{})
	require.Equal(t, frame.CONNECTED, c.connect("token", h.token("alice")).Command)
	c.send(frame.New(frame.SUBSCRIBE, frame.Id, "s", frame.Destination, broker.TopicTasks, frame.Receipt, "ok"))
	c.recv()

	cancel()
	assert.NoError(t, c.result())
	assert.True(t, c.conn.isClosed())

	topics, _ := h.broker.Stats()
	assert.Zero(t, topics)
}

func TestSession_FullQueueDropsMessages(t *testing.T) {
	h := newHarness(t)
	s := NewSession(newPipeConn(), h.gate, h.broker, Options{QueueSize: 1, Logger: slog.New(slog.DiscardHandler)})

	msg := broker.Message{ID: "m", Destination: broker.TopicTasks, SubscriptionID: "s", ContentType: "application/json", Body: []byte(`{}`)}
	assert.True(t, s.enqueue(msg))
	assert.False(t, s.enqueue(msg), "second message does not fit")

	s.close()
	<-s.out
	assert.False(t, s.enqueue(msg), "closed sessions accept nothing")
}

func TestNegotiateVersion(t *testing.T) {
	tests := []struct {
		accept string
		want   string
		ok     bool
	}{
		{"", "1.0", true},
		{"1.0", "1.0", true},
		{"1.1,1.0", "1.1", true},
		{"1.0,1.1,1.2", "1.2", true},
		{"2.0", "", false},
	}
	for _, tt := range tests {
		got, ok := negotiateVersion(tt.accept)
		assert.Equal(t, tt.want, got, tt.accept)
		assert.Equal(t, tt.ok, ok, tt.accept)
	}
}

func TestTokenFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{"bearer", []string{"Authorization", "Bearer abc"}, "abc"},
		{"lower case header", []string{"authorization", "Bearer abc"}, "abc"},
		{"token fallback", []string{"token", "xyz"}, "xyz"},
		{"authorization wins", []string{"Authorization", "Bearer abc", "token", "xyz"}, "abc"},
		{"non bearer falls back", []string{"Authorization", "Basic abc", "token", "xyz"}, "xyz"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFromHeaders(frame.NewHeader(tt.headers...)))
		})
	}
}
