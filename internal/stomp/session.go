// internal/stomp/session.go
package stomp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/models"
)

// DefaultQueueSize bounds the outbound MESSAGE frames buffered per session
const DefaultQueueSize = 256

// Conn is a message-oriented transport. Every message holds zero or more STOMP frames.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Subscriber is the subscription side of the broker
type Subscriber interface {
	Subscribe(sub *broker.Subscription) error
	Unsubscribe(sessionID, subscriptionID string)
	RemoveSession(sessionID string)
}

// SecurityEvents records session authentication outcomes
type SecurityEvents interface {
	LogChannelConnected(ctx context.Context, username, sessionID string)
	LogChannelRejected(ctx context.Context, sessionID, reason string)
}

var userNotifications = broker.UserDestination(broker.QueueNotifications)

// AllowedDestinations are the destinations a client may subscribe to
var AllowedDestinations = map[string]bool{
	broker.TopicTasks:         true,
	broker.TopicNotifications: true,
	userNotifications:         true,
}

var supportedVersions = []string{"1.2", "1.1", "1.0"}

// SupportedVersions lists the accepted protocol versions, newest first
func SupportedVersions() []string {
	return append([]string(nil), supportedVersions...)
}

// ProtocolError is reported to the client in an ERROR frame before the connection closes
type ProtocolError struct {
	Message string
	Detail  string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

var errDisconnected = errors.New("client disconnected")

// Options tune a session
type Options struct {
	QueueSize int
	Security  SecurityEvents
	Logger    *slog.Logger
}

// Session is one client connection
type Session struct {
	id       string
	conn     Conn
	gate     *Gate
	broker   Subscriber
	security SecurityEvents
	logger   *slog.Logger

	principal *models.Principal
	version   string

	writeMu   sync.Mutex
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session over conn
func NewSession(conn Conn, gate *Gate, b Subscriber, opts Options) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		conn:     conn,
		gate:     gate,
		broker:   b,
		security: opts.Security,
		logger:   opts.Logger.With("component", "stomp", "session", id),
		out:      make(chan []byte, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Principal returns the authenticated principal, nil before CONNECT succeeds
func (s *Session) Principal() *models.Principal {
	return s.principal
}

// Serve processes frames until the client disconnects, a protocol error occurs or ctx is done.
// A DISCONNECT or a closed transport returns nil.
func (s *Session) Serve(ctx context.Context) error {
	defer s.close()

	go s.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			s.logger.Debug("transport closed", "error", err)
			return nil
		}

		if err := s.handleMessage(ctx, data); err != nil {
			if errors.Is(err, errDisconnected) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, data []byte) error {
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return s.fail(nil, &ProtocolError{Message: "malformed frame", Detail: err.Error()})
		}
		// heart-beat
		if f == nil {
			continue
		}
		if err := s.handleFrame(ctx, f); err != nil {
			return err
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, f *frame.Frame) error {
	if s.principal == nil {
		if f.Command != frame.CONNECT && f.Command != frame.STOMP {
			return s.fail(f, &ProtocolError{Message: "not connected", Detail: f.Command + " received before CONNECT"})
		}
		return s.connect(ctx, f)
	}

	switch f.Command {
	case frame.SUBSCRIBE:
		return s.subscribe(f)
	case frame.UNSUBSCRIBE:
		return s.unsubscribe(f)
	case frame.DISCONNECT:
		if err := s.receipt(f); err != nil {
			return err
		}
		return errDisconnected
	case frame.ACK, frame.NACK:
		// subscriptions are auto-acknowledged
		return nil
	case frame.SEND:
		return s.fail(f, &ProtocolError{Message: "sending is not supported", Detail: f.Header.Get(frame.Destination)})
	case frame.CONNECT, frame.STOMP:
		return s.fail(f, &ProtocolError{Message: "already connected"})
	default:
		return s.fail(f, &ProtocolError{Message: "unsupported command", Detail: f.Command})
	}
}

func (s *Session) connect(ctx context.Context, f *frame.Frame) error {
	version, ok := negotiateVersion(f.Header.Get(frame.AcceptVersion))
	if !ok {
		return s.fail(f, &ProtocolError{Message: "unsupported protocol version", Detail: "supported versions are " + strings.Join(supportedVersions, ",")})
	}

	principal, err := s.gate.Authenticate(ctx, f)
	if err != nil {
		s.logger.Info("connect rejected", "error", err)
		if s.security != nil {
			s.security.LogChannelRejected(ctx, s.id, err.Error())
		}
		return s.fail(f, &ProtocolError{Message: "authentication failed", Detail: err.Error()})
	}

	s.principal = principal
	s.version = version
	s.logger.Info("session connected", "user", principal.Username, "version", version)
	if s.security != nil {
		s.security.LogChannelConnected(ctx, principal.Username, s.id)
	}

	connected := frame.New(frame.CONNECTED,
		frame.Version, version,
		frame.HeartBeat, "0,0",
		frame.Session, s.id,
		frame.Server, "taskboard",
		"user-name", principal.Username,
	)
	return s.write(connected)
}

func (s *Session) subscribe(f *frame.Frame) error {
	destination := f.Header.Get(frame.Destination)
	if destination == "" {
		return s.fail(f, &ProtocolError{Message: "missing destination header"})
	}
	if !AllowedDestinations[destination] {
		return s.fail(f, &ProtocolError{Message: "unknown destination", Detail: destination})
	}

	subID := f.Header.Get(frame.Id)
	if subID == "" {
		if s.version != "1.0" {
			return s.fail(f, &ProtocolError{Message: "missing id header"})
		}
		subID = destination
	}

	err := s.broker.Subscribe(&broker.Subscription{
		SessionID:   s.id,
		ID:          subID,
		Destination: destination,
		UserID:      s.principal.UserID,
		Deliver:     s.enqueue,
	})
	if err != nil {
		return s.fail(f, &ProtocolError{Message: "subscription rejected", Detail: err.Error()})
	}
	return s.receipt(f)
}

func (s *Session) unsubscribe(f *frame.Frame) error {
	subID := f.Header.Get(frame.Id)
	if subID == "" {
		subID = f.Header.Get(frame.Destination)
	}
	if subID == "" {
		return s.fail(f, &ProtocolError{Message: "missing id header"})
	}
	s.broker.Unsubscribe(s.id, subID)
	return s.receipt(f)
}

func (s *Session) receipt(f *frame.Frame) error {
	id, ok := f.Header.Contains(frame.Receipt)
	if !ok {
		return nil
	}
	return s.write(frame.New(frame.RECEIPT, frame.ReceiptId, id))
}

// fail sends an ERROR frame and reports the protocol error so the caller closes the session
func (s *Session) fail(cause *frame.Frame, perr *ProtocolError) error {
	errFrame := frame.New(frame.ERROR, frame.Message, perr.Message, frame.ContentType, "text/plain")
	if cause != nil {
		if id, ok := cause.Header.Contains(frame.Receipt); ok {
			errFrame.Header.Add(frame.ReceiptId, id)
		}
	}
	if perr.Detail != "" {
		errFrame.Body = []byte(perr.Detail)
		errFrame.Header.Add(frame.ContentLength, strconv.Itoa(len(errFrame.Body)))
	}

	if err := s.write(errFrame); err != nil {
		s.logger.Debug("failed to write ERROR frame", "error", err)
	}
	return perr
}

// enqueue is the broker delivery callback. It never blocks.
func (s *Session) enqueue(msg broker.Message) bool {
	f := frame.New(frame.MESSAGE,
		frame.Destination, msg.Destination,
		frame.MessageId, msg.ID,
		frame.Subscription, msg.SubscriptionID,
		frame.ContentType, msg.ContentType,
		frame.ContentLength, strconv.Itoa(len(msg.Body)),
	)
	f.Body = msg.Body

	data, err := encode(f)
	if err != nil {
		s.logger.Warn("failed to encode message", "error", err)
		return false
	}

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- data:
		return true
	default:
		s.logger.Warn("outbound queue full, dropping message", "destination", msg.Destination)
		return false
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case data := <-s.out:
			if err := s.writeRaw(data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) write(f *frame.Frame) error {
	data, err := encode(f)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

func (s *Session) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(data)
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.broker.RemoveSession(s.id)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close transport", "error", err)
		}
		s.logger.Debug("session closed")
	})
}

func encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// negotiateVersion picks the highest version both sides support. A missing accept-version means 1.0.
func negotiateVersion(accept string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return "1.0", true
	}
	offered := map[string]bool{}
	for _, v := range strings.Split(accept, ",") {
		offered[strings.TrimSpace(v)] = true
	}
	for _, v := range supportedVersions {
		if offered[v] {
			return v, true
		}
	}
	return "", false
}
