// Package main provides a CI-friendly WebSocket smoke test for the
// Social-app realtime gateway.
//
// It validates:
//   - handshake + bearer authentication for two clients
//   - user_status fanout when the second client comes online
//   - join + typing_status fanout to the other viewer
//   - send_message -> new_message delivery to the other participant
//   - read_messages -> messages_read delivery to both viewers
//   - user_status offline fanout when a client disconnects
//
// The server must be seeded so that both users are participants of the
// target conversation. Against the default in-memory store, start the
// server with SOCIAL_DEV_SEED_CONV=<conv> and SOCIAL_DEV_SEED_USERS=<a>,<b>
// matching the -conv/-user-a/-user-b flags; against Postgres, seed the
// participants table instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "github.com/vuducc/Social-app/contracts/chat/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

// event is the decoded superset of every outbound frame the server emits.
type event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsOnline       bool   `json:"is_online"`
	IsTyping       bool   `json:"is_typing"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	Data           struct {
		MessageID   string `json:"message_id"`
		SenderID    string `json:"sender_id"`
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
	} `json:"data"`
}

type smokeClient struct {
	name   string
	userID string
	conn   *websocket.Conn

	inbox chan event
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		tokenA  = flag.String("token-a", "", "Bearer token for client A (required)")
		tokenB  = flag.String("token-b", "", "Bearer token for client B (required)")
		userA   = flag.String("user-a", "", "Expected user id behind token A (required)")
		userB   = flag.String("user-b", "", "Expected user id behind token B (required)")
		convID  = flag.String("conv", "dev-room-1", "Conversation ID both users participate in")
		text    = flag.String("text", "hello social 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	for name, v := range map[string]string{
		"-token-a": *tokenA, "-token-b": *tokenB,
		"-user-a": *userA, "-user-b": *userB,
	} {
		if strings.TrimSpace(v) == "" {
			fatalf("missing required flag %s", name)
		}
	}

	root := context.Background()

	a := mustConnect(root, "A", *userA, *wsURL, *origin, *tokenA, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *userB, *wsURL, *origin, *tokenB, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.userID, b.userID, *origin)
	}

	// A came online before B, so A observes B's presence transition.
	online := a.mustReadUntilType(root, v1.TypeUserStatus, *timeout)
	if online.UserID != b.userID || !online.IsOnline {
		fatalf("presence: got user=%q online=%v, want user=%q online=true", online.UserID, online.IsOnline, b.userID)
	}

	mustJoin(root, a, *convID, *timeout)
	mustJoin(root, b, *convID, *timeout)

	// Typing: A starts typing, only B hears it.
	mustWriteEvent(root, a, v1.ClientEvent{Type: v1.TypeTyping, ConversationID: *convID, IsTyping: true}, *timeout)
	typing := b.mustReadUntilType(root, v1.TypeTypingStatus, *timeout)
	if typing.UserID != a.userID || !typing.IsTyping {
		fatalf("typing: got user=%q typing=%v, want user=%q typing=true", typing.UserID, typing.IsTyping, a.userID)
	}
	mustWriteEvent(root, a, v1.ClientEvent{Type: v1.TypeTyping, ConversationID: *convID, IsTyping: false}, *timeout)
	typing = b.mustReadUntilType(root, v1.TypeTypingStatus, *timeout)
	if typing.IsTyping {
		fatalf("typing: expected stop event, got typing=true")
	}

	// Message: A sends, B receives exactly the persisted payload.
	mustWriteEvent(root, a, v1.ClientEvent{Type: v1.TypeSendMessage, ConversationID: *convID, Content: *text}, *timeout)
	msg := b.mustReadUntilType(root, v1.TypeNewMessage, *timeout)
	if msg.ConversationID != *convID || msg.Data.SenderID != a.userID || msg.Data.Content != *text {
		fatalf("message: unexpected payload %+v", msg)
	}
	if strings.TrimSpace(msg.Data.MessageID) == "" {
		fatalf("message: missing message_id")
	}
	if *verbose {
		fmt.Printf("message delivered: id=%s\n", msg.Data.MessageID)
	}

	// Read receipts: B reads, both viewers are notified.
	mustWriteEvent(root, b, v1.ClientEvent{Type: v1.TypeReadMessages, ConversationID: *convID}, *timeout)
	for _, c := range []*smokeClient{a, b} {
		read := c.mustReadUntilType(root, v1.TypeMessagesRead, *timeout)
		if read.UserID != b.userID || read.ConversationID != *convID {
			fatalf("read (%s): unexpected payload %+v", c.name, read)
		}
	}

	// Presence: B disconnects, A observes the offline transition.
	closeWS(b.conn)
	offline := a.mustReadUntilType(root, v1.TypeUserStatus, *timeout)
	if offline.UserID != b.userID || offline.IsOnline {
		fatalf("presence: got user=%q online=%v, want user=%q online=false", offline.UserID, offline.IsOnline, b.userID)
	}

	fmt.Printf("OK: A=%s B=%s conv_id=%s message_id=%s\n", a.userID, b.userID, *convID, msg.Data.MessageID)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, userID, wsURL, origin, token string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:   name,
		userID: userID,
		conn:   conn,
		inbox:  make(chan event, 512),
		errCh:  make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var ev event
			if err := json.Unmarshal(data, &ev); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- ev:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

// mustReadUntilType discards frames until one of the wanted type arrives.
// An error event is always fatal: the scenario never provokes one.
func (c *smokeClient) mustReadUntilType(parent context.Context, want string, stepTimeout time.Duration) event {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q on %s", want, c.name)
		case err := <-c.errCh:
			fatalf("read loop (%s): %v", c.name, err)
		case ev, ok := <-c.inbox:
			if !ok {
				fatalf("inbox closed (%s) while waiting for %q", c.name, want)
			}
			if ev.Type == v1.TypeError {
				fatalf("server error (%s): code=%s message=%s", c.name, ev.Code, ev.Message)
			}
			if ev.Type == want {
				return ev
			}
		}
	}
}

func mustJoin(parent context.Context, c *smokeClient, convID string, stepTimeout time.Duration) {
	mustWriteEvent(parent, c, v1.ClientEvent{Type: v1.TypeJoinConversation, ConversationID: convID}, stepTimeout)
	// Join is silent on success; a brief settle keeps later fanout
	// assertions deterministic.
	time.Sleep(100 * time.Millisecond)
}

func mustWriteEvent(parent context.Context, c *smokeClient, ev v1.ClientEvent, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		fatalf("marshal %s event (%s): %v", ev.Type, c.name, err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write %s event (%s): %v", ev.Type, c.name, err)
	}
}

func closeWS(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
