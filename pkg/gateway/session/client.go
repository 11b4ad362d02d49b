package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amparo-ai/amparo/pkg/gateway/protocol"
)

// clientLink is one attached websocket client. The session survives the
// client; dropping the link never ends the conversation.
type clientLink struct {
	conn     *websocket.Conn
	priority chan []byte
	normal   chan []byte
	gone     chan struct{}
	goneOnce sync.Once
}

func (l *clientLink) markGone() {
	l.goneOnce.Do(func() { close(l.gone) })
}

// AttachClient binds a websocket connection to the session, replacing any
// previous client. It starts the writer and read loop and returns
// immediately.
func (s *Session) AttachClient(conn *websocket.Conn) error {
	if conn == nil {
		return fmt.Errorf("client connection is required")
	}
	switch s.Status() {
	case StatusEnded, StatusError:
		return fmt.Errorf("session %s is not active", s.id)
	}

	link := &clientLink{
		conn:     conn,
		priority: make(chan []byte, 8),
		normal:   make(chan []byte, s.cfg.OutboundQueueSize),
		gone:     make(chan struct{}),
	}

	s.mu.Lock()
	old := s.client
	s.client = link
	s.mu.Unlock()
	if old != nil {
		old.markGone()
		_ = old.conn.Close()
	}

	if s.cfg.MaxJSONMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	go s.clientWriteLoop(link)
	go s.clientReadLoop(link)

	s.sendToClient(protocol.NewSessionJoined(s.id, string(s.Status())), true)
	s.logger.Info("client attached")
	return nil
}

func (s *Session) detachClient() {
	s.mu.Lock()
	link := s.client
	s.client = nil
	s.mu.Unlock()
	if link != nil {
		link.markGone()
		_ = link.conn.Close()
	}
}

// dropClient removes the link only if it is still the current one; a
// replacement client stays attached.
func (s *Session) dropClient(link *clientLink) {
	link.markGone()
	_ = link.conn.Close()
	s.mu.Lock()
	if s.client == link {
		s.client = nil
	}
	s.mu.Unlock()
}

func (s *Session) clientReadLoop(link *clientLink) {
	defer s.dropClient(link)

	for {
		_, data, err := link.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client read failed", "error", err)
			}
			return
		}

		msg, decErr := protocol.DecodeClientMessage(data)
		if decErr != nil {
			s.sendToClient(protocol.NewError("bad_request", decErr.Error(), false), true)
			continue
		}

		switch m := msg.(type) {
		case protocol.ClientAudioChunk:
			// Straight through to the backend, no actor hop. Ordering holds
			// because this loop is the only audio producer.
			if err := s.backend.AppendAudio(m.AudioB64); err != nil {
				s.logger.Error("failed to forward audio chunk", "error", err)
				s.sendToClient(protocol.NewError("backend_unavailable", "failed to forward audio", false), true)
			}
		case protocol.ClientCommitAudio:
			if err := s.backend.CommitAudio(); err != nil {
				s.logger.Error("failed to commit audio", "error", err)
				s.sendToClient(protocol.NewError("backend_unavailable", "failed to commit audio", false), true)
				continue
			}
			if err := s.backend.CreateResponse(""); err != nil {
				s.logger.Error("failed to request response", "error", err)
			}
		case protocol.ClientJoinSession:
			// Already joined; re-acknowledge so reconnect logic stays simple.
			s.sendToClient(protocol.NewSessionJoined(s.id, string(s.Status())), true)
		}
	}
}

// clientWriteLoop drains the two outbound queues. Priority frames (status,
// errors, join acks) preempt queued audio and transcripts.
func (s *Session) clientWriteLoop(link *clientLink) {
	defer link.markGone()

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	writeFrame := func(payload []byte) error {
		deadline := time.Now().Add(s.cfg.WriteTimeout)
		if err := link.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return link.conn.WriteMessage(websocket.TextMessage, payload)
	}

	for {
		select {
		case <-s.ctx.Done():
			s.flushPriority(link, writeFrame)
			_ = link.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.cfg.WriteTimeout))
			return
		case <-link.gone:
			return
		default:
		}

		// Hard priority: drain it before touching the normal queue.
		select {
		case payload := <-link.priority:
			if err := writeFrame(payload); err != nil {
				s.logger.Debug("client write failed", "error", err)
				return
			}
			continue
		default:
		}

		select {
		case <-s.ctx.Done():
			s.flushPriority(link, writeFrame)
			_ = link.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.cfg.WriteTimeout))
			return
		case <-link.gone:
			return
		case <-pingTicker.C:
			if err := link.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		case payload := <-link.priority:
			if err := writeFrame(payload); err != nil {
				s.logger.Debug("client write failed", "error", err)
				return
			}
		case payload := <-link.normal:
			if err := writeFrame(payload); err != nil {
				s.logger.Debug("client write failed", "error", err)
				return
			}
		}
	}
}

func (s *Session) flushPriority(link *clientLink, writeFrame func([]byte) error) {
	for i := 0; i < cap(link.priority); i++ {
		select {
		case payload := <-link.priority:
			if writeFrame(payload) != nil {
				return
			}
		default:
			return
		}
	}
}
