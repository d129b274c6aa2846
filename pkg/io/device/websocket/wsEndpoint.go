// Package websocket adapts a gorilla websocket connection into both a
// capture device (binary audio fragments and level samples flowing in)
// and a playback sink (synthesized chunk audio flowing out, acked per
// sequence number).
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/device"
	"github.com/a4sr3s/voxpipe/pkg/playback"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errHalted = errors.New("playback halted")

type wsEndpoint struct {
	id         uuid.UUID
	conn       *websocket.Conn
	caps       device.Capabilities
	logger     *Logger.Logger
	lastActive time.Time

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	mu        sync.Mutex
	onCommand func(device.ControlMessage)
	mimes     map[string]bool
	stream    *wsStream
	acks      map[int]chan struct{}
	seq       int
	halt      chan struct{}
	closed    bool
}

// Endpoint is a connected client device. It satisfies capture.Device
// and playback.Sink for the duration of the connection.
type Endpoint interface {
	capture.Device
	playback.Sink
	ID() device.EndpointID
	Caps() device.Capabilities
	// Run pumps inbound messages until the connection drops. It must
	// be running for Open, Play and level readings to make progress.
	Run()
	// SendEvent pushes a server-side control message to the client,
	// e.g. a transcript or reply text.
	SendEvent(msg device.ControlMessage) error
	// OnCommand registers the callback for session commands the
	// endpoint itself does not consume (listen_start and friends).
	// Must be set before Run. The callback must not block.
	OnCommand(fn func(device.ControlMessage))
	IsAlive() bool
	Close() error
}

func New(conn *websocket.Conn, caps device.Capabilities, logger *Logger.Logger) Endpoint {
	return &wsEndpoint{
		id:         uuid.New(),
		conn:       conn,
		caps:       caps,
		logger:     logger,
		lastActive: time.Now(),
		mimes:      make(map[string]bool),
		acks:       make(map[int]chan struct{}),
		halt:       make(chan struct{}),
	}
}

// ID implements Endpoint.
func (w *wsEndpoint) ID() device.EndpointID {
	return device.EndpointID(w.id)
}

// Caps implements Endpoint.
func (w *wsEndpoint) Caps() device.Capabilities {
	return w.caps
}

// IsAlive implements Endpoint.
func (w *wsEndpoint) IsAlive() bool {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, []byte("ping")) == nil
}

// Close implements Endpoint.
func (w *wsEndpoint) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	w.failStream(errors.New("endpoint closed"))
	w.haltPlayback()
	return w.conn.Close()
}

// Supports implements capture.Device using the mime types the client
// announced in its hello message.
func (w *wsEndpoint) Supports(mime string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mimes[mime]
}

// Open implements capture.Device. It asks the client to start its
// recorder and waits for the ack, the denial, or ctx.
func (w *wsEndpoint) Open(ctx context.Context, mime string) (capture.Stream, error) {
	if !w.caps.AudioSource {
		return nil, errors.New("endpoint has no audio source")
	}
	s := &wsStream{
		ep:        w,
		mime:      mime,
		fragments: make(chan []byte, 32),
		opened:    make(chan error, 1),
		analyser:  &levelMeter{},
	}
	w.mu.Lock()
	if w.stream != nil {
		w.mu.Unlock()
		return nil, errors.New("capture already open")
	}
	w.stream = s
	w.mu.Unlock()

	if err := w.writeControl(device.ControlMessage{Type: device.CtrlRecordStart, Mime: mime}); err != nil {
		w.clearStream(s)
		return nil, err
	}
	select {
	case err := <-s.opened:
		if err != nil {
			w.clearStream(s)
			return nil, err
		}
		return s, nil
	case <-ctx.Done():
		w.clearStream(s)
		return nil, ctx.Err()
	}
}

// Prepare implements playback.Sink. The audio is not sent until Play.
func (w *wsEndpoint) Prepare(audio []byte) (playback.Playable, error) {
	if !w.caps.AudioSink {
		return nil, errors.New("endpoint has no audio sink")
	}
	w.mu.Lock()
	w.seq++
	seq := w.seq
	ack := make(chan struct{})
	w.acks[seq] = ack
	halt := w.halt
	w.mu.Unlock()
	return &wsPlayable{ep: w, seq: seq, audio: audio, ack: ack, halt: halt}, nil
}

// Stop implements playback.Sink: tells the client to discard whatever
// is sounding and unblocks every pending Play.
func (w *wsEndpoint) Stop() {
	w.haltPlayback()
	if err := w.writeControl(device.ControlMessage{Type: device.CtrlHalt}); err != nil {
		w.logger.Warnf("ws %s: halt not delivered: %v", w.ID(), err)
	}
}

// haltPlayback unblocks every pending Play and resets the halt channel
// for the next sequence.
func (w *wsEndpoint) haltPlayback() {
	w.mu.Lock()
	close(w.halt)
	w.halt = make(chan struct{})
	w.mu.Unlock()
}

// Run implements Endpoint.
func (w *wsEndpoint) Run() {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.failStream(err)
			w.haltPlayback()
			return
		}
		w.mu.Lock()
		w.lastActive = time.Now()
		w.mu.Unlock()

		switch msgType {
		case websocket.BinaryMessage:
			w.deliverFragment(data)
		case websocket.TextMessage:
			var msg device.ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				w.logger.Warnf("ws %s: bad control message: %v", w.ID(), err)
				continue
			}
			w.handleControl(msg)
		}
	}
}

func (w *wsEndpoint) handleControl(msg device.ControlMessage) {
	switch msg.Type {
	case device.CtrlHello:
		w.mu.Lock()
		for _, m := range msg.Mimes {
			w.mimes[m] = true
		}
		w.mu.Unlock()
	case device.CtrlRecordAck:
		if s := w.currentStream(); s != nil {
			if msg.Mime != "" {
				s.setMime(msg.Mime)
			}
			s.notifyOpened(nil)
		}
	case device.CtrlRecordDenied:
		if s := w.currentStream(); s != nil {
			s.notifyOpened(capture.ErrPermissionDenied)
		}
	case device.CtrlRecordEnd:
		if s := w.currentStream(); s != nil {
			s.finish()
		}
	case device.CtrlLevel:
		if s := w.currentStream(); s != nil {
			s.analyser.set(msg.Value)
		}
	case device.CtrlPlayed:
		w.mu.Lock()
		ack, ok := w.acks[msg.Seq]
		delete(w.acks, msg.Seq)
		w.mu.Unlock()
		if ok {
			close(ack)
		}
	default:
		w.mu.Lock()
		fn := w.onCommand
		w.mu.Unlock()
		if fn != nil {
			fn(msg)
			return
		}
		w.logger.Warnf("ws %s: unknown control type %q", w.ID(), msg.Type)
	}
}

// OnCommand implements Endpoint.
func (w *wsEndpoint) OnCommand(fn func(device.ControlMessage)) {
	w.mu.Lock()
	w.onCommand = fn
	w.mu.Unlock()
}

func (w *wsEndpoint) deliverFragment(data []byte) {
	s := w.currentStream()
	if s == nil {
		return
	}
	buf := append([]byte(nil), data...)
	select {
	case s.fragments <- buf:
	default:
		w.logger.Warnf("ws %s: fragment buffer full, dropping %d bytes", w.ID(), len(data))
	}
}

func (w *wsEndpoint) currentStream() *wsStream {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream
}

func (w *wsEndpoint) clearStream(s *wsStream) {
	w.mu.Lock()
	if w.stream == s {
		w.stream = nil
	}
	w.mu.Unlock()
}

// failStream tears the active stream down with err, e.g. when the
// connection drops mid-recording.
func (w *wsEndpoint) failStream(err error) {
	s := w.currentStream()
	if s == nil {
		return
	}
	s.fail(err)
	s.notifyOpened(err)
}

// SendEvent implements Endpoint.
func (w *wsEndpoint) SendEvent(msg device.ControlMessage) error {
	return w.writeControl(msg)
}

func (w *wsEndpoint) writeControl(msg device.ControlMessage) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(msg)
}

func (w *wsEndpoint) writeBinary(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}
