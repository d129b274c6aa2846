package device

import (
	"github.com/google/uuid"
)

type Transport string

const (
	TransportWS Transport = "ws"
)

// ControlType tags the JSON control messages exchanged with a client
// device alongside the binary audio frames.
type ControlType string

const (
	// client -> server
	CtrlHello        ControlType = "hello"         // announces supported recording mime types
	CtrlRecordAck    ControlType = "record_ack"    // recorder started
	CtrlRecordDenied ControlType = "record_denied" // mic permission refused
	CtrlRecordEnd    ControlType = "record_end"    // recorder flushed its last fragment
	CtrlLevel        ControlType = "level"         // amplitude sample, 0-255
	CtrlPlayed       ControlType = "played"        // playback of a sequenced chunk finished
	CtrlListenStart  ControlType = "listen_start"  // user asked to start recording
	CtrlListenStop   ControlType = "listen_stop"   // user asked to stop and process
	CtrlSpeechStop   ControlType = "speech_stop"   // user asked to stop the spoken reply

	// server -> client
	CtrlRecordStart ControlType = "record_start"
	CtrlRecordStop  ControlType = "record_stop"
	CtrlPlay        ControlType = "play" // next binary frame is chunk audio
	CtrlHalt        ControlType = "halt" // discard queued audio, stop sounding
	CtrlTranscript  ControlType = "transcript"
	CtrlReply       ControlType = "reply"
	CtrlError       ControlType = "error"
)

type ControlMessage struct {
	Type   ControlType `json:"type"`
	Mime   string      `json:"mime,omitempty"`
	Mimes  []string    `json:"mimes,omitempty"`
	Seq    int         `json:"seq,omitempty"`
	Value  float64     `json:"value,omitempty"`
	Text   string      `json:"text,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

type Capabilities struct {
	AudioSource bool // can record and stream audio in
	AudioSink   bool // can play audio out
}

type EndpointID uuid.UUID

func (id EndpointID) String() string {
	return uuid.UUID(id).String()
}
