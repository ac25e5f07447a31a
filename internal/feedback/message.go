package feedback

// MessageType tags every message crossing the boundary between the
// orchestrator and a presentation surface.
type MessageType string

const (
	MsgStart   MessageType = "LULO_START"
	MsgEnd     MessageType = "LULO_END"
	MsgStatus  MessageType = "LULO_STATUS"
	MsgRipple  MessageType = "LULO_RIPPLE"
	MsgNotify  MessageType = "LULO_NOTIFY"
	MsgGuide   MessageType = "GUIDE"
	MsgPreview MessageType = "PREVIEW"
)

// Message is the typed payload delivered to a surface. Only the
// fields relevant to the message type are set.
type Message struct {
	Type   MessageType `json:"type"`
	Text   string      `json:"text,omitempty"`
	Level  string      `json:"level,omitempty"`
	X      float64     `json:"x,omitempty"`
	Y      float64     `json:"y,omitempty"`
	Target string      `json:"target,omitempty"`
}
