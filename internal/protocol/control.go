package protocol

import "encoding/json"

// Transfer control messages travel as JSON text frames on an open peer
// data channel, interleaved with raw binary chunk frames. Text and
// binary are distinguished by the frame type, not by separate channels,
// so a receiver sees them in send order.
const (
	ControlTypeFileInfo     = "file-info"
	ControlTypeFileAccept   = "file-accept"
	ControlTypeFileReject   = "file-reject"
	ControlTypeFileComplete = "file-complete"
	ControlTypeFileCancel   = "file-cancel"
)

// ControlMessage is a transfer control frame. Name and Size are only
// populated for file-info.
type ControlMessage struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// EncodeControl marshals a control message for a text frame.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeControl parses a text frame into a control message. Unknown
// types are returned as-is; the caller treats them as a no-op.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, err
	}
	return msg, nil
}
