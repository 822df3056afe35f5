package transfer

import "github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"

// Channel is the slice of an open peer data channel the engine needs:
// ordered delivery of text control frames and binary chunk frames.
type Channel interface {
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
}

func sendControl(ch Channel, msg protocol.ControlMessage) error {
	if ch == nil {
		return ErrChannelNotOpen
	}
	data, err := protocol.EncodeControl(msg)
	if err != nil {
		return NewError("encode control", err)
	}
	return ch.SendText(string(data))
}

func sendFileInfo(ch Channel, name string, size int64) error {
	return sendControl(ch, protocol.ControlMessage{
		Type: protocol.ControlTypeFileInfo,
		Name: name,
		Size: size,
	})
}

func sendSimple(ch Channel, msgType string) error {
	return sendControl(ch, protocol.ControlMessage{Type: msgType})
}
