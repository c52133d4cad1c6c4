package stream

import (
	"encoding/json"
)

// MessageKind is the outbound message type within a turn
type MessageKind string

const (
	KindPartial      MessageKind = "partial"
	KindFinal        MessageKind = "final"
	KindError        MessageKind = "error"
	KindTurnComplete MessageKind = "turn_complete"
)

// TurnMessage is the only contract a transport must honour.
// Per turn: partial* (final|error) turn_complete.
type TurnMessage struct {
	Kind MessageKind
	Text string
}

func PartialMessage(text string) TurnMessage { return TurnMessage{Kind: KindPartial, Text: text} }
func FinalMessage(text string) TurnMessage   { return TurnMessage{Kind: KindFinal, Text: text} }
func ErrorMessage(text string) TurnMessage   { return TurnMessage{Kind: KindError, Text: text} }
func TurnComplete() TurnMessage              { return TurnMessage{Kind: KindTurnComplete} }

// IsTerminal reports whether m ends the content part of a turn
func (m TurnMessage) IsTerminal() bool {
	return m.Kind == KindFinal || m.Kind == KindError
}

// wireMessage is the JSON frame sent to clients
type wireMessage struct {
	Message      string `json:"message,omitempty"`
	Partial      bool   `json:"partial,omitempty"`
	Final        bool   `json:"final,omitempty"`
	Error        bool   `json:"error,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// MarshalJSON renders the wire frame. Error turns are sent as final frames
// with the error flag so clients that only know final still render them.
func (m TurnMessage) MarshalJSON() ([]byte, error) {
	w := wireMessage{Message: m.Text}
	switch m.Kind {
	case KindPartial:
		w.Partial = true
	case KindFinal:
		w.Final = true
	case KindError:
		w.Final = true
		w.Error = true
	case KindTurnComplete:
		w.TurnComplete = true
		w.Message = ""
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses a wire frame back into a TurnMessage
func (m *TurnMessage) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.Text = w.Message
	switch {
	case w.TurnComplete:
		m.Kind = KindTurnComplete
	case w.Error:
		m.Kind = KindError
	case w.Final:
		m.Kind = KindFinal
	default:
		m.Kind = KindPartial
	}
	return nil
}

// WelcomeText greets a new connection and shows the full-plan request form
const WelcomeText = "สวัสดีค่ะ! ฉันคือผู้ช่วยวางแผนการเดินทางของคุณ\n\n" +
	"คุณสามารถพิมพ์ข้อความในรูปแบบนี้:\n\n" +
	"ช่วยวางแผนการเดินทางท่องเที่ยวแบบละเอียดที่สุด ตามเงื่อนไขต่อไปนี้ :\n" +
	"- ต้นทาง: กรุงเทพ\n" +
	"- ปลายทาง: เชียงใหม่\n" +
	"- ช่วงเวลาเดินทาง: วันที่: 2025-05-17 ถึงวันที่ 2025-05-22\n" +
	"- งบประมาณรวม: ไม่เกิน 20,000 บาท\n\n" +
	"หรือคุณสามารถถามเกี่ยวกับ:\n" +
	"- ร้านอาหารแนะนำในจังหวัดต่างๆ\n" +
	"- ที่พักราคาประหยัดหรือโรงแรมที่น่าสนใจ\n" +
	"- สถานที่ท่องเที่ยวยอดนิยม\n" +
	"- การเดินทางระหว่างจังหวัด"

// Welcome is the frame sent once when a connection opens. It is not part of
// a turn and carries neither partial nor final.
type Welcome struct {
	Message string `json:"message"`
}

// ValidateTurn checks a message sequence against the turn grammar
// partial* (final|error) turn_complete.
func ValidateTurn(msgs []TurnMessage) bool {
	i := 0
	for i < len(msgs) && msgs[i].Kind == KindPartial {
		i++
	}
	if i >= len(msgs) || !msgs[i].IsTerminal() {
		return false
	}
	i++
	return i == len(msgs)-1 && msgs[i].Kind == KindTurnComplete
}
