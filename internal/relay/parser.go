package relay

import (
	"bytes"
	"log/slog"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/internal/log"
	"github.com/gimbalkit/gimbal/spnav"
)

// Parser reassembles daemon-protocol packets out of a relayed byte
// stream and logs each decoded event at trace level. Copy chunks do not
// respect packet boundaries, so partial packets are buffered across
// calls.
type Parser struct {
	logger *slog.Logger
	buf    bytes.Buffer
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse consumes one copied chunk.
func (p *Parser) Parse(data []byte) {
	p.buf.Write(data)

	for p.buf.Len() >= spnav.PacketSize {
		pkt := p.buf.Next(spnav.PacketSize)
		ev, err := spnav.DecodeEvent(pkt)
		if err != nil {
			log.Trace(p.logger, "relay: undecodable packet", "error", err)
			continue
		}
		switch e := ev.(type) {
		case gimbal.MotionEvent:
			log.Trace(p.logger, "relay: motion",
				"translation", e.Translation, "rotation", e.Rotation, "period", e.Period)
		case gimbal.ButtonEvent:
			log.Trace(p.logger, "relay: button", "button", e.Button, "pressed", e.Pressed)
		}
	}
}
