package arena

import (
	"sync"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

type published struct {
	matchID string // empty for PublishToAll
	msg     protocol.Message
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *capturePublisher) PublishToMatch(matchID string, m protocol.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{matchID: matchID, msg: m})
	p.mu.Unlock()
}

func (p *capturePublisher) PublishToAll(m protocol.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{msg: m})
	p.mu.Unlock()
}

func (p *capturePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]published, len(p.msgs))
	copy(out, p.msgs)
	return out
}

func (p *capturePublisher) ofType(typ string) []protocol.Message {
	var out []protocol.Message
	for _, m := range p.all() {
		if m.msg.MessageType() == typ {
			out = append(out, m.msg)
		}
	}
	return out
}
