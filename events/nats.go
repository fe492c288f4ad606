package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	SubjectFeed          = "incidents.feed"
	SubjectRuleExecution = "oncall.rule.execute"
)

// NATSPublisher publica eventos de feed e pedidos de execução de regra.
type NATSPublisher struct {
	Conn         *nats.Conn
	FeedSubject  string
	RulesSubject string
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{Conn: conn, FeedSubject: SubjectFeed, RulesSubject: SubjectRuleExecution}
}

func (p *NATSPublisher) publish(subject string, v any) error {
	if p.Conn == nil {
		return fmt.Errorf("nats connection not configured")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", subject, err)
	}
	return p.Conn.Publish(subject, data)
}

func (p *NATSPublisher) PublishFeed(_ context.Context, evt FeedEvent) error {
	return p.publish(p.FeedSubject+"."+string(evt.Owner.Kind), evt)
}

// PublishRuleExecution espera o flush para que a regra só conte como executada
// depois que o servidor recebeu o pedido.
func (p *NATSPublisher) PublishRuleExecution(ctx context.Context, req RuleExecution) error {
	if err := p.publish(p.RulesSubject, req); err != nil {
		return err
	}
	return p.Conn.FlushWithContext(ctx)
}
