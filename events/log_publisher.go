package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher escreve os eventos no log; usado quando não há NATS configurado.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) PublishFeed(_ context.Context, evt FeedEvent) error {
	p.Log.Info("feed event",
		zap.String("owner", evt.Owner.String()),
		zap.String("project", evt.ProjectID),
		zap.String("color", evt.Color),
		zap.String("markdown", evt.Markdown))
	return nil
}

func (p LogPublisher) PublishRuleExecution(_ context.Context, req RuleExecution) error {
	p.Log.Info("escalation rule execution requested",
		zap.String("rule", req.RuleID),
		zap.String("policy", req.PolicyID),
		zap.String("executionLog", req.ExecutionLogID),
		zap.String("triggeredBy", req.TriggeredBy.String()))
	return nil
}
