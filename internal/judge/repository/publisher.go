package repository

import (
	"context"
	"encoding/json"
	"time"

	"arbiter/internal/common/mq"
	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

const finalResultEventType = "judge.result.final"

// MQResultEventPublisher emits terminal results onto a message topic.
type MQResultEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQResultEventPublisher creates a publisher on the given topic.
func NewMQResultEventPublisher(producer mq.Producer, topic string) *MQResultEventPublisher {
	return &MQResultEventPublisher{producer: producer, topic: topic}
}

type finalResultEvent struct {
	Type      string            `json:"type"`
	Result    model.JudgeResult `json:"result"`
	CreatedAt int64             `json:"created_at"`
}

// PublishFinal emits one event per terminal result, keyed by submission
// id so consumers see per-submission ordering.
func (p *MQResultEventPublisher) PublishFinal(ctx context.Context, res model.JudgeResult) error {
	body, err := json.Marshal(finalResultEvent{
		Type:      finalResultEventType,
		Result:    res,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "encode final result event for submission %s", res.SubmissionID)
	}
	msg := mq.NewMessage(body)
	msg.ID = res.SubmissionID
	msg.SetHeader("event-type", finalResultEventType)
	return p.producer.Publish(ctx, p.topic, msg)
}
