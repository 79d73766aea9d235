package events

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbook/studio-admin/pkg/logging"
)

type stubSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (s *stubSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSPublisherSendsEnvelope(t *testing.T) {
	client := &stubSQS{}
	pub := NewSQSPublisher(client, "http://localhost:4566/000000000000/appointments")
	entry := OutboxEntry{ID: uuid.New(), Type: TypeAppointmentBooked, Payload: []byte(`{"event_type":"appointment.booked.v1"}`)}

	require.NoError(t, pub.Handle(context.Background(), entry))
	require.NotNil(t, client.input)
	assert.Equal(t, "http://localhost:4566/000000000000/appointments", aws.ToString(client.input.QueueUrl))
	assert.JSONEq(t, string(entry.Payload), aws.ToString(client.input.MessageBody))
	assert.Equal(t, TypeAppointmentBooked, aws.ToString(client.input.MessageAttributes["event_type"].StringValue))
}

func TestSQSPublisherWrapsError(t *testing.T) {
	pub := NewSQSPublisher(&stubSQS{err: errors.New("throttled")}, "queue")
	err := pub.Handle(context.Background(), OutboxEntry{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

type stubWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &stubWriter{}
	pub := newKafkaPublisherWithWriter(w)
	entry := OutboxEntry{
		ID:        uuid.New(),
		Aggregate: AppointmentAggregate("appt-9"),
		Type:      TypeAppointmentRescheduled,
		Payload:   []byte(`{}`),
	}

	require.NoError(t, pub.Handle(context.Background(), entry))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TypeAppointmentRescheduled, msg.Topic)
	assert.Equal(t, "appointment:appt-9", string(msg.Key))

	carrier := &kafkaHeaderCarrier{headers: msg.Headers}
	assert.Equal(t, entry.ID.String(), carrier.Get("event_id"))
	assert.Equal(t, TypeAppointmentRescheduled, carrier.Get("event_type"))

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaHeaderCarrierOverwrites(t *testing.T) {
	c := &kafkaHeaderCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	assert.Equal(t, []string{"traceparent"}, c.Keys())
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Empty(t, c.Get("missing"))
}

func TestLogPublisherNeverFails(t *testing.T) {
	pub := NewLogPublisher(logging.New("error"))
	assert.NoError(t, pub.Handle(context.Background(), OutboxEntry{ID: uuid.New(), Type: TypeAppointmentBooked}))
}
