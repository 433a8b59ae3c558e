//go:build integration

package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"purchasegate/internal/notification"
	"purchasegate/internal/platform/config"
	"purchasegate/internal/platform/kafka/producer"
	"purchasegate/pkg/domain"
	"purchasegate/pkg/testutil/containers"
)

type KafkaSinkIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestKafkaSinkIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkIntegrationSuite))
}

func (s *KafkaSinkIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	prod, err := producer.New(config.Kafka{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *KafkaSinkIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *KafkaSinkIntegrationSuite) TestApprovalRequestKeyedByParent() {
	ctx := context.Background()
	topic := containers.GetManager().Topic("parent-notifications")
	parentID := domain.ParentID(uuid.New())

	sink := notification.NewKafkaSink(s.producer, topic)
	s.Require().NoError(sink.Send(ctx, notification.Message{
		ParentID: parentID,
		Event:    notification.EventApprovalRequested,
		Payload: notification.Payload{
			PackTitle: "Bedtime Stories",
			Amount:    799,
			Currency:  "USD",
		},
		OccurredAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		RequestID:  "req-42",
	}))

	consumer, err := s.kafka.NewConsumer(topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == parentID.String()
	})
	s.Require().NotNil(record)

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("approval_requested", headers["event"])
	s.Equal("req-42", headers["request_id"])

	var got notification.Message
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(parentID, got.ParentID)
	s.Equal(int64(799), got.Payload.Amount)
}
