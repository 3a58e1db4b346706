// Package kafka publishes rebalance outcomes for downstream consumers
// (notification senders, dashboards). Publishing is fire-and-forget from the
// engine's point of view: a broker failure is logged and never fails a run.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

const (
	// EventReportCreated announces a newly persisted rebalance report.
	EventReportCreated = "REPORT_CREATED"
	// EventPositionsSold announces positions that left the book this run.
	EventPositionsSold = "POSITIONS_SOLD"

	eventSource = "stock-advisor-engine"
)

// Event is the common envelope for every published message.
type Event struct {
	EventType string      `json:"event_type"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ReportCreatedData is the payload of a REPORT_CREATED event.
type ReportCreatedData struct {
	ReportID       int64  `json:"report_id"`
	Date           string `json:"date"`
	FinalistCount  int    `json:"finalist_count"`
	SoldCount      int    `json:"sold_count"`
	CandidateCount int    `json:"candidate_count"`
}

// PositionsSoldData is the payload of a POSITIONS_SOLD event.
type PositionsSoldData struct {
	ReportID int64                 `json:"report_id"`
	Sold     []models.SoldPosition `json:"sold"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes engine events. A nil Producer is valid and drops every
// publish, so the engine runs unchanged without a broker.
type Producer struct {
	writer messageWriter
	now    func() time.Time
}

// NewProducer creates a producer, or nil when no brokers are configured.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		log.Println("Kafka disabled: no brokers configured")
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, now: time.Now}
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// PublishReportCreated emits a REPORT_CREATED event for a persisted report.
func (p *Producer) PublishReportCreated(ctx context.Context, report *models.Report) error {
	if p == nil {
		return nil
	}
	return p.publish(ctx, EventReportCreated, report.Date, ReportCreatedData{
		ReportID:       report.ID,
		Date:           report.Date,
		FinalistCount:  len(report.Data.Finalists),
		SoldCount:      len(report.Data.Sold),
		CandidateCount: len(report.Data.Candidates),
	})
}

// PublishPositionsSold emits a POSITIONS_SOLD event. Nothing is published
// when no positions left the book.
func (p *Producer) PublishPositionsSold(ctx context.Context, report *models.Report) error {
	if p == nil || len(report.Data.Sold) == 0 {
		return nil
	}
	return p.publish(ctx, EventPositionsSold, report.Date, PositionsSoldData{
		ReportID: report.ID,
		Sold:     report.Data.Sold,
	})
}

func (p *Producer) publish(ctx context.Context, eventType, key string, data interface{}) error {
	event := Event{
		EventType: eventType,
		Source:    eventSource,
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	log.Printf("Published %s event for %s", eventType, key)
	return nil
}
