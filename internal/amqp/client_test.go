package amqp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func sampleMessage() *TransactionCreatedMessage {
	return NewTransactionCreatedMessage(core.KindExpense, core.Transaction{
		ID:          "42",
		Amount:      decimal.RequireFromString("200.50"),
		Category:    "Продукты",
		Description: "рынок",
		CreateDate:  dates.FromString("2025-12-06T19:29:20+03:00"),
	})
}

func TestNewTransactionCreatedMessage(t *testing.T) {
	msg := sampleMessage()
	if msg.MessageID == "" {
		t.Error("MessageID should be set")
	}
	if other := sampleMessage(); other.MessageID == msg.MessageID {
		t.Error("MessageID should be unique")
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestTransactionCreatedMessage_JSON(t *testing.T) {
	msg := sampleMessage()
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(body), `"createDate":"2025-12-06T19:29:20+03:00"`) {
		t.Errorf("wire date not preserved: %s", body)
	}

	parsed, err := TransactionCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if parsed.MessageID != msg.MessageID || parsed.Kind != msg.Kind {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.Transaction.Amount.Equal(msg.Transaction.Amount) {
		t.Errorf("amount = %s", parsed.Transaction.Amount)
	}
	if parsed.Transaction.CreateDate.String() != "2025-12-06T19:29:20+03:00" {
		t.Errorf("createDate = %s", parsed.Transaction.CreateDate.String())
	}
}

func TestTransactionCreatedMessage_Invalid(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{`{"messageId": "", "kind": "expense", "transaction": {"id": 1}}`, ErrMissingMessageID},
		{`{"messageId": "m", "kind": "transfer", "transaction": {"id": 1}}`, ErrInvalidKind},
		{`{"messageId": "m", "kind": "income", "transaction": {}}`, ErrMissingTxID},
	}
	for _, tc := range cases {
		if _, err := TransactionCreatedMessageFromJSON([]byte(tc.body)); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.body, err, tc.want)
		}
	}
	if _, err := TransactionCreatedMessageFromJSON([]byte(`{not json`)); err == nil {
		t.Error("expected syntax error")
	}
}

func TestHandleDelivery(t *testing.T) {
	c := &Client{logger: log.Discard()}
	body, _ := sampleMessage().ToJSON()

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		want        Outcome
		wantAcks    int
		wantNacks   int
		wantRequeue bool
	}{
		{name: "success acks", body: body, want: OutcomeAcked, wantAcks: 1},
		{name: "malformed body is dropped", body: []byte("garbage"), want: OutcomeDropped, wantNacks: 1},
		{name: "handler error requeues", body: body, handlerErr: errors.New("db locked"), want: OutcomeRequeued, wantNacks: 1, wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			called := 0
			handler := func(ctx context.Context, msg *TransactionCreatedMessage) error {
				called++
				return tt.handlerErr
			}
			got := c.handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body}, handler)
			if got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks || ack.requeue != tt.wantRequeue {
				t.Errorf("acks=%d nacks=%d requeue=%v", ack.acks, ack.nacks, ack.requeue)
			}
			if tt.want == OutcomeDropped && called != 0 {
				t.Error("handler must not run for malformed bodies")
			}
		})
	}
}
