package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	amqp "github.com/rabbitmq/amqp091-go"

	"udaay-be/models"
)

func TestSettle(t *testing.T) {
	exhausted := goerr.Wrap(models.ErrAllProvidersFailed, "validation cascade exhausted")

	gt.Equal(t, settle(nil, false), settleAck)
	gt.Equal(t, settle(nil, true), settleAck)
	gt.Equal(t, settle(exhausted, false), settleDeadLetter)
	gt.Equal(t, settle(errBoom, false), settleRequeue)
	gt.Equal(t, settle(errBoom, true), settleDeadLetter)
}

type recordingAcker struct {
	mu       sync.Mutex
	acked    []uint64
	requeued []uint64
	dropped  []uint64
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued = append(a.requeued, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func deliveries(t *testing.T, acker amqp.Acknowledger, jobs ...ValidationJob) <-chan amqp.Delivery {
	t.Helper()
	ch := make(chan amqp.Delivery, len(jobs))
	for i, job := range jobs {
		body, err := json.Marshal(job)
		gt.NoError(t, err).Required()
		ch <- amqp.Delivery{Acknowledger: acker, DeliveryTag: uint64(i + 1), Body: body}
	}
	close(ch)
	return ch
}

func TestConsumeLoopValidatesIssuesConcurrently(t *testing.T) {
	acker := &recordingAcker{}
	msgs := deliveries(t, acker, ValidationJob{IssueID: "slow"}, ValidationJob{IssueID: "fast"})

	started := make(chan string, 2)
	release := make(chan struct{})
	handler := func(ctx context.Context, job ValidationJob) error {
		started <- job.IssueID
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		(&RabbitMQQueue{}).consumeLoop(context.Background(), msgs, handler)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("second job did not start while the first was still running")
		}
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume loop did not return after the channel closed")
	}
	gt.Equal(t, len(acker.acked), 2)
}

func TestConsumeLoopSettlesEachDelivery(t *testing.T) {
	acker := &recordingAcker{}
	msgs := deliveries(t, acker,
		ValidationJob{IssueID: "ok"},
		ValidationJob{IssueID: "exhausted"},
		ValidationJob{IssueID: "flaky"},
	)

	handler := func(ctx context.Context, job ValidationJob) error {
		switch job.IssueID {
		case "exhausted":
			return goerr.Wrap(models.ErrAllProvidersFailed, "validation cascade exhausted")
		case "flaky":
			return errBoom
		}
		return nil
	}
	(&RabbitMQQueue{}).consumeLoop(context.Background(), msgs, handler)

	gt.Equal(t, acker.acked, []uint64{1})
	gt.Equal(t, acker.dropped, []uint64{2})
	gt.Equal(t, acker.requeued, []uint64{3})
}
