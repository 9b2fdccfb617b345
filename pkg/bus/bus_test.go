package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribeExactMatch(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(SubjectMissilePosition, 10)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(SubjectMissilePosition, []byte("a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish("missile.impact", []byte("b")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg.Payload) != "a" {
			t.Fatalf("expected payload a, got %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected second message: %s", msg.Payload)
	default:
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(SubjectEngagementOrders, 10)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(EngageSubject("B1"), []byte("order")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if msg.Subject != "orders.engagement.B1" {
			t.Fatalf("unexpected subject %s", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wildcard match")
	}
}

func TestPublishOrderPreservedPerSubject(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(SubjectMissilePosition, 100)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	for i := 0; i < 50; i++ {
		if err := b.Publish(SubjectMissilePosition, []byte{byte(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for i := 0; i < 50; i++ {
		msg := <-sub.Messages()
		if int(msg.Payload[0]) != i {
			t.Fatalf("out of order delivery: want %d got %d", i, msg.Payload[0])
		}
	}
}

func TestReliablePublishBlocksUntilAccepted(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(SubjectSimulationLaunch, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := b.PublishReliable(ctx, SubjectSimulationLaunch, []byte("launch")); err != nil {
		t.Fatalf("publish reliable: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg.Payload) != "launch" {
			t.Fatalf("unexpected payload %s", msg.Payload)
		}
	default:
		t.Fatal("expected message to already be queued")
	}
}

func TestClosedBusRejectsPublish(t *testing.T) {
	b := New()
	b.Close()
	if err := b.Publish(SubjectMissilePosition, []byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
