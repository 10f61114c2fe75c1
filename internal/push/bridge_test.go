package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// fakeBroker serves scripted deliveries through Consume.
type fakeBroker struct {
	queueErr   error
	deliveries [][]byte
}

func (f *fakeBroker) EnsureDriverQueue(driverID string) (string, error) {
	if f.queueErr != nil {
		return "", f.queueErr
	}
	return contracts.PushQueueName(driverID), nil
}

func (f *fakeBroker) Consume(ctx context.Context, queue, tag string, prefetch int,
	handler func(context.Context, amqp.Delivery) error) error {
	for _, body := range f.deliveries {
		handler(ctx, amqp.Delivery{Body: body})
	}
	<-ctx.Done()
	return nil
}

type fakeRegistrar struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (f *fakeRegistrar) RegisterPushToken(ctx context.Context, driverID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.err
}

func TestRegisterHappyPath(t *testing.T) {
	api := &fakeRegistrar{}
	b := NewBridge(logger.New("push-test"), &fakeBroker{}, api, "driver-1", nil)

	token := b.Register(context.Background())
	if token != "push.driver.driver-1" {
		t.Errorf("unexpected token %q", token)
	}
	if b.Token() != token {
		t.Errorf("Token() disagrees with Register result")
	}
	if len(api.tokens) != 1 || api.tokens[0] != token {
		t.Errorf("token not uploaded, got %v", api.tokens)
	}
}

func TestRegisterNeverFails(t *testing.T) {
	// no broker at all
	b := NewBridge(logger.New("push-test"), nil, &fakeRegistrar{}, "driver-1", nil)
	if token := b.Register(context.Background()); token != "" {
		t.Errorf("expected empty token without broker, got %q", token)
	}

	// broker refuses the queue
	b = NewBridge(logger.New("push-test"), &fakeBroker{queueErr: errors.New("broker down")}, &fakeRegistrar{}, "driver-1", nil)
	if token := b.Register(context.Background()); token != "" {
		t.Errorf("expected empty token on broker failure, got %q", token)
	}

	// token upload fails: push still works locally
	b = NewBridge(logger.New("push-test"), &fakeBroker{}, &fakeRegistrar{err: errors.New("503")}, "driver-1", nil)
	if token := b.Register(context.Background()); token == "" {
		t.Error("failed upload should not disable local push consumption")
	}
}

func TestRunWithoutTokenIsNoOp(t *testing.T) {
	b := NewBridge(logger.New("push-test"), nil, &fakeRegistrar{}, "driver-1", nil)
	if err := b.Run(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNotificationWithOrderIDTriggersRefresh(t *testing.T) {
	mkBody := func(n contracts.Notification) []byte {
		b, _ := json.Marshal(n)
		return b
	}
	broker := &fakeBroker{deliveries: [][]byte{
		mkBody(contracts.Notification{ID: "n-1", Title: "New order nearby", Data: map[string]string{
			contracts.NotificationDataOrderID: "ord-5",
		}}),
		mkBody(contracts.Notification{ID: "n-2", Title: "Weekly summary"}), // no order id
		[]byte("{not json"), // malformed: dropped, loop continues
		mkBody(contracts.Notification{ID: "n-3", Title: "Order update", Data: map[string]string{
			contracts.NotificationDataOrderID: "ord-6",
		}}),
	}}

	var mu sync.Mutex
	var refreshed []string
	b := NewBridge(logger.New("push-test"), broker, &fakeRegistrar{}, "driver-1",
		func(ctx context.Context, orderID string) {
			mu.Lock()
			defer mu.Unlock()
			refreshed = append(refreshed, orderID)
		})

	if token := b.Register(context.Background()); token == "" {
		t.Fatal("registration failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // deliveries are handled before Consume blocks on ctx
	if err := b.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(refreshed) != 2 || refreshed[0] != "ord-5" || refreshed[1] != "ord-6" {
		t.Errorf("expected refreshes for ord-5 and ord-6, got %v", refreshed)
	}
}
