// Package notify delivers customer notifications through a protoactor actor,
// off the request path.
package notify

import (
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// PaymentReceived tells a customer that their order was paid.
type PaymentReceived struct {
	OrderNumber string
	Email       string
	Amount      int64
}

// SentCount asks the actor how many notifications it has delivered.
type SentCount struct{}

type SentCountResponse struct {
	Count int
}

// NotificationActor delivers notifications. Mail transport is not wired;
// a delivery is a structured log line.
type NotificationActor struct {
	logger *zap.Logger
	sent   int
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *PaymentReceived:
		a.sent++
		a.logger.Info("Sending payment notification",
			zap.String("recipient", msg.Email),
			zap.String("order_number", msg.OrderNumber),
			zap.Int64("amount", msg.Amount))

	case *SentCount:
		ctx.Respond(&SentCountResponse{Count: a.sent})

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped", zap.Int("sent", a.sent))
	}
}

// Notifier hands payment events to the notification actor.
type Notifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) (*Notifier, error) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}
	return &Notifier{system: system, pid: pid, logger: logger}, nil
}

// PaymentReceived does not wait for delivery.
func (n *Notifier) PaymentReceived(orderNumber, email string, amount int64) {
	n.system.Root.Send(n.pid, &PaymentReceived{
		OrderNumber: orderNumber,
		Email:       email,
		Amount:      amount,
	})
}

// Sent returns the number of notifications delivered so far.
func (n *Notifier) Sent(timeout time.Duration) (int, error) {
	res, err := n.system.Root.RequestFuture(n.pid, &SentCount{}, timeout).Result()
	if err != nil {
		return 0, err
	}
	count, ok := res.(*SentCountResponse)
	if !ok {
		return 0, fmt.Errorf("unexpected response %T", res)
	}
	return count.Count, nil
}

// Stop drains the mailbox and stops the actor.
func (n *Notifier) Stop() {
	if err := n.system.Root.PoisonFuture(n.pid).Wait(); err != nil {
		n.logger.Warn("Failed to stop notification actor", zap.Error(err))
	}
}
