package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotifier_DeliversPaymentReceived(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n, err := NewNotifier(zap.New(core))
	require.NoError(t, err)

	n.PaymentReceived("20240101120000_aaaaaaaaaa", "ada@example.com", 2000)
	n.PaymentReceived("20240101120000_bbbbbbbbbb", "bola@example.com", 500)

	sent, err := n.Sent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	entries := logs.FilterMessage("Sending payment notification").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ada@example.com", fields["recipient"])
	assert.Equal(t, "20240101120000_aaaaaaaaaa", fields["order_number"])
	assert.Equal(t, int64(2000), fields["amount"])

	n.Stop()
}
