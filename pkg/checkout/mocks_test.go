package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
)

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	mu sync.Mutex

	InitErr       error
	Initialized   []payment.InitializeRequest
	Verifications map[string]*payment.Verification
	VerifyErr     error
	VerifyCalls   int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Verifications: make(map[string]*payment.Verification)}
}

func (m *MockGateway) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Initialized = append(m.Initialized, req)
	if m.InitErr != nil {
		return nil, m.InitErr
	}
	return &payment.InitializeResult{
		StatusCode:       200,
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (m *MockGateway) Verify(_ context.Context, reference string) (*payment.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyCalls++
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	v, ok := m.Verifications[reference]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return v, nil
}

// Pays records a successful provider verification of amount minor units.
func (m *MockGateway) Pays(reference string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verifications[reference] = &payment.Verification{
		StatusCode: 200,
		Success:    true,
		Amount:     amount,
		Currency:   "NGN",
		Reference:  reference,
	}
}

// MockLocker implements Locker for testing
type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	seq      int
	Err      error
	Released []string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]string)}
}

func (m *MockLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if _, ok := m.held[key]; ok {
		return "", nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) ReleaseLock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	m.Released = append(m.Released, key)
	return nil
}

// MockCache implements OrderCache for testing
type MockCache struct {
	mu     sync.Mutex
	Orders []*repository.OrderCache
}

func (m *MockCache) CacheOrder(_ context.Context, order *repository.OrderCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, order)
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	mu      sync.Mutex
	Notices []string
}

func (m *MockNotifier) PaymentReceived(orderNumber, email string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, orderNumber+":"+email)
}

// MockAudit implements AuditLogger for testing
type MockAudit struct {
	mu      sync.Mutex
	Actions []string
}

func (m *MockAudit) CreateAuditLog(_ context.Context, log *repository.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, log.Action)
	return nil
}

func (m *MockAudit) Has(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// sequence returns a generator yielding numbers in order, then repeating the last.
func sequence(numbers ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n := numbers[i]
		if i < len(numbers)-1 {
			i++
		}
		return n
	}
}
