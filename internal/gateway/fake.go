package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"libralend/internal/apperr"
)

// Fake is an in-memory gateway for tests and sandbox deployments.
type Fake struct {
	// AutoPay reports every pending session as paid. Only for sandboxes
	// where nobody can be charged.
	AutoPay bool

	mu       sync.Mutex
	delay    time.Duration
	sessions map[string]*fakeSession
	failNext int
	down     bool
	queries  int
}

type fakeSession struct {
	req    SessionRequest
	status Status
}

var _ Gateway = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{sessions: make(map[string]*fakeSession)}
}

// CreateSession opens a pending session. Tokens are random so sessions from an
// earlier process never collide with stored ones.
func (f *Fake) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unavailable", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure(); err != nil {
		return nil, err
	}
	token := "cs_fake_" + uuid.NewString()
	f.sessions[token] = &fakeSession{req: req, status: StatusPending}
	return &Session{Token: token, URL: "https://checkout.invalid/pay/" + token}, nil
}

func (f *Fake) QueryStatus(_ context.Context, token string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if err := f.failure(); err != nil {
		return "", err
	}
	s, ok := f.sessions[token]
	if !ok {
		return "", apperr.New(apperr.KindNotFound, "unknown payment session")
	}
	if f.AutoPay && s.status == StatusPending {
		s.status = StatusPaid
	}
	return s.status, nil
}

func (f *Fake) failure() error {
	if f.down {
		return apperr.New(apperr.KindGatewayUnavailable, "payment gateway unavailable")
	}
	if f.failNext > 0 {
		f.failNext--
		return apperr.New(apperr.KindGatewayUnavailable, "payment gateway unavailable")
	}
	return nil
}

// FailNext makes the next n calls fail.
func (f *Fake) FailNext(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// SetDown makes every call fail until reset.
func (f *Fake) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// SetDelay makes session creation take d, like a slow processor.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

func (f *Fake) MarkPaid(token string) { f.setStatus(token, StatusPaid) }

func (f *Fake) Expire(token string) { f.setStatus(token, StatusExpired) }

func (f *Fake) setStatus(token string, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[token]; ok {
		s.status = status
	}
}

// Request returns the request a session was opened with.
func (f *Fake) Request(token string) (SessionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return SessionRequest{}, false
	}
	return s.req, true
}

// SessionCount is the number of sessions opened so far.
func (f *Fake) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Queries is the number of QueryStatus calls so far.
func (f *Fake) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}
