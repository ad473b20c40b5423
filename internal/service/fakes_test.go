package service

import (
	"context"
	"sync"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/notify"
	"github.com/podworks/pod-access-service/internal/payments"
	"github.com/podworks/pod-access-service/internal/repository"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*domain.Session{}}
}

func (r *memSessionRepo) Create(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindByID(id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) FindBySetupIntentID(setupIntentID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.SetupIntentID == setupIntentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *memSessionRepo) SetAccessCodeID(sessionID, accessCodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if s.AccessCodeID == nil {
		s.AccessCodeID = &accessCodeID
	}
	return nil
}

func (r *memSessionRepo) Close(sessionID string, endTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if s.EndTime != nil {
		return repository.ErrSessionAlreadyClosed
	}
	s.EndTime = &endTime
	return nil
}

type memProvisioningRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Provisioning
}

func newMemProvisioningRepo() *memProvisioningRepo {
	return &memProvisioningRepo{records: map[string]*domain.Provisioning{}}
}

func (r *memProvisioningRepo) Create(p *domain.Provisioning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.records[p.SessionID] = &cp
	return nil
}

func (r *memProvisioningRepo) FindBySessionID(sessionID string) (*domain.Provisioning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[sessionID]
	if !ok {
		return nil, repository.ErrProvisioningNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProvisioningRepo) SetStatusBySessionID(sessionID string, status domain.ProvisionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[sessionID]
	if !ok {
		return repository.ErrProvisioningNotFound
	}
	p.Status = status
	return nil
}

func (r *memProvisioningRepo) IncrementAttempts(sessionID string, outcome domain.ProvisionStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[sessionID]
	if !ok {
		return repository.ErrProvisioningNotFound
	}
	p.Attempts++
	switch outcome {
	case domain.ProvisionReady:
		p.LastReadyAt = &at
	case domain.ProvisionFailed:
		p.LastFailedAt = &at
	}
	return nil
}

type memPodRepo struct {
	mu   sync.Mutex
	pods map[string]*domain.Pod
}

func newMemPodRepo(pods ...*domain.Pod) *memPodRepo {
	r := &memPodRepo{pods: map[string]*domain.Pod{}}
	for _, p := range pods {
		cp := *p
		r.pods[p.ID] = &cp
	}
	return r
}

func (r *memPodRepo) Create(p *domain.Pod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pods[p.ID] = &cp
	return nil
}

func (r *memPodRepo) FindByID(id string) (*domain.Pod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pods[id]
	if !ok {
		return nil, repository.ErrPodNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPodRepo) FindByName(name string) (*domain.Pod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pods {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPodNotFound
}

func (r *memPodRepo) SetInUse(id string, inUse bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pods[id]
	if !ok {
		return repository.ErrPodNotFound
	}
	p.InUse = inUse
	return nil
}

type fakeProvider struct {
	mu          sync.Mutex
	allocated   int
	revoked     []string
	allocateErr error
	readErr     error
	codeID      string
	code        string
	reusable    bool
}

func (f *fakeProvider) Allocate(ctx context.Context, startsAt time.Time, deviceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allocateErr != nil {
		return "", f.allocateErr
	}
	f.allocated++
	return f.codeID, nil
}

func (f *fakeProvider) Read(ctx context.Context, codeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.code, nil
}

func (f *fakeProvider) Revoke(ctx context.Context, codeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, codeID)
	return nil
}

func (f *fakeProvider) Reusable() bool { return f.reusable }

type sentNotification struct {
	recipient string
	details   notify.AccessDetails
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentNotification
	sendErr error
}

func (f *fakeNotifier) SendAccessNotification(ctx context.Context, recipient string, details notify.AccessDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentNotification{recipient: recipient, details: details})
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	intents   map[string]*payments.SetupIntent
	charges   []payments.ChargeParams
	chargeErr error
}

func newFakeGateway(intents ...*payments.SetupIntent) *fakeGateway {
	g := &fakeGateway{intents: map[string]*payments.SetupIntent{}}
	for _, in := range intents {
		g.intents[in.ID] = in
	}
	return g
}

func (g *fakeGateway) CreateSetupIntent(ctx context.Context, podID string) (*payments.SetupIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := &payments.SetupIntent{
		ID:           "si_test",
		ClientSecret: "si_test_secret",
		Status:       payments.SetupIntentSucceeded,
	}
	g.intents[in.ID] = in
	return in, nil
}

func (g *fakeGateway) GetSetupIntent(ctx context.Context, id string) (*payments.SetupIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, payments.ErrSetupIntentNotFound
	}
	return in, nil
}

func (g *fakeGateway) Charge(ctx context.Context, p payments.ChargeParams) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return g.chargeErr
	}
	g.charges = append(g.charges, p)
	return nil
}

// syncScheduler runs submitted jobs inline so tests observe their
// effects immediately.
type syncScheduler struct {
	mu   sync.Mutex
	runs []string
	errs []error
}

func (s *syncScheduler) Submit(name, key string, run func(ctx context.Context) error) {
	s.mu.Lock()
	s.runs = append(s.runs, name+":"+key)
	s.mu.Unlock()
	err := run(context.Background())
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}
