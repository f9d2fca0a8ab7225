package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/kitchen/repository"
)

type fakeRepo struct {
	mu       sync.Mutex
	lines    map[string]*repository.LineRef
	online   map[string]bool
	prepared map[string]int
	failOn   string
	beats    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lines:    map[string]*repository.LineRef{},
		online:   map[string]bool{},
		prepared: map[string]int{},
	}
}

func (f *fakeRepo) addLine(id string, st domain.PrepStatus) {
	f.lines[id] = &repository.LineRef{LineID: id, OrderID: "ord-1", TableID: "tbl-1", Status: st}
}

func (f *fakeRepo) status(id string) domain.PrepStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[id].Status
}

func (f *fakeRepo) RegisterOrFail(ctx context.Context, name, wtype string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.online[name] {
		return true, errors.New("already online")
	}
	f.online[name] = true
	return false, nil
}

func (f *fakeRepo) SetOffline(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[name] = false
	return nil
}

func (f *fakeRepo) Heartbeat(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
	return nil
}

func (f *fakeRepo) TryStartPreparingTx(ctx context.Context, lineID, worker string) (repository.LineRef, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "start" {
		return repository.LineRef{}, false, errors.New("connection reset")
	}
	l, ok := f.lines[lineID]
	if !ok {
		return repository.LineRef{}, false, repository.ErrLineNotFound
	}
	if l.Status != domain.PrepQueued {
		return *l, false, nil
	}
	l.Status = domain.PrepPreparing
	return *l, true, nil
}

func (f *fakeRepo) MarkReadyTx(ctx context.Context, lineID, worker string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "ready" {
		return false, errors.New("connection reset")
	}
	l := f.lines[lineID]
	if l.Status != domain.PrepPreparing {
		return false, nil
	}
	l.Status = domain.PrepReady
	f.prepared[worker]++
	return true, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	evs  []domain.LineStatusEvent
	fail bool
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("publish NACK from broker")
	}
	p.evs = append(p.evs, ev.Payload.(domain.LineStatusEvent))
	return nil
}

type failingSource struct{}

func (failingSource) Consume(queue, tag string, prefetch int) (*mq.Consumer, error) {
	return nil, errors.New("channel closed")
}

func newWorker(repo *fakeRepo, pub *recordingPublisher) *KitchenService {
	ks := NewKitchenService(repo, failingSource{}, pub, logger.NewWithOutput("kitchen-test", io.Discard), Options{WorkerName: "chef-1"})
	ks.Now = func() time.Time { return time.Date(2024, 5, 10, 19, 0, 0, 0, time.UTC) }
	return ks
}

func ticket(t *testing.T, lineID string, qty int) []byte {
	t.Helper()
	b, err := json.Marshal(domain.KitchenTicket{LineID: lineID, OrderID: "ord-1", TableID: "tbl-1", ProductName: "Pizza", Quantity: qty, Priority: 5})
	require.NoError(t, err)
	return b
}

func TestProcessOne_QueuedToReady(t *testing.T) {
	repo := newFakeRepo()
	repo.addLine("ln-1", domain.PrepQueued)
	pub := &recordingPublisher{}
	ks := newWorker(repo, pub)
	ks.PrepTime = time.Millisecond

	require.NoError(t, ks.processOne(context.Background(), ticket(t, "ln-1", 2)))
	assert.Equal(t, domain.PrepReady, repo.status("ln-1"))
	assert.Equal(t, 1, repo.prepared["chef-1"])

	require.Len(t, pub.evs, 2)
	assert.Equal(t, domain.PrepQueued, pub.evs[0].OldStatus)
	assert.Equal(t, domain.PrepPreparing, pub.evs[0].NewStatus)
	assert.Equal(t, ks.Now().Add(2*time.Millisecond), pub.evs[0].EstimatedCompletion)
	assert.Equal(t, domain.PrepReady, pub.evs[1].NewStatus)
	assert.Equal(t, "tbl-1", pub.evs[1].TableID)
	assert.Equal(t, "chef-1", pub.evs[1].ChangedBy)
}

func TestProcessOne_RedeliveryIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.addLine("ln-1", domain.PrepQueued)
	pub := &recordingPublisher{}
	ks := newWorker(repo, pub)

	body := ticket(t, "ln-1", 1)
	require.NoError(t, ks.processOne(context.Background(), body))
	require.NoError(t, ks.processOne(context.Background(), body))
	assert.Len(t, pub.evs, 2)
	assert.Equal(t, 1, repo.prepared["chef-1"])
}

func TestProcessOne_FinishesLineLeftPreparing(t *testing.T) {
	repo := newFakeRepo()
	repo.addLine("ln-1", domain.PrepPreparing)
	pub := &recordingPublisher{}
	ks := newWorker(repo, pub)

	require.NoError(t, ks.processOne(context.Background(), ticket(t, "ln-1", 1)))
	assert.Equal(t, domain.PrepReady, repo.status("ln-1"))
	require.Len(t, pub.evs, 1)
	assert.Equal(t, domain.PrepReady, pub.evs[0].NewStatus)
}

func TestProcessOne_Failures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(r *fakeRepo, p *recordingPublisher)
		body  []byte
		want  error
	}{
		{"malformed body", nil, []byte("{"), ErrDLQ},
		{"no line id", nil, []byte(`{"order_id":"ord-1"}`), ErrDLQ},
		{"unknown line", nil, []byte(`{"line_id":"ln-x"}`), ErrDLQ},
		{"store down on start", func(r *fakeRepo, p *recordingPublisher) { r.failOn = "start" }, []byte(`{"line_id":"ln-1"}`), ErrRequeue},
		{"store down on ready", func(r *fakeRepo, p *recordingPublisher) { r.failOn = "ready" }, []byte(`{"line_id":"ln-1"}`), ErrRequeue},
		{"broker refuses", func(r *fakeRepo, p *recordingPublisher) { p.fail = true }, []byte(`{"line_id":"ln-1"}`), ErrRequeue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.addLine("ln-1", domain.PrepQueued)
			pub := &recordingPublisher{}
			if tc.setup != nil {
				tc.setup(repo, pub)
			}
			err := newWorker(repo, pub).processOne(context.Background(), tc.body)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestProcessOne_ShutdownDuringPreparationRequeues(t *testing.T) {
	repo := newFakeRepo()
	repo.addLine("ln-1", domain.PrepQueued)
	ks := newWorker(repo, &recordingPublisher{})
	ks.PrepTime = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ks.processOne(ctx, ticket(t, "ln-1", 1)), ErrRequeue)
	assert.Equal(t, domain.PrepPreparing, repo.status("ln-1"))
}

func TestRun_RequiresWorkerName(t *testing.T) {
	ks := newWorker(newFakeRepo(), &recordingPublisher{})
	ks.WorkerName = " "
	assert.Error(t, ks.Run(context.Background()))
}

func TestRun_DuplicateWorkerRefused(t *testing.T) {
	repo := newFakeRepo()
	repo.online["chef-1"] = true
	err := newWorker(repo, &recordingPublisher{}).Run(context.Background())
	assert.Error(t, err)
	assert.True(t, repo.online["chef-1"])
}

func TestRun_ConsumeFailureGoesOffline(t *testing.T) {
	repo := newFakeRepo()
	err := newWorker(repo, &recordingPublisher{}).Run(context.Background())
	require.Error(t, err)
	assert.False(t, repo.online["chef-1"])
}
