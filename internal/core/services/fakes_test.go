package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"streamctl/internal/core/domain"

	"github.com/stretchr/testify/mock"
	"github.com/zeebo/blake3"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saveErr map[string]error
	saves   map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[string][]byte),
		saveErr: make(map[string]error),
		saves:   make(map[string]int),
	}
}

func (m *memStore) Load(_ context.Context, name string, v interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (m *memStore) Save(_ context.Context, name string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErr[name]; err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[name] = data
	m.saves[name]++
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) failSaves(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr[name] = err
}

func (m *memStore) saveCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[name]
}

func pipelineID(name string) domain.PipelineID {
	sum := blake3.Sum256([]byte(name))
	return domain.PipelineID(hex.EncodeToString(sum[:]))
}

type fakePipelines struct {
	byID map[domain.PipelineID]domain.Pipeline
}

func newFakePipelines(names ...string) *fakePipelines {
	f := &fakePipelines{byID: make(map[domain.PipelineID]domain.Pipeline)}
	for _, n := range names {
		id := pipelineID(n)
		f.byID[id] = domain.Pipeline{ID: id, Name: n, Path: "/pipelines/" + n}
	}
	return f
}

func (f *fakePipelines) List(context.Context) ([]domain.Pipeline, error) {
	out := make([]domain.Pipeline, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePipelines) Lookup(_ context.Context, id domain.PipelineID) (domain.Pipeline, error) {
	p, ok := f.byID[id]
	if !ok {
		return domain.Pipeline{}, domain.ErrPipelineNotFound
	}
	return p, nil
}

// fakeResolver resolves every host except the ones listed in fail. Hosts
// in gate block until their channel is closed.
type fakeResolver struct {
	mu   sync.Mutex
	fail map[string]bool
	gate map[string]chan struct{}
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{fail: map[string]bool{}, gate: map[string]chan struct{}{}}
}

func (r *fakeResolver) block(host string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gate[host] = ch
	return ch
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.mu.Lock()
	gate := r.gate[host]
	fail := r.fail[host]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("no such host")
	}
	return []string{"192.0.2.1"}, nil
}

type fakeEncoder struct {
	mu       sync.Mutex
	written  []domain.BitrateRange
	reloads  int
	writeErr error
}

func (e *fakeEncoder) WriteBitrate(_ context.Context, br domain.BitrateRange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writeErr != nil {
		return e.writeErr
	}
	e.written = append(e.written, br)
	return nil
}

func (e *fakeEncoder) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloads++
	return nil
}

type mockProcs struct {
	mock.Mock
}

func (m *mockProcs) Spawn(ctx context.Context, argv []string) error {
	return m.Called(argv[0]).Error(0)
}

func (m *mockProcs) TerminateByName(name string) error {
	return m.Called(name).Error(0)
}

func (m *mockProcs) SignalByName(name string, sig os.Signal) error {
	return m.Called(name, sig).Error(0)
}

func (m *mockProcs) IsAlive(name string) (bool, error) {
	args := m.Called(name)
	return args.Bool(0), args.Error(1)
}

type fakeCommands struct{}

func (fakeCommands) Prepare(context.Context, domain.Config) error { return nil }

func (fakeCommands) EncoderArgs(cfg domain.Config, p domain.Pipeline) ([]string, error) {
	return []string{"belacoder", p.Path}, nil
}

func (fakeCommands) TransportArgs(cfg domain.Config) ([]string, error) {
	return []string{"srtla_send", cfg.SRTLAAddr}, nil
}

func (fakeCommands) EncoderName() string   { return "belacoder" }
func (fakeCommands) TransportName() string { return "srtla_send" }

type nopMetrics struct{}

func (nopMetrics) RecordSessionOpened()                       {}
func (nopMetrics) RecordSessionClosed()                       {}
func (nopMetrics) RecordAuthAttempt(string, bool)             {}
func (nopMetrics) RecordConfigApply(string)                   {}
func (nopMetrics) RecordStreamingState(domain.StreamingState) {}
func (nopMetrics) RecordInterfaceThroughput(string, uint64)   {}
func (nopMetrics) RecordDocumentWrite(string, error)          {}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// validCandidate is a candidate that passes every check against
// newFakePipelines("generic/h264.pipeline").
func validCandidate() domain.ConfigCandidate {
	return domain.ConfigCandidate{
		Delay:       intPtr(0),
		Pipeline:    strPtr(string(pipelineID("generic/h264.pipeline"))),
		MinBitrate:  intPtr(1000),
		MaxBitrate:  intPtr(4000),
		SRTLatency:  intPtr(2000),
		SRTStreamID: strPtr("live"),
		SRTLAAddr:   strPtr("ingest.example.com"),
		SRTLAPort:   intPtr(5000),
	}
}
