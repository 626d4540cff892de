package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/alertwatcher/internal/alert"
	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/failover"
	"github.com/hamed0406/alertwatcher/internal/window"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Candidate
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, c domain.Candidate, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, c)
	return nil
}

func (n *recordingNotifier) kinds() []domain.AlertKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.AlertKind, 0, len(n.sent))
	for _, c := range n.sent {
		out = append(out, c.Kind)
	}
	return out
}

type countingObserver struct {
	decoded, dropped int
	last             window.Snapshot
}

func (o *countingObserver) LineDecoded() {
	o.decoded++
}

func (o *countingObserver) LineDropped() {
	o.dropped++
}

func (o *countingObserver) ObserveWindow(s window.Snapshot) {
	o.last = s
}

type harness struct {
	now      time.Time
	notifier *recordingNotifier
	machine  *alert.Machine
	engine   *Engine
	observer *countingObserver
}

func newHarness(t *testing.T, cooldown time.Duration, maintenance bool) *harness {
	t.Helper()
	h := &harness{
		now:      time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
		observer: &countingObserver{},
	}
	clock := func() time.Time { return h.now }
	h.machine = alert.NewMachine(h.notifier, alert.MachineConfig{
		Cooldown:    cooldown,
		Maintenance: maintenance,
		Now:         clock,
	}, nil)
	h.engine = NewEngine(
		window.NewTracker(60*time.Second),
		failover.NewDetector(failover.ModeTokens),
		h.machine,
		Options{
			Policy:   alert.Policy{Threshold: 0.10, MinSamples: 5},
			Now:      clock,
			Observer: h.observer,
		},
		nil,
	)
	return h
}

func (h *harness) line(t *testing.T, status int, upstream string) {
	t.Helper()
	raw := fmt.Sprintf(`{"status":%d,"upstream_status":%q}`, status, upstream)
	require.NoError(t, h.engine.HandleLine(context.Background(), []byte(raw)))
	h.now = h.now.Add(100 * time.Millisecond)
}

func TestEngine_HighErrorBurst(t *testing.T) {
	h := newHarness(t, 60*time.Second, false)
	for i := 0; i < 6; i++ {
		h.line(t, 503, "503")
	}
	for i := 0; i < 4; i++ {
		h.line(t, 200, "200")
	}

	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh}, h.notifier.kinds())
	assert.True(t, h.machine.ErrorActive())
	assert.Equal(t, 10, h.observer.decoded)
	assert.Equal(t, window.Snapshot{Total: 10, Errors: 6}, h.observer.last)
}

func TestEngine_BurstWithoutCooldownStillDeduplicates(t *testing.T) {
	h := newHarness(t, 0, false)
	for i := 0; i < 6; i++ {
		h.line(t, 503, "")
	}
	for i := 0; i < 4; i++ {
		h.line(t, 200, "")
	}
	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh}, h.notifier.kinds())
}

func TestEngine_BelowSampleFloor(t *testing.T) {
	h := newHarness(t, 0, false)
	for i := 0; i < 5; i++ {
		h.line(t, 500, "")
	}
	assert.Empty(t, h.notifier.kinds())
	h.line(t, 500, "")
	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh}, h.notifier.kinds())
}

func TestEngine_FailoverClosesErrorAlert(t *testing.T) {
	h := newHarness(t, 60*time.Second, false)
	for i := 0; i < 6; i++ {
		h.line(t, 503, "")
	}
	require.True(t, h.machine.ErrorActive())

	h.now = h.now.Add(61 * time.Second)
	// everything above has aged out; the failover record is the only sample
	h.line(t, 200, "502, 200")

	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh, domain.FailoverDetected}, h.notifier.kinds())
	assert.False(t, h.machine.ErrorActive())
}

func TestEngine_FailoverFromIdle(t *testing.T) {
	h := newHarness(t, 60*time.Second, false)
	h.line(t, 200, "502, 200")
	assert.Equal(t, []domain.AlertKind{domain.FailoverDetected}, h.notifier.kinds())
	assert.False(t, h.machine.ErrorActive())
}

func TestEngine_ResolvesAfterRecovery(t *testing.T) {
	h := newHarness(t, time.Second, false)
	for i := 0; i < 6; i++ {
		h.line(t, 503, "")
	}
	require.True(t, h.machine.ErrorActive())

	h.now = h.now.Add(61 * time.Second)
	h.line(t, 200, "")

	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh, domain.ErrorRateResolved}, h.notifier.kinds())
	assert.False(t, h.machine.ErrorActive())
}

func TestEngine_MaintenanceSuppressesEverything(t *testing.T) {
	h := newHarness(t, 0, true)
	for i := 0; i < 10; i++ {
		h.line(t, 503, "502, 200")
	}
	assert.Empty(t, h.notifier.kinds())
	assert.Equal(t, alert.State{}, h.machine.State())
}

func TestEngine_FailedSendRetriesOnNextRecord(t *testing.T) {
	h := newHarness(t, 60*time.Second, false)
	h.notifier.err = errors.New("connection refused")
	for i := 0; i < 6; i++ {
		h.line(t, 503, "")
	}
	assert.Equal(t, alert.State{}, h.machine.State())

	h.notifier.err = nil
	h.line(t, 503, "")
	assert.Equal(t, []domain.AlertKind{domain.ErrorRateHigh}, h.notifier.kinds())
}

func TestEngine_DropsMalformedLines(t *testing.T) {
	h := newHarness(t, 0, false)
	ctx := context.Background()
	for _, raw := range []string{"", "not json", `{"upstream_status":"200"}`, `{"status":"abc"}`, `[1,2]`} {
		require.NoError(t, h.engine.HandleLine(ctx, []byte(raw)), raw)
	}
	assert.Equal(t, 5, h.observer.dropped)
	assert.Equal(t, 0, h.observer.decoded)
	assert.Equal(t, 0, h.engine.Status().Requests)
}

type panickingNotifier struct{}

func (panickingNotifier) Send(context.Context, domain.Candidate, time.Time) error {
	panic("boom")
}

func TestEngine_PanicIsIsolated(t *testing.T) {
	m := alert.NewMachine(panickingNotifier{}, alert.MachineConfig{}, nil)
	e := NewEngine(window.NewTracker(time.Minute), failover.NewDetector(failover.ModeTokens), m, Options{}, nil)

	err := e.HandleLine(context.Background(), []byte(`{"status":200,"upstream_status":"502, 200"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// the machine lock was released by the deferred unlock
	assert.False(t, m.ErrorActive())
}

func TestEngine_Status(t *testing.T) {
	h := newHarness(t, 60*time.Second, false)
	for i := 0; i < 6; i++ {
		h.line(t, 503, "")
	}
	h.line(t, 200, "")

	st := h.engine.Status()
	assert.Equal(t, 7, st.Requests)
	assert.Equal(t, 6, st.Errors)
	assert.InDelta(t, 6.0/7.0, st.ErrorRatio, 1e-9)
	assert.True(t, st.ErrorAlertActive)
	require.NotNil(t, st.LastAlertAt)
	assert.Equal(t, 60.0, st.WindowSeconds)
	assert.Equal(t, 0.10, st.Threshold)
}
