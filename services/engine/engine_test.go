package engine

import (
	// Go Internal Packages
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	// Local Packages
	"nfc-bank/codec"
	"nfc-bank/directory"
	errors "nfc-bank/errors"
	"nfc-bank/identity"
	models "nfc-bank/models"
	"nfc-bank/policy"
	"nfc-bank/services/ledger"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	serialAlice = "04:a2:3b:c1:5d:80:90"
	serialBob   = "04:11:22:33:44:55:66"
	serialBlank = "04:99:88:77:66:55:44"
)

type subscription struct {
	ch  chan models.TagEvent
	ctx context.Context
}

type fakeTransport struct {
	mu         sync.Mutex
	subs       []subscription
	failWrites int
	attempts   int
	writes     [][]models.Field
	gate       chan struct{}
	attemptCh  chan int
	errs       chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{attemptCh: make(chan int, 64), errs: make(chan error, 4)}
}

func (f *fakeTransport) Scan(ctx context.Context) (<-chan models.TagEvent, error) {
	ch := make(chan models.TagEvent, 4)
	f.mu.Lock()
	f.subs = append(f.subs, subscription{ch: ch, ctx: ctx})
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeTransport) Write(_ context.Context, fields []models.Field) error {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	fail := n <= f.failWrites
	gate := f.gate
	f.mu.Unlock()

	f.attemptCh <- n
	if fail {
		return stderrors.New("tag lost")
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.writes = append(f.writes, fields)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Errors() <-chan error {
	return f.errs
}

// present hands a tag to the most recent scan subscription.
func (f *fakeTransport) present(ev models.TagEvent) {
	f.mu.Lock()
	sub := f.subs[len(f.subs)-1]
	f.mu.Unlock()
	sub.ch <- ev
}

func (f *fakeTransport) subscription(i int) subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeTransport) stats() (attempts int, writes [][]models.Field) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, append([][]models.Field(nil), f.writes...)
}

func bankTag(serial, holder string, balance float32) models.TagEvent {
	return models.TagEvent{
		SerialNumber: serial,
		Fields:       codec.Encode(models.CardRecord{Holder: holder, Balance: balance}),
	}
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	engine    *Engine
	transport *fakeTransport
	ledger    *ledger.Ledger
	notes     *ChanNotifier
}

func newHarness(t *testing.T, dir Directory, opts Options) *harness {
	t.Helper()
	if opts.Retry.MinInterval == 0 && opts.Retry.MaxAttempts == 0 {
		opts.Retry = RetryConfig{MinInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	}
	return harnessFor(t, dir, opts)
}

// harnessFor builds a harness with opts exactly as given.
func harnessFor(t *testing.T, dir Directory, opts Options) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tr := newFakeTransport()
	l := ledger.NewLedger(zap.NewNop(), ledger.NewMemoryStore(), nil)
	notes := NewChanNotifier(64)
	e := NewEngine(zap.NewNop(), tr, l, dir, notes, nil, opts)
	return &harness{t: t, ctx: ctx, engine: e, transport: tr, ledger: l, notes: notes}
}

func (h *harness) apply(intent Intent) {
	h.t.Helper()
	require.NoError(h.t, h.engine.Apply(h.ctx, intent))
}

// endOfCycle waits for the notification that closes the current cycle.
func (h *harness) endOfCycle() models.Notification {
	h.t.Helper()
	return h.waitFor(func(n models.Notification) bool { return n.EndsCycle })
}

func (h *harness) waitFor(match func(models.Notification) bool) models.Notification {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-h.notes.C():
			if match(n) {
				return n
			}
		case <-timeout:
			h.t.Fatal("timed out waiting for notification")
			return models.Notification{}
		}
	}
}

func (h *harness) history(id models.CardIdentity) []models.LedgerEntry {
	h.t.Helper()
	entries, err := h.ledger.Query(context.Background(), id)
	require.NoError(h.t, err)
	return entries
}

func TestIncreaseWritesAndRecords(t *testing.T) {
	h := newHarness(t, nil, Options{})
	alice := identity.Derive(serialAlice)

	h.apply(Intent{Mode: Increase, Amount: 50, Note: "pocket money"})
	h.transport.present(bankTag(serialAlice, "Alice", 250))

	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.Equal(t, Read, h.engine.Mode())

	_, writes := h.transport.stats()
	require.Len(t, writes, 1)
	rec, err := codec.Decode(writes[0])
	require.NoError(t, err)
	assert.Equal(t, models.CardRecord{Holder: "Alice", Balance: 300}, rec)

	card, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, alice, card.ID)
	assert.Equal(t, float32(300), card.Data.Balance)

	entries := h.history(alice)
	require.Len(t, entries, 1)
	assert.Equal(t, 300.0, entries[0].Balance)
	assert.Equal(t, &models.OperationRecord{Kind: models.OperationIncrease, Amount: 50, Note: "pocket money"}, entries[0].Operation)
}

func TestDecreaseDeclined(t *testing.T) {
	h := newHarness(t, nil, Options{})
	bob := identity.Derive(serialBob)

	h.apply(Intent{Mode: Decrease, Amount: 100, Overdraft: policy.Decline})
	h.transport.present(bankTag(serialBob, "Bob", 30))

	n := h.endOfCycle()
	assert.Equal(t, models.LevelError, n.Level)
	assert.True(t, errors.Is(errors.PolicyRejected, n.Err))
	assert.Equal(t, Read, h.engine.Mode())

	attempts, _ := h.transport.stats()
	assert.Zero(t, attempts)
	assert.Empty(t, h.history(bob))

	card, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, float32(30), card.Data.Balance)
}

func TestDecreaseOverdraftPolicies(t *testing.T) {
	tests := []struct {
		policy policy.Policy
		want   float32
	}{
		{policy: policy.Zero, want: 0},
		{policy: policy.Negative, want: -70},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			h := newHarness(t, nil, Options{})

			h.apply(Intent{Mode: Decrease, Amount: 100, Overdraft: tt.policy})
			h.transport.present(bankTag(serialBob, "Bob", 30))

			warning := h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelWarning })
			assert.NotEmpty(t, warning.Title)
			n := h.endOfCycle()
			assert.Equal(t, models.LevelSuccess, n.Level)

			_, writes := h.transport.stats()
			require.Len(t, writes, 1)
			rec, err := codec.Decode(writes[0])
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Balance)

			entries := h.history(identity.Derive(serialBob))
			require.Len(t, entries, 1)
			assert.Equal(t, models.OperationDecrease, entries[0].Operation.Kind)
			assert.Equal(t, 100.0, entries[0].Operation.Amount)
		})
	}
}

func TestIncreaseUnregisteredCard(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.apply(Intent{Mode: Increase, Amount: 10})
	h.transport.present(models.TagEvent{SerialNumber: serialBlank})

	n := h.endOfCycle()
	assert.True(t, errors.Is(errors.NotRegistered, n.Err))
	assert.Equal(t, Read, h.engine.Mode())

	attempts, _ := h.transport.stats()
	assert.Zero(t, attempts)

	card, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, identity.Derive(serialBlank), card.ID)
	assert.False(t, card.Registered())
}

func TestRepairUnknownCardWithoutDirectoryEntry(t *testing.T) {
	h := newHarness(t, directory.NewStatic(nil), Options{})

	h.apply(Intent{Mode: Repair, Amount: 100, Source: SearchDirectory})
	h.transport.present(models.TagEvent{SerialNumber: serialBlank})

	n := h.endOfCycle()
	assert.True(t, errors.Is(errors.NotRegistered, n.Err))
	assert.Equal(t, Read, h.engine.Mode())

	attempts, _ := h.transport.stats()
	assert.Zero(t, attempts)
	assert.Empty(t, h.history(identity.Derive(serialBlank)))
}

func TestRepairFromDirectory(t *testing.T) {
	blank := identity.Derive(serialBlank)
	dir := directory.NewStatic(map[models.CardIdentity]string{blank: "  Jiří Novák "})
	h := newHarness(t, dir, Options{})

	h.apply(Intent{Mode: Repair, Amount: 500, Note: "new card"})
	h.transport.present(models.TagEvent{SerialNumber: serialBlank})

	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)

	_, writes := h.transport.stats()
	require.Len(t, writes, 1)
	rec, err := codec.Decode(writes[0])
	require.NoError(t, err)
	assert.Equal(t, models.CardRecord{Holder: "Jiri Novak", Balance: 500}, rec)

	card, _ := h.engine.Current()
	assert.Equal(t, float32(500), card.Data.Balance)

	entries := h.history(blank)
	require.Len(t, entries, 1)
	assert.Equal(t, &models.OperationRecord{Kind: models.OperationRepair, Amount: 500, Note: "new card"}, entries[0].Operation)
}

func TestRepairConflictThenRescan(t *testing.T) {
	h := newHarness(t, nil, Options{})

	// Operator holds Alice's card.
	h.apply(Intent{Mode: Read})
	h.transport.present(bankTag(serialAlice, "Alice", 10))
	h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelInfo })

	// Bob's live card is presented for repair.
	h.apply(Intent{Mode: Repair, Amount: 0, Source: ManualEntry, Holder: "Žofie"})
	h.transport.present(bankTag(serialBob, "Bob", 75))

	n := h.endOfCycle()
	assert.True(t, errors.Is(errors.OwnershipConflict, n.Err))
	assert.Equal(t, Read, h.engine.Mode())
	attempts, _ := h.transport.stats()
	assert.Zero(t, attempts)

	// Scanning the same card again in repair overwrites it.
	h.apply(Intent{Mode: Repair, Amount: 20, Source: ManualEntry, Holder: "Žofie"})
	h.transport.present(bankTag(serialBob, "Bob", 75))

	n = h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)

	_, writes := h.transport.stats()
	require.Len(t, writes, 1)
	rec, err := codec.Decode(writes[0])
	require.NoError(t, err)
	assert.Equal(t, models.CardRecord{Holder: "Zofie", Balance: 20}, rec)
}

func TestRepairHeldCardNeedsNoConfirmation(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.apply(Intent{Mode: Read})
	h.transport.present(bankTag(serialAlice, "Alice", 10))
	h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelInfo })

	h.apply(Intent{Mode: Repair, Amount: 0, Source: ManualEntry, Holder: "Alice B."})
	h.transport.present(bankTag(serialAlice, "Alice", 10))

	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)
}

func TestRepairManualWithoutName(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.apply(Intent{Mode: Repair, Amount: 0, Source: ManualEntry, Holder: "   "})
	h.transport.present(models.TagEvent{SerialNumber: serialBlank})

	n := h.endOfCycle()
	assert.True(t, errors.Is(errors.NotRegistered, n.Err))
}

func TestWriteRetriesUntilSuccess(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.transport.failWrites = 2
	h.transport.gate = make(chan struct{})

	h.apply(Intent{Mode: Increase, Amount: 50})
	h.transport.present(bankTag(serialAlice, "Alice", 250))

	for want := 1; want <= 3; want++ {
		select {
		case got := <-h.transport.attemptCh:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d never happened", want)
		}
	}

	// The third attempt is in flight: nothing is committed yet.
	assert.Equal(t, Increase, h.engine.Mode())
	assert.Empty(t, h.history(identity.Derive(serialAlice)))

	close(h.transport.gate)
	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.Equal(t, Read, h.engine.Mode())

	attempts, writes := h.transport.stats()
	assert.Equal(t, 3, attempts)
	assert.Len(t, writes, 1)
	assert.Len(t, h.history(identity.Derive(serialAlice)), 1)
}

func TestBoundedRetryGivesUp(t *testing.T) {
	tests := []struct {
		name  string
		retry RetryConfig
	}{
		{name: "one attempt", retry: RetryConfig{MaxAttempts: 1}},
		{name: "three immediate attempts", retry: RetryConfig{MaxAttempts: 3}},
		{name: "three paced attempts", retry: RetryConfig{MaxAttempts: 3, MinInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := harnessFor(t, nil, Options{Retry: tt.retry})
			h.transport.failWrites = 1000

			h.apply(Intent{Mode: Increase, Amount: 5})
			h.transport.present(bankTag(serialAlice, "Alice", 1))

			n := h.endOfCycle()
			assert.True(t, errors.Is(errors.WriteFailed, n.Err))
			assert.Contains(t, n.Err.Error(), fmt.Sprintf("after %d attempts", tt.retry.MaxAttempts))
			assert.Equal(t, Read, h.engine.Mode())
			assert.Empty(t, h.history(identity.Derive(serialAlice)))

			attempts, _ := h.transport.stats()
			assert.Equal(t, tt.retry.MaxAttempts, attempts)
		})
	}
}

func TestUnlimitedImmediateRetry(t *testing.T) {
	h := harnessFor(t, nil, Options{})
	h.transport.failWrites = 2

	h.apply(Intent{Mode: Increase, Amount: 50})
	h.transport.present(bankTag(serialAlice, "Alice", 250))

	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.Equal(t, Read, h.engine.Mode())

	attempts, writes := h.transport.stats()
	assert.Equal(t, 3, attempts)
	assert.Len(t, writes, 1)
	assert.Len(t, h.history(identity.Derive(serialAlice)), 1)
}

func TestReadRejectsNonFiniteBalance(t *testing.T) {
	payloads := map[string][]byte{
		"positive infinity": {0x00, 0x00, 0x80, 0x7f},
		"negative infinity": {0x00, 0x00, 0x80, 0xff},
		"nan":               {0x00, 0x00, 0xc0, 0x7f},
	}

	for name, bal := range payloads {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil, Options{RecordReads: true})
			h.apply(Intent{Mode: Read})
			h.transport.present(models.TagEvent{SerialNumber: serialAlice, Fields: []models.Field{
				{Tag: models.FieldBalance, Payload: bal},
				{Tag: models.FieldName, Payload: []byte("Alice")},
			}})

			n := h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelError })
			assert.True(t, errors.Is(errors.Decode, n.Err))
			card, ok := h.engine.Current()
			require.True(t, ok)
			assert.False(t, card.Registered())
			assert.Empty(t, h.history(identity.Derive(serialAlice)))

			// The engine keeps reading.
			h.transport.present(bankTag(serialBob, "Bob", 30))
			n = h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelInfo })
			assert.Equal(t, "Bob", n.Title)
		})
	}
}

func TestAdjustRejectsBalanceOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		balance float32
	}{
		{name: "increase overflow", intent: Intent{Mode: Increase, Amount: math.MaxFloat32}, balance: math.MaxFloat32},
		{name: "overdraft underflow", intent: Intent{Mode: Decrease, Amount: math.MaxFloat32, Overdraft: policy.Negative}, balance: -math.MaxFloat32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, Options{})
			h.apply(tt.intent)
			h.transport.present(bankTag(serialAlice, "Alice", tt.balance))

			n := h.endOfCycle()
			assert.Equal(t, models.LevelError, n.Level)
			assert.True(t, errors.Is(errors.Invalid, n.Err))
			assert.Equal(t, Read, h.engine.Mode())

			attempts, _ := h.transport.stats()
			assert.Zero(t, attempts)
			assert.Empty(t, h.history(identity.Derive(serialAlice)))
		})
	}
}

func TestReadReportsUnrecognizedTags(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.apply(Intent{Mode: Read})
	h.transport.present(models.TagEvent{SerialNumber: serialBlank, Fields: []models.Field{{Tag: "url", Payload: []byte("x")}}})

	n := h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelError })
	assert.True(t, errors.Is(errors.Decode, n.Err))
	assert.False(t, n.EndsCycle)
	assert.Equal(t, Read, h.engine.Mode())

	card, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, identity.Derive(serialBlank), card.ID)
	assert.False(t, card.Registered())

	// The scan stays armed for the next tag.
	h.transport.present(bankTag(serialAlice, "Alice", 12))
	h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelInfo })
	card, _ = h.engine.Current()
	assert.Equal(t, "Alice", card.Data.Holder)
	assert.Empty(t, h.history(identity.Derive(serialAlice)))
}

func TestRecordReads(t *testing.T) {
	h := newHarness(t, nil, Options{RecordReads: true})

	h.apply(Intent{Mode: History})
	h.transport.present(bankTag(serialAlice, "Alice", 12))
	h.waitFor(func(n models.Notification) bool { return n.Level == models.LevelInfo })

	entries, err := h.engine.History(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Operation)
	assert.Equal(t, 12.0, entries[0].Balance)
}

func TestModeSwitchStopsPreviousScan(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.apply(Intent{Mode: Increase, Amount: 50})
	h.apply(Intent{Mode: Read})

	old := h.transport.subscription(0)
	assert.Error(t, old.ctx.Err())

	old.ch <- bankTag(serialAlice, "Alice", 250)
	select {
	case n := <-h.notes.C():
		t.Fatalf("superseded scan produced %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
	attempts, _ := h.transport.stats()
	assert.Zero(t, attempts)
	_, ok := h.engine.Current()
	assert.False(t, ok)
}

func TestModeSwitchDoesNotInterruptWrite(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.transport.gate = make(chan struct{})

	h.apply(Intent{Mode: Increase, Amount: 50})
	h.transport.present(bankTag(serialAlice, "Alice", 250))
	<-h.transport.attemptCh

	h.apply(Intent{Mode: Decrease, Amount: 1})
	close(h.transport.gate)

	n := h.endOfCycle()
	assert.Equal(t, models.LevelSuccess, n.Level)
	assert.Len(t, h.history(identity.Derive(serialAlice)), 1)
	// The newer intent is kept.
	assert.Equal(t, Decrease, h.engine.Mode())
}

func TestRunReportsReadingErrors(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	h.transport.errs <- stderrors.New("antenna detuned")
	n := h.waitFor(func(n models.Notification) bool { return n.Title == "NFC reading error" })
	assert.True(t, errors.Is(errors.Transport, n.Err))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestHistoryWithoutCard(t *testing.T) {
	h := newHarness(t, nil, Options{})

	entries, err := h.engine.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplyValidatesIntent(t *testing.T) {
	h := newHarness(t, nil, Options{})

	err := h.engine.Apply(h.ctx, Intent{Mode: Increase, Amount: -5})
	assert.True(t, errors.Is(errors.Invalid, err))

	err = h.engine.Apply(h.ctx, Intent{Mode: Decrease, Amount: 5, Overdraft: "maybe"})
	assert.True(t, errors.Is(errors.Invalid, err))

	err = h.engine.Apply(h.ctx, Intent{Mode: Repair, Source: "guess"})
	assert.True(t, errors.Is(errors.Invalid, err))

	err = h.engine.Apply(h.ctx, Intent{Mode: Mode(42)})
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Decrease")
	require.NoError(t, err)
	assert.Equal(t, Decrease, m)

	_, err = ParseMode("withdraw")
	assert.Error(t, err)
}
