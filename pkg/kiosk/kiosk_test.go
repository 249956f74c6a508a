package kiosk

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-kiosk/pkg/backend"
	"github.com/teslashibe/go-kiosk/pkg/events"
	"github.com/teslashibe/go-kiosk/pkg/intent"
	"github.com/teslashibe/go-kiosk/pkg/order"
	"github.com/teslashibe/go-kiosk/pkg/session"
	"github.com/teslashibe/go-kiosk/pkg/tts"
)

// sourceFunc adapts a function to intent.Source.
type sourceFunc func(ctx context.Context, req *intent.Request) (*intent.Reply, error)

func (f sourceFunc) Infer(ctx context.Context, req *intent.Request) (*intent.Reply, error) {
	return f(ctx, req)
}

type fakeBackend struct {
	mu       sync.Mutex
	carts    [][]*order.Item
	pendings []int
	err      error
	errs     []error // returned first, one per call
}

func (f *fakeBackend) Submit(ctx context.Context, pending int, cart []*order.Item) (*backend.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendings = append(f.pendings, pending)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.carts = append(f.carts, cart)
	return &backend.Receipt{OrderID: 101, Status: backend.StatusConfirmed, TotalCents: 5900}, nil
}

type fixture struct {
	svc     *Service
	events  *events.Recorder
	backend *fakeBackend
	speech  *tts.Mock
	updates []session.Snapshot
	mu      sync.Mutex
}

func newFixture(t *testing.T, source intent.Source, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		events:  &events.Recorder{},
		backend: &fakeBackend{},
		speech:  tts.NewMock(),
	}
	sessions := session.NewManager(session.NewMemoryStore(time.Hour))
	base := []Option{WithPublisher(f.events), WithBackend(f.backend), WithSpeech(f.speech)}
	f.svc = New(sessions, source, append(base, opts...)...)
	f.svc.OnUpdate(func(s session.Snapshot) {
		f.mu.Lock()
		f.updates = append(f.updates, s)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	snap, err := f.svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return snap.ID
}

func TestTurnWithRules(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	id := f.create(t)
	ctx := context.Background()

	res, err := f.svc.Turn(ctx, id, "햄 주세요")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.State.CurrentItem == nil || res.State.CurrentItem.Menu != "햄" {
		t.Fatalf("unexpected state: %+v", res.State)
	}
	if res.Reply == "" || string(res.Audio) != "ID3mock" || res.AudioType != "audio/mpeg" {
		t.Errorf("reply=%q audio=%q type=%q", res.Reply, res.Audio, res.AudioType)
	}
	if f.speech.LastText() != res.Reply {
		t.Errorf("spoke %q, replied %q", f.speech.LastText(), res.Reply)
	}

	if _, err := f.svc.Turn(ctx, id, "담아주세요"); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	res, err = f.svc.Turn(ctx, id, "결제할게요")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.State.Status != order.StatusReady || len(res.State.Cart) != 1 {
		t.Errorf("unexpected state: %+v", res.State)
	}
	if got := f.events.Types(); !slices.Equal(got, []events.Type{events.TypeConfirmed}) {
		t.Errorf("events = %v", got)
	}
	if len(f.updates) != 3 {
		t.Errorf("updates = %d, want 3", len(f.updates))
	}
}

func TestTurnRecordsHistory(t *testing.T) {
	var seen [][]intent.Turn
	source := sourceFunc(func(ctx context.Context, req *intent.Request) (*intent.Reply, error) {
		seen = append(seen, slices.Clone(req.History))
		return &intent.Reply{Text: "네"}, nil
	})
	f := newFixture(t, source)
	id := f.create(t)

	f.svc.Turn(context.Background(), id, "안녕하세요")
	f.svc.Turn(context.Background(), id, "메뉴 알려주세요")

	if len(seen) != 2 || len(seen[1]) != 3 {
		t.Fatalf("history = %v", seen)
	}
	want := []intent.Turn{
		{Role: intent.RoleUser, Text: "안녕하세요"},
		{Role: intent.RoleAssistant, Text: "네"},
		{Role: intent.RoleUser, Text: "메뉴 알려주세요"},
	}
	if !slices.Equal(seen[1], want) {
		t.Errorf("history = %v", seen[1])
	}
}

func TestTurnGuardsSourceCommands(t *testing.T) {
	source := sourceFunc(func(ctx context.Context, req *intent.Request) (*intent.Reply, error) {
		return &intent.Reply{
			Text:     "토마토 빼드렸습니다!",
			Commands: []order.Command{order.RemoveVegetables("토마토")},
		}, nil
	})
	f := newFixture(t, source)
	id := f.create(t)

	res, err := f.svc.Turn(context.Background(), id, "토마토 빼주세요")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if len(res.Results) != 0 || len(res.Rejected) != 1 {
		t.Errorf("results=%v rejected=%v", res.Results, res.Rejected)
	}
	if res.State.Status != order.StatusInit {
		t.Errorf("status = %s", res.State.Status)
	}
}

func TestTurnRejectionsUseSourcePositions(t *testing.T) {
	source := sourceFunc(func(ctx context.Context, req *intent.Request) (*intent.Reply, error) {
		// The source parsed four commands and filtered positions 0 and 2.
		return &intent.Reply{
			Text:     "햄 샌드위치를 시작할게요.",
			Commands: []order.Command{order.StartItem(), order.StartItem()},
			Rejected: []order.Rejection{
				{Index: 0, Command: order.AddToCart(), Reason: "no current item"},
				{Index: 2, Command: order.SelectBread("위트"), Reason: "no current item"},
			},
		}, nil
	})
	f := newFixture(t, source)
	id := f.create(t)

	res, err := f.svc.Turn(context.Background(), id, "햄 주세요")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Action != order.ActionStartItem {
		t.Errorf("results = %v", res.Results)
	}

	var idx []int
	for _, r := range res.Rejected {
		idx = append(idx, r.Index)
	}
	if !slices.Equal(idx, []int{0, 2, 3}) {
		t.Errorf("rejected indices = %v, want [0 2 3]", idx)
	}
	if res.Rejected[2].Command.Action != order.ActionStartItem {
		t.Errorf("position 3 = %+v", res.Rejected[2])
	}
}

func TestRebase(t *testing.T) {
	rej := func(i ...int) []order.Rejection {
		var out []order.Rejection
		for _, n := range i {
			out = append(out, order.Rejection{Index: n})
		}
		return out
	}
	tests := []struct {
		name         string
		prior, later []order.Rejection
		want         []int
	}{
		{"no prior", nil, rej(0, 2), []int{0, 2}},
		{"no later", rej(1), nil, []int{1}},
		{"interleaved", rej(0, 2), rej(0, 1), []int{0, 1, 2, 3}},
		{"after gap", rej(1, 2), rej(1), []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, r := range rebase(tt.prior, tt.later) {
				got = append(got, r.Index)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTurnErrors(t *testing.T) {
	boom := errors.New("boom")
	f := newFixture(t, sourceFunc(func(ctx context.Context, req *intent.Request) (*intent.Reply, error) {
		return nil, boom
	}))
	id := f.create(t)

	if _, err := f.svc.Turn(context.Background(), id, "  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank turn = %v", err)
	}
	if _, err := f.svc.Turn(context.Background(), id, "햄"); !errors.Is(err, boom) {
		t.Errorf("source error = %v", err)
	}
	if _, err := f.svc.Turn(context.Background(), "missing", "햄"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("unknown session = %v", err)
	}

	snap, _ := f.svc.Get(context.Background(), id)
	if snap.Status != order.StatusInit {
		t.Errorf("failed turn mutated state: %+v", snap)
	}
}

func TestSpeechFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	f.speech.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		return nil, tts.ErrProviderUnavailable
	}
	id := f.create(t)

	res, err := f.svc.Turn(context.Background(), id, "참치 주세요")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Audio != nil || res.Reply == "" {
		t.Errorf("audio=%v reply=%q", res.Audio, res.Reply)
	}
}

func TestExecute(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	id := f.create(t)

	res, err := f.svc.Execute(context.Background(), id, []order.Command{
		order.StartItem(), order.SelectMenu("베지"), order.AddToCart(), order.SelectBread("위트"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Results) != 3 || len(res.Rejected) != 1 || res.Rejected[0].Index != 3 {
		t.Errorf("results=%v rejected=%v", res.Results, res.Rejected)
	}
	if len(res.State.Cart) != 1 || res.State.CurrentItem != nil {
		t.Errorf("unexpected state: %+v", res.State)
	}
}

func TestCancelPublishesEvent(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	id := f.create(t)

	f.svc.Execute(context.Background(), id, []order.Command{order.StartItem(), order.CancelOrder()})
	if got := f.events.Types(); !slices.Equal(got, []events.Type{events.TypeCancelled}) {
		t.Errorf("events = %v", got)
	}
	f.svc.Execute(context.Background(), id, []order.Command{order.CancelOrder()})
	if len(f.events.Types()) != 1 {
		t.Errorf("repeat cancel published again: %v", f.events.Types())
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	id := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Checkout(ctx, id); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Checkout before confirm = %v", err)
	}

	f.svc.Execute(ctx, id, []order.Command{
		order.StartItem(), order.SelectMenu("햄"), order.AddToCart(), order.ConfirmOrder(),
	})
	res, err := f.svc.Checkout(ctx, id)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Receipt.OrderID != 101 || res.State.Status != order.StatusCompleted || res.State.OrderID != 101 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(f.backend.carts) != 1 || f.backend.carts[0][0].Menu != "햄" {
		t.Errorf("submitted = %v", f.backend.carts)
	}

	evs := f.events.Events()
	if len(evs) != 2 || evs[1].Type != events.TypeCompleted || evs[1].OrderID != 101 || evs[1].TotalCents != 5900 {
		t.Errorf("events = %+v", evs)
	}

	if _, err := f.svc.Checkout(ctx, id); !errors.Is(err, ErrNotReady) {
		t.Errorf("second checkout = %v", err)
	}
}

func TestCheckoutBackendFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	f.backend.err = errors.New("order service down")
	id := f.create(t)
	ctx := context.Background()

	f.svc.Execute(ctx, id, []order.Command{
		order.StartItem(), order.SelectMenu("햄"), order.AddToCart(), order.ConfirmOrder(),
	})
	if _, err := f.svc.Checkout(ctx, id); err == nil {
		t.Fatal("expected error")
	}
	snap, _ := f.svc.Get(ctx, id)
	if snap.Status != order.StatusReady || len(snap.Cart) != 1 {
		t.Errorf("failed checkout changed order: %+v", snap)
	}
}

func TestCheckoutResumesIncompleteOrder(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	f.backend.errs = []error{&backend.SubmitError{OrderID: 101, Err: errors.New("503")}}
	id := f.create(t)
	ctx := context.Background()

	f.svc.Execute(ctx, id, []order.Command{
		order.StartItem(), order.SelectMenu("햄"), order.AddToCart(), order.ConfirmOrder(),
	})

	_, err := f.svc.Checkout(ctx, id)
	var partial *backend.SubmitError
	if !errors.As(err, &partial) {
		t.Fatalf("expected SubmitError, got %v", err)
	}
	snap, _ := f.svc.Get(ctx, id)
	if snap.Status != order.StatusReady || snap.OrderID != 101 {
		t.Errorf("incomplete checkout should keep the order id: %+v", snap)
	}
	if slices.Contains(f.events.Types(), events.TypeCompleted) {
		t.Error("incomplete checkout published order.completed")
	}

	res, err := f.svc.Checkout(ctx, id)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.State.Status != order.StatusCompleted {
		t.Errorf("status = %s", res.State.Status)
	}
	if !slices.Equal(f.backend.pendings, []int{0, 101}) {
		t.Errorf("pending ids = %v, want [0 101]", f.backend.pendings)
	}
}

func TestCheckoutWithoutBackend(t *testing.T) {
	f := newFixture(t, intent.NewRules(), WithBackend(nil))
	id := f.create(t)
	ctx := context.Background()

	f.svc.Execute(ctx, id, []order.Command{
		order.StartItem(), order.SelectMenu("햄"), order.AddToCart(), order.ConfirmOrder(),
	})
	res, err := f.svc.Checkout(ctx, id)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Receipt != nil || res.State.Status != order.StatusCompleted {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestConcurrentTurnsAreSerialised(t *testing.T) {
	f := newFixture(t, intent.NewRules(), WithSpeech(nil))
	id := f.create(t)
	ctx := context.Background()
	f.svc.Execute(ctx, id, []order.Command{order.StartItem(), order.SelectMenu("햄")})

	var wg sync.WaitGroup
	for _, veg := range []string{"올리브 추가해주세요", "할라피뇨 추가해주세요", "오이 추가해주세요"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if _, err := f.svc.Turn(ctx, id, text); err != nil {
				t.Errorf("Turn(%q): %v", text, err)
			}
		}(veg)
	}
	wg.Wait()

	snap, _ := f.svc.Get(ctx, id)
	for _, v := range []string{"올리브", "할라피뇨", "오이"} {
		if !slices.Contains(snap.CurrentItem.Vegetables, v) {
			t.Errorf("lost update: %s missing from %v", v, snap.CurrentItem.Vegetables)
		}
	}
}

func TestNotifyDropsStaleSnapshots(t *testing.T) {
	f := newFixture(t, intent.NewRules())
	id := f.create(t)

	f.svc.notify(session.Snapshot{ID: id, Version: 3, Status: order.StatusReady})
	f.svc.notify(session.Snapshot{ID: id, Version: 2, Status: order.StatusBuilding})
	f.svc.notify(session.Snapshot{ID: id, Version: 3, Status: order.StatusBuilding})
	f.svc.notify(session.Snapshot{ID: id, Version: 4, Status: order.StatusCompleted})

	if len(f.updates) != 2 || f.updates[0].Version != 3 || f.updates[1].Version != 4 {
		t.Fatalf("updates = %+v, want versions 3 and 4", f.updates)
	}

	if err := f.svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.svc.notify(session.Snapshot{ID: id, Version: 1})
	if len(f.updates) != 3 {
		t.Errorf("updates after delete = %d, want 3", len(f.updates))
	}
}

func TestConcurrentTurnsNotifyInOrder(t *testing.T) {
	f := newFixture(t, intent.NewRules(), WithSpeech(nil))
	id := f.create(t)
	ctx := context.Background()
	f.svc.Execute(ctx, id, []order.Command{order.StartItem(), order.SelectMenu("햄")})

	var wg sync.WaitGroup
	for _, veg := range []string{"올리브 추가해주세요", "할라피뇨 추가해주세요", "오이 추가해주세요"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			f.svc.Turn(ctx, id, text)
		}(veg)
	}
	wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < len(f.updates); i++ {
		if f.updates[i].Version <= f.updates[i-1].Version {
			t.Fatalf("update %d has version %d after %d", i, f.updates[i].Version, f.updates[i-1].Version)
		}
	}
	snap, _ := f.svc.Get(ctx, id)
	if last := f.updates[len(f.updates)-1]; last.Version != snap.Version || len(last.CurrentItem.Vegetables) != len(snap.CurrentItem.Vegetables) {
		t.Errorf("last update v%d, stored v%d", last.Version, snap.Version)
	}
}
