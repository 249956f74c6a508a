package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-kiosk/pkg/order"
)

func hamItem() *order.Item {
	return &order.Item{
		Menu:       "햄",
		Bread:      "플랫브레드",
		Cheese:     "아메리칸치즈",
		Vegetables: []string{"양상추", "피클", "올리브"},
		Sauces:     []string{"허니 머스타드", "랜치"},
		Quantity:   2,
	}
}

func TestIngredientOps(t *testing.T) {
	ops := IngredientOps(hamItem())
	if want := []string{"플랫브레드", "올리브", "랜치"}; !reflect.DeepEqual(ops.Add, want) {
		t.Errorf("ADD = %v, want %v", ops.Add, want)
	}
	if want := []string{"토마토"}; !reflect.DeepEqual(ops.Exclude, want) {
		t.Errorf("EXCLUDE = %v, want %v", ops.Exclude, want)
	}
}

func TestIngredientOpsTemplateIsEmpty(t *testing.T) {
	it := &order.Item{
		Menu:       "햄",
		Bread:      "위트",
		Cheese:     "아메리칸치즈",
		Vegetables: []string{"피클", "양상추", "토마토"},
		Sauces:     []string{"허니 머스타드"},
	}
	if ops := IngredientOps(it); !ops.Empty() {
		t.Errorf("expected no ops, got %+v", ops)
	}
}

func TestIngredientOpsUnknownMenu(t *testing.T) {
	it := &order.Item{Menu: "없는메뉴", Bread: "위트", Vegetables: []string{"오이"}}
	ops := IngredientOps(it)
	if want := []string{"위트", "오이"}; !reflect.DeepEqual(ops.Add, want) {
		t.Errorf("ADD = %v, want %v", ops.Add, want)
	}
	if len(it.Vegetables) != 1 {
		t.Errorf("item mutated: %v", it.Vegetables)
	}
}

func TestNormalizeReceipt(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Receipt
	}{
		{
			name: "items",
			body: `{"order_id":7,"status":"confirmed","total_cents":15800,"items":[
				{"id":3,"menu_id":9,"name":"햄","size_cm":30,"quantity":2,"unit_price_cents":7900,
				 "ingredients_ops":{"ADD":["올리브"],"EXCLUDE":[]}}]}`,
			want: Receipt{OrderID: 7, Status: StatusConfirmed, TotalCents: 15800, Items: []ReceiptItem{
				{ID: 3, MenuID: 9, Name: "햄", SizeCM: 30, Quantity: 2, UnitPriceCents: 7900,
					IngredientsOps: IngredientsOps{Add: []string{"올리브"}, Exclude: []string{}}},
			}},
		},
		{
			name: "order_items with fallbacks",
			body: `{"order_id":"8","status":"weird","order_items":[
				{"menu_id":1,"name":"참치","size_cm":20,"quantity":0,"price_cents":5000},
				{"menu_id":2,"name":"베지","unit_price_cents":null,"price_cents":4500,"quantity":2}]}`,
			want: Receipt{OrderID: 8, Status: StatusPending, TotalCents: 14000, Items: []ReceiptItem{
				{ID: 1, MenuID: 1, Name: "참치", SizeCM: 15, Quantity: 1, UnitPriceCents: 5000,
					IngredientsOps: IngredientsOps{Add: []string{}, Exclude: []string{}}},
				{ID: 2, MenuID: 2, Name: "베지", SizeCM: 15, Quantity: 2, UnitPriceCents: 4500,
					IngredientsOps: IngredientsOps{Add: []string{}, Exclude: []string{}}},
			}},
		},
		{
			name: "data.items",
			body: `{"status":"CANCELLED","created_at":"2025-01-01T00:00:00Z","data":{"items":[]}}`,
			want: Receipt{Status: StatusCancelled, CreatedAt: "2025-01-01T00:00:00Z", Items: []ReceiptItem{}},
		},
		{
			name: "no items",
			body: `{}`,
			want: Receipt{Status: StatusPending, Items: []ReceiptItem{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeReceipt([]byte(tt.body))
			if err != nil {
				t.Fatalf("NormalizeReceipt: %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("got  %+v\nwant %+v", *got, tt.want)
			}
		})
	}
}

func TestNormalizeReceiptInvalidJSON(t *testing.T) {
	if _, err := NormalizeReceipt([]byte(`[`)); err == nil {
		t.Error("expected error")
	}
}

// fakeOrderService is an in-memory order service. The failAt-th item POST
// (1-based) answers 503; commit stores that line before failing, as when a
// proxy loses the response.
type fakeOrderService struct {
	mu        sync.Mutex
	next      int
	orders    map[int]*fakeOrder
	itemPosts int
	failAt    int
	commit    bool
}

type fakeOrder struct {
	lines     []ItemRequest
	confirmed bool
}

func newFakeOrderService() *fakeOrderService {
	return &fakeOrderService{next: 42, orders: map[int]*fakeOrder{}}
}

func (f *fakeOrderService) order(r *http.Request) (*fakeOrder, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return nil, false
	}
	o, ok := f.orders[id]
	return o, ok
}

func (f *fakeOrderService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /menus/popular", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Menu{
			{ID: 5, Name: "햄", Price15Cents: 5900, Price30Cents: 9900},
			{ID: 6, Name: "참치", Price15Cents: 6200, Price30Cents: 10400},
		})
	})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := f.next
		f.next++
		f.orders[id] = &fakeOrder{}
		fmt.Fprintf(w, `{"order_id": %d}`, id)
	})
	mux.HandleFunc("POST /orders/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		var req ItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode item: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.order(r)
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.itemPosts++
		if f.itemPosts == f.failAt {
			if f.commit {
				o.lines = append(o.lines, req)
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		o.lines = append(o.lines, req)
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("POST /orders/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.order(r)
		if !ok {
			http.NotFound(w, r)
			return
		}
		o.confirmed = true
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.order(r)
		if !ok {
			http.NotFound(w, r)
			return
		}
		status := "PENDING"
		if o.confirmed {
			status = "CONFIRMED"
		}
		items := make([]map[string]any, 0, len(o.lines))
		for _, l := range o.lines {
			items = append(items, map[string]any{
				"menu_id":          l.MenuID,
				"quantity":         l.Quantity,
				"size_cm":          l.SizeCM,
				"unit_price_cents": 5900,
				"ingredients_ops":  l.IngredientsOps,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"order_id": r.PathValue("id"), "status": status, "items": items})
	})
	return mux
}

func TestSubmit(t *testing.T) {
	fake := newFakeOrderService()
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c, err := New(WithBaseURL(server.URL + "/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	receipt, err := c.Submit(context.Background(), 0, []*order.Item{hamItem()})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if receipt.OrderID != 42 || receipt.Status != StatusConfirmed {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if receipt.TotalCents != 11800 {
		t.Errorf("total = %d, want 11800", receipt.TotalCents)
	}
	lines := fake.orders[42].lines
	if len(lines) != 1 {
		t.Fatalf("lines = %d", len(lines))
	}
	line := lines[0]
	if line.MenuID != 5 || line.Quantity != 2 || line.SizeCM != 15 {
		t.Errorf("unexpected line: %+v", line)
	}
	if !reflect.DeepEqual(line.IngredientsOps.Exclude, []string{"토마토"}) {
		t.Errorf("EXCLUDE = %v", line.IngredientsOps.Exclude)
	}
}

func TestSubmitUnknownMenu(t *testing.T) {
	fake := newFakeOrderService()
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL))
	_, err := c.Submit(context.Background(), 0, []*order.Item{{Menu: "베지", Quantity: 1}})
	if !errors.Is(err, ErrUnknownMenu) {
		t.Errorf("Expected ErrUnknownMenu, got %v", err)
	}
	if len(fake.orders) != 0 {
		t.Error("no order should have been created")
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	c, _ := New()
	if _, err := c.Submit(context.Background(), 0, nil); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}
}

func TestSubmitDoesNotRepeatPosts(t *testing.T) {
	fake := newFakeOrderService()
	fake.failAt = 1
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	_, err := c.Submit(context.Background(), 0, []*order.Item{hamItem()})

	var submitErr *SubmitError
	if !errors.As(err, &submitErr) || submitErr.OrderID != 42 {
		t.Fatalf("Expected SubmitError for order 42, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected wrapped 503, got %v", err)
	}
	if fake.itemPosts != 1 {
		t.Errorf("item POSTs = %d, want 1", fake.itemPosts)
	}
	if len(fake.orders) != 1 {
		t.Errorf("orders = %d, want 1", len(fake.orders))
	}
}

func TestSubmitResumesPendingOrder(t *testing.T) {
	tuna := &order.Item{Menu: "참치", Quantity: 1}

	tests := []struct {
		name   string
		commit bool
	}{
		{"line rejected", false},
		{"response lost after commit", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeOrderService()
			fake.failAt, fake.commit = 2, tt.commit
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			c, _ := New(WithBaseURL(server.URL))
			cart := []*order.Item{hamItem(), tuna}

			_, err := c.Submit(context.Background(), 0, cart)
			var submitErr *SubmitError
			if !errors.As(err, &submitErr) {
				t.Fatalf("Expected SubmitError, got %v", err)
			}

			receipt, err := c.Submit(context.Background(), submitErr.OrderID, cart)
			if err != nil {
				t.Fatalf("resume: %v", err)
			}
			if receipt.OrderID != 42 || receipt.Status != StatusConfirmed {
				t.Errorf("unexpected receipt: %+v", receipt)
			}
			if len(fake.orders) != 1 {
				t.Errorf("orders = %d, want 1", len(fake.orders))
			}
			lines := fake.orders[42].lines
			if len(lines) != 2 || lines[0].MenuID != 5 || lines[1].MenuID != 6 {
				t.Errorf("unexpected lines: %+v", lines)
			}
		})
	}
}

func TestSubmitReturnsConfirmedPendingOrder(t *testing.T) {
	fake := newFakeOrderService()
	fake.orders[42] = &fakeOrder{
		lines:     []ItemRequest{{MenuID: 5, Quantity: 2, SizeCM: 15}},
		confirmed: true,
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL))
	receipt, err := c.Submit(context.Background(), 42, []*order.Item{hamItem()})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.OrderID != 42 || receipt.Status != StatusConfirmed {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if fake.itemPosts != 0 || len(fake.orders) != 1 {
		t.Errorf("posts=%d orders=%d", fake.itemPosts, len(fake.orders))
	}
}

func TestSubmitAbandonsMismatchedOrder(t *testing.T) {
	fake := newFakeOrderService()
	fake.orders[42] = &fakeOrder{lines: []ItemRequest{{MenuID: 6, Quantity: 1, SizeCM: 15}}}
	fake.next = 43
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL))
	receipt, err := c.Submit(context.Background(), 42, []*order.Item{hamItem()})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.OrderID != 43 {
		t.Errorf("order = %d, want a new order 43", receipt.OrderID)
	}
	if len(fake.orders[42].lines) != 1 || fake.orders[42].confirmed {
		t.Error("abandoned order should be untouched")
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":1,"name":"햄"}]`))
	}))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	menus, err := c.PopularMenus(context.Background())
	if err != nil {
		t.Fatalf("PopularMenus: %v", err)
	}
	if len(menus) != 1 || attempts.Load() != 3 {
		t.Errorf("menus=%v attempts=%d", menus, attempts.Load())
	}
}

func TestAPIErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"detail":"Order not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c, _ := New(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	_, err := c.Receipt(context.Background(), 9)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		t.Fatalf("Expected 404 APIError, got %v", err)
	}
	if apiErr.Path != "/orders/9" || attempts.Load() != 1 {
		t.Errorf("path=%s attempts=%d", apiErr.Path, attempts.Load())
	}
}

func TestMenuUnitPrice(t *testing.T) {
	m := Menu{PriceCents: 5000, Price30Cents: 9000}
	if m.UnitPrice(15) != 5000 || m.UnitPrice(30) != 9000 {
		t.Errorf("UnitPrice: %d %d", m.UnitPrice(15), m.UnitPrice(30))
	}
	m.Price15Cents = 5500
	if m.UnitPrice(15) != 5500 {
		t.Errorf("UnitPrice(15) = %d", m.UnitPrice(15))
	}
}
