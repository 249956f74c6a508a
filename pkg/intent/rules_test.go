package intent

import (
	"context"
	"slices"
	"testing"

	"github.com/teslashibe/go-kiosk/pkg/order"
)

func building(t *testing.T, menu string) *order.State {
	t.Helper()
	s := order.NewState()
	order.ApplyAll(s, []order.Command{order.StartItem(), order.SelectMenu(menu)})
	return s
}

func withCart(t *testing.T, menus ...string) *order.State {
	t.Helper()
	s := order.NewState()
	for _, m := range menus {
		order.ApplyAll(s, []order.Command{order.StartItem(), order.SelectMenu(m), order.AddToCart()})
	}
	return s
}

func actions(cmds []order.Command) []order.Action {
	out := make([]order.Action, len(cmds))
	for i, c := range cmds {
		out[i] = c.Action
	}
	return out
}

func TestParseStartsItem(t *testing.T) {
	cmds := Parse("햄 주세요", order.NewState())

	want := []order.Action{order.ActionStartItem, order.ActionSelectMenu}
	if !slices.Equal(actions(cmds), want) {
		t.Fatalf("actions = %v, want %v", actions(cmds), want)
	}
	if cmds[1].Menu != "햄" {
		t.Errorf("menu = %s", cmds[1].Menu)
	}
}

func TestParseQuickOrder(t *testing.T) {
	cmds := Parse("햄 추천으로 담아주세요", order.NewState())

	want := []order.Action{order.ActionStartItem, order.ActionSelectMenu, order.ActionAddToCart}
	if !slices.Equal(actions(cmds), want) {
		t.Errorf("actions = %v, want %v", actions(cmds), want)
	}
}

func TestParseVegetableEdits(t *testing.T) {
	cmds := Parse("토마토 빼고 올리브 추가해주세요", building(t, "햄"))

	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %+v", cmds)
	}
	if cmds[0].Action != order.ActionRemoveVegetables || !slices.Equal(cmds[0].RemoveVegetables, []string{"토마토"}) {
		t.Errorf("first = %+v", cmds[0])
	}
	if cmds[1].Action != order.ActionAddVegetables || !slices.Equal(cmds[1].AddVegetables, []string{"올리브"}) {
		t.Errorf("second = %+v", cmds[1])
	}
}

func TestParseGroupedRemoval(t *testing.T) {
	cmds := Parse("토마토랑 양파 없이 해주세요", building(t, "참치"))

	if len(cmds) != 1 || !slices.Equal(cmds[0].RemoveVegetables, []string{"토마토", "양파"}) {
		t.Errorf("unexpected commands: %+v", cmds)
	}
}

func TestParseLongestMatchWins(t *testing.T) {
	cmds := Parse("스위트 어니언 추가하고 올리브오일도 넣어주세요", building(t, "햄"))

	if len(cmds) != 1 || cmds[0].Action != order.ActionAddSauce {
		t.Fatalf("expected one add_sauce, got %+v", cmds)
	}
	if !slices.Equal(cmds[0].AddSauces, []string{"스위트 어니언", "올리브오일"}) {
		t.Errorf("sauces = %v", cmds[0].AddSauces)
	}
}

func TestParseBreadAndQuantity(t *testing.T) {
	cmds := Parse("빵은 허니오트로 2개 주세요", building(t, "햄"))

	want := []order.Action{order.ActionSelectBread, order.ActionSetQuantity}
	if !slices.Equal(actions(cmds), want) {
		t.Fatalf("actions = %v, want %v", actions(cmds), want)
	}
	if cmds[0].Bread != "허니오트" || *cmds[1].Quantity != 2 {
		t.Errorf("unexpected commands: %+v", cmds)
	}
}

func TestParseCartEdit(t *testing.T) {
	cmds := Parse("빵을 플랫브레드로 바꿔줘요", withCart(t, "햄"))

	if len(cmds) != 1 || cmds[0].Action != order.ActionModifyCartItem {
		t.Fatalf("expected modify_cart_item, got %+v", cmds)
	}
	if *cmds[0].Target != 0 || cmds[0].Bread != "플랫브레드" {
		t.Errorf("unexpected edit: %+v", cmds[0])
	}
}

func TestParseCartEditWithOrdinal(t *testing.T) {
	cmds := Parse("두번째 토마토 빼주세요", withCart(t, "햄", "참치"))

	if len(cmds) != 1 || cmds[0].Action != order.ActionModifyCartItem {
		t.Fatalf("expected modify_cart_item, got %+v", cmds)
	}
	if *cmds[0].Target != 1 || !slices.Equal(cmds[0].RemoveVegetables, []string{"토마토"}) {
		t.Errorf("unexpected edit: %+v", cmds[0])
	}
}

func TestParseCartMenuChange(t *testing.T) {
	cmds := Parse("참치로 바꿔주세요", withCart(t, "햄"))

	if len(cmds) != 1 || cmds[0].Action != order.ActionModifyCartItem || cmds[0].Menu != "참치" {
		t.Errorf("unexpected commands: %+v", cmds)
	}
}

func TestParseCancel(t *testing.T) {
	s := withCart(t, "햄", "참치")

	cmds := Parse("첫 번째 취소할게요", s)
	if len(cmds) != 1 || cmds[0].Action != order.ActionRemoveFromCart || *cmds[0].Target != 0 {
		t.Errorf("unexpected commands: %+v", cmds)
	}

	cmds = Parse("주문 취소해주세요", s)
	if len(cmds) != 1 || cmds[0].Action != order.ActionCancelOrder {
		t.Errorf("unexpected commands: %+v", cmds)
	}
}

func TestParseConfirmAndCart(t *testing.T) {
	s := withCart(t, "햄")

	if cmds := Parse("결제할게요", s); !slices.Equal(actions(cmds), []order.Action{order.ActionConfirmOrder}) {
		t.Errorf("confirm: %v", actions(cmds))
	}
	if cmds := Parse("장바구니 보여줘", s); !slices.Equal(actions(cmds), []order.Action{order.ActionViewCart}) {
		t.Errorf("view cart: %v", actions(cmds))
	}
}

func TestParseNothing(t *testing.T) {
	for _, in := range []string{"", "   ", "안녕하세요"} {
		if cmds := Parse(in, order.NewState()); len(cmds) != 0 {
			t.Errorf("Parse(%q) = %+v", in, cmds)
		}
	}
	if cmds := Parse("도와주세요", order.NewState()); len(cmds) != 1 || cmds[0].Action != order.ActionHelp {
		t.Errorf("help: %+v", cmds)
	}
}

func TestRulesInfer(t *testing.T) {
	src := NewRules()

	reply, err := src.Infer(context.Background(), &Request{
		History: []Turn{
			{Role: RoleUser, Text: "안녕하세요"},
			{Role: RoleAssistant, Text: "어서오세요"},
			{Role: RoleUser, Text: "햄 주세요"},
		},
		State: order.NewState(),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(reply.Commands) != 2 {
		t.Errorf("commands = %+v", reply.Commands)
	}
	if reply.Text != "햄 샌드위치를 준비할게요. 원하시는 대로 바꿔드릴까요?" {
		t.Errorf("text = %q", reply.Text)
	}
}

func TestRulesInferRejectsEditsWithoutItem(t *testing.T) {
	reply, err := NewRules().Infer(context.Background(), &Request{
		History: []Turn{{Role: RoleUser, Text: "토마토 빼주세요"}},
		State:   order.NewState(),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(reply.Commands) != 0 || len(reply.Rejected) != 1 {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if reply.Text != "먼저 메뉴를 선택해주세요. 어떤 샌드위치를 원하시나요?" {
		t.Errorf("text = %q", reply.Text)
	}
}

func TestLastUserText(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "a"},
		{Role: RoleAssistant, Text: "b"},
	}
	if got := LastUserText(history); got != "a" {
		t.Errorf("LastUserText = %q", got)
	}
	if got := LastUserText(nil); got != "" {
		t.Errorf("LastUserText(nil) = %q", got)
	}
}
