package intent

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-kiosk/pkg/catalog"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

// BuildPrompt renders the system prompt for s: the catalog, the active item,
// the cart, which actions are valid right now, and the reply format.
func BuildPrompt(s *order.State) string {
	if s == nil {
		s = order.NewState()
	}
	var b strings.Builder

	b.WriteString("You are the voice assistant of a sandwich kiosk. Customers speak Korean; always answer in short, friendly Korean.\n\n")

	fmt.Fprintf(&b, "MENUS: %s\n", strings.Join(catalog.MenuNames(), ", "))
	fmt.Fprintf(&b, "BREAD: %s\n", strings.Join(catalog.Options(catalog.SetBread), ", "))
	fmt.Fprintf(&b, "CHEESE: %s\n", strings.Join(catalog.Options(catalog.SetCheese), ", "))
	fmt.Fprintf(&b, "VEGETABLES: %s\n", strings.Join(catalog.Options(catalog.SetVegetables), ", "))
	fmt.Fprintf(&b, "SAUCES: %s\n\n", strings.Join(catalog.Options(catalog.SetSauces), ", "))

	b.WriteString("CURRENT STATE:\n")
	if it := s.CurrentItem; it != nil {
		b.WriteString("ACTIVE ITEM (being customised):\n")
		fmt.Fprintf(&b, "- Menu: %s\n", orNone(it.Menu))
		fmt.Fprintf(&b, "- Bread: %s\n", orNone(it.Bread))
		fmt.Fprintf(&b, "- Cheese: %s\n", orNone(it.Cheese))
		fmt.Fprintf(&b, "- Vegetables: %s\n", orNone(strings.Join(it.Vegetables, ", ")))
		fmt.Fprintf(&b, "- Sauces: %s\n", orNone(strings.Join(it.Sauces, ", ")))
		fmt.Fprintf(&b, "- Quantity: %d\n", it.Quantity)
		if m, ok := catalog.FindMenu(it.Menu); ok {
			fmt.Fprintf(&b, "- Default vegetables: %s\n", strings.Join(m.DefaultVegetables, ", "))
		}
		b.WriteString("VALID ACTIONS: select_bread, select_cheese, add_vegetables, remove_vegetables, add_sauce, remove_sauce, set_quantity, add_to_cart, modify_cart_item, remove_from_cart\n")
		b.WriteString("DO NOT USE: start_item (an item already exists) unless it follows add_to_cart in the same list\n")
	} else {
		b.WriteString("NO ACTIVE ITEM\n")
		b.WriteString("VALID ACTIONS: start_item followed by select_menu (new item), modify_cart_item (edit a cart item in place), remove_from_cart, confirm_order\n")
		b.WriteString("DO NOT USE: select_bread, select_cheese, add_vegetables, remove_vegetables, add_sauce, remove_sauce, set_quantity, add_to_cart\n")
	}

	fmt.Fprintf(&b, "\nCART: %d items\n", len(s.Cart))
	if len(s.Cart) == 0 {
		b.WriteString("Empty\n")
	}
	for i, it := range s.Cart {
		fmt.Fprintf(&b, "[%d] %s\n", i, it.Line())
	}
	fmt.Fprintf(&b, "ORDER STATUS: %s\n", s.Status)

	b.WriteString(promptRules)
	return b.String()
}

func orNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}

const promptRules = `
RULES:
1. New item: start_item, then select_menu, optional customisation, then add_to_cart.
   Selecting a menu fills in its default bread, cheese, vegetables and sauces.
2. Never edit the active item when there is none. If there is no active item but
   the cart has items, edit the cart with modify_cart_item and a target index.
3. Cart positions: "첫번째"/"1번"/"방금 담은거" is target 0, "두번째"/"2번" is target 1.
   Without an explicit position use target 0.
4. modify_cart_item edits the entry in place; no add_to_cart afterwards.
5. "결제", "주문할게요" means confirm_order. "취소" with a position means
   remove_from_cart, otherwise cancel_order.

REPLY FORMAT (mandatory): a short Korean sentence, then one json code block
holding an array of actions. Use [] when nothing should change.

EXAMPLES:
User: "햄 주세요"
햄 샌드위치를 준비할게요. 빵은 위트로 드릴까요?
` + "```json" + `
[{"action":"start_item"},{"action":"select_menu","menu":"햄"}]
` + "```" + `

User: "토마토 빼고 올리브 추가해주세요"
토마토는 빼고 올리브를 넣었어요.
` + "```json" + `
[{"action":"remove_vegetables","removeVegetables":["토마토"]},{"action":"add_vegetables","addVegetables":["올리브"]}]
` + "```" + `

User: "햄 추천으로 담아주세요"
` + "```json" + `
[{"action":"start_item"},{"action":"select_menu","menu":"햄"},{"action":"add_to_cart"}]
` + "```" + `

User (no active item, cart has items): "빵을 플랫브레드로 바꿔줘요"
첫 번째 샌드위치 빵을 플랫브레드로 바꿨어요.
` + "```json" + `
[{"action":"modify_cart_item","target":0,"bread":"플랫브레드"}]
` + "```" + `

User: "첫 번째 취소할게요"
` + "```json" + `
[{"action":"remove_from_cart","target":0}]
` + "```" + `
`
