package intent

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/teslashibe/go-kiosk/pkg/catalog"
	"github.com/teslashibe/go-kiosk/pkg/order"
)

type termKind int

const (
	termMenu termKind = iota
	termBread
	termCheese
	termVegetable
	termSauce
)

type term struct {
	key   string // whitespace-free form matched against the utterance
	value string // catalog spelling
	kind  termKind
}

type hit struct {
	term
	start, end int
}

// lexicon holds every catalog name, longest first, so that "스위트어니언" wins
// over the bread "위트" and "올리브오일" over the vegetable "올리브".
var lexicon = buildLexicon()

func buildLexicon() []term {
	var terms []term
	add := func(kind termKind, values []string) {
		for _, v := range values {
			terms = append(terms, term{key: compact(v), value: v, kind: kind})
		}
	}
	add(termMenu, catalog.MenuNames())
	add(termBread, catalog.Options(catalog.SetBread))
	add(termCheese, catalog.Options(catalog.SetCheese))
	add(termVegetable, catalog.Options(catalog.SetVegetables))
	add(termSauce, catalog.Options(catalog.SetSauces))

	sort.SliceStable(terms, func(i, j int) bool {
		return len(terms[i].key) > len(terms[j].key)
	})
	return terms
}

var (
	removeWords  = []string{"빼", "없이", "제외"}
	addWords     = []string{"추가", "넣어", "더"}
	changeWords  = []string{"바꿔", "변경"}
	confirmWords = []string{"결제", "주문할게", "주문할께", "계산"}
	helpWords    = []string{"도와", "도움", "뭐가있"}

	quantityDigits = regexp.MustCompile(`(\d+)개`)
	quantityWords  = map[string]int{"한개": 1, "두개": 2, "세개": 3, "네개": 4, "다섯개": 5}

	ordinals = []struct {
		words  []string
		target int
	}{
		{[]string{"첫번째", "1번", "방금담은"}, 0},
		{[]string{"두번째", "2번"}, 1},
		{[]string{"세번째", "3번"}, 2},
		{[]string{"네번째", "4번"}, 3},
		{[]string{"다섯번째", "5번"}, 4},
	}
)

// Rules is a deterministic Source for Korean utterances.
type Rules struct {
	logger *slog.Logger
}

// NewRules creates a keyword-based source.
func NewRules(opts ...Option) *Rules {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Rules{logger: cfg.Logger.With("component", "intent.rules")}
}

// Infer parses the latest user turn.
func (r *Rules) Infer(ctx context.Context, req *Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := req.State
	if s == nil {
		s = order.NewState()
	}

	text := LastUserText(req.History)
	cmds := Parse(text, s)
	accepted, rejected := guard(s, cmds)

	r.logger.Debug("parsed utterance",
		"text", text,
		"commands", len(cmds),
		"accepted", len(accepted),
	)

	return &Reply{
		Text:     describe(accepted, rejected),
		Commands: accepted,
		Rejected: rejected,
	}, nil
}

// Parse maps an utterance to commands for state s. It never consults a
// model; unrecognised text yields no commands.
func Parse(text string, s *order.State) []order.Command {
	c := compact(text)
	if c == "" {
		return nil
	}
	target, hasTarget := ordinal(c)

	if containsAny(c, "취소") {
		if hasTarget && len(s.Cart) > 0 {
			return []order.Command{order.RemoveFromCart(target)}
		}
		return []order.Command{order.CancelOrder()}
	}

	hits := scan(c)
	var (
		cmds     []order.Command
		edit     order.Command // accumulated modify_cart_item
		editing  bool
		menuHit  *hit
		building = s.CurrentItem != nil
	)
	for i := range hits {
		if hits[i].kind == termMenu {
			menuHit = &hits[i]
			break
		}
	}

	cartEdit := func() *order.Command {
		if !editing {
			t := 0
			if hasTarget {
				t = target
			}
			edit = order.ModifyCartItem(t)
			editing = true
		}
		return &edit
	}

	if menuHit != nil {
		switch {
		case building:
			cmds = append(cmds, order.SelectMenu(menuHit.value))
		case len(s.Cart) > 0 && containsAny(c, changeWords...):
			cartEdit().Menu = menuHit.value
		default:
			cmds = append(cmds, order.StartItem(), order.SelectMenu(menuHit.value))
			building = true
		}
	}

	// Without an item to build, edits go to the cart when there is one.
	toCart := !building && len(s.Cart) > 0

	var addVeg, removeVeg, addSauce, removeSauce []string
	for i, h := range hits {
		switch h.kind {
		case termBread:
			if toCart {
				cartEdit().Bread = h.value
			} else {
				cmds = append(cmds, order.SelectBread(h.value))
			}
		case termCheese:
			if toCart {
				cartEdit().Cheese = h.value
			} else {
				cmds = append(cmds, order.SelectCheese(h.value))
			}
		case termVegetable:
			if removes(c, hits, i) {
				removeVeg = append(removeVeg, h.value)
			} else {
				addVeg = append(addVeg, h.value)
			}
		case termSauce:
			if removes(c, hits, i) {
				removeSauce = append(removeSauce, h.value)
			} else {
				addSauce = append(addSauce, h.value)
			}
		}
	}

	if toCart {
		if removeVeg != nil || addVeg != nil || removeSauce != nil || addSauce != nil {
			e := cartEdit()
			e.RemoveVegetables, e.AddVegetables = removeVeg, addVeg
			e.RemoveSauces, e.AddSauces = removeSauce, addSauce
		}
	} else {
		if removeVeg != nil {
			cmds = append(cmds, order.RemoveVegetables(removeVeg...))
		}
		if addVeg != nil {
			cmds = append(cmds, order.AddVegetables(addVeg...))
		}
		if removeSauce != nil {
			cmds = append(cmds, order.RemoveSauces(removeSauce...))
		}
		if addSauce != nil {
			cmds = append(cmds, order.AddSauces(addSauce...))
		}
	}

	if n, ok := quantity(c); ok {
		if toCart {
			cartEdit().Quantity = &n
		} else {
			cmds = append(cmds, order.SetQuantity(n))
		}
	}

	if editing {
		cmds = append(cmds, edit)
	}

	switch {
	case containsAny(c, "담아"):
		cmds = append(cmds, order.AddToCart())
	case containsAny(c, "장바구니"):
		cmds = append(cmds, order.ViewCart())
	}
	if containsAny(c, confirmWords...) {
		cmds = append(cmds, order.ConfirmOrder())
	}
	if len(cmds) == 0 && containsAny(c, helpWords...) {
		cmds = append(cmds, order.Command{Action: order.ActionHelp})
	}
	return cmds
}

// scan finds non-overlapping catalog names in c, ordered by position.
func scan(c string) []hit {
	taken := make([]bool, len(c))
	var hits []hit
	for _, t := range lexicon {
		from := 0
		for {
			i := strings.Index(c[from:], t.key)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(t.key)
			if !anyTaken(taken[start:end]) {
				for j := start; j < end; j++ {
					taken[j] = true
				}
				hits = append(hits, hit{term: t, start: start, end: end})
			}
			from = end
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	return hits
}

// removes decides whether the option at hits[i] is being taken out. The
// first add or remove keyword after it wins, so "토마토랑 양파 빼고 올리브
// 추가" removes both vegetables and adds the olive.
func removes(c string, hits []hit, i int) bool {
	for j := i; j < len(hits); j++ {
		end := len(c)
		if j+1 < len(hits) {
			end = hits[j+1].start
		}
		seg := c[hits[j].end:end]
		if containsAny(seg, removeWords...) {
			return true
		}
		if containsAny(seg, addWords...) {
			return false
		}
	}
	return false
}

func ordinal(c string) (int, bool) {
	for _, o := range ordinals {
		if containsAny(c, o.words...) {
			return o.target, true
		}
	}
	return 0, false
}

func quantity(c string) (int, bool) {
	if m := quantityDigits.FindStringSubmatch(c); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	for w, n := range quantityWords {
		if strings.Contains(c, w) {
			return n, true
		}
	}
	return 0, false
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func anyTaken(b []bool) bool {
	for _, v := range b {
		if v {
			return true
		}
	}
	return false
}

// describe writes the spoken reply for a parsed utterance.
func describe(accepted []order.Command, rejected []order.Rejection) string {
	if len(accepted) == 0 {
		if len(rejected) > 0 {
			return "먼저 메뉴를 선택해주세요. 어떤 샌드위치를 원하시나요?"
		}
		return "어떤 샌드위치를 원하시나요? 메뉴 이름을 말씀해주세요."
	}

	last := accepted[len(accepted)-1]
	switch last.Action {
	case order.ActionAddToCart:
		return "장바구니에 담았습니다. 더 필요하신 게 있으신가요?"
	case order.ActionConfirmOrder:
		return "주문 내역을 확인해주세요. 결제를 진행할까요?"
	case order.ActionCancelOrder:
		return "주문을 취소했습니다."
	case order.ActionRemoveFromCart:
		return "장바구니에서 삭제했습니다."
	case order.ActionViewCart:
		return "장바구니를 보여드릴게요."
	case order.ActionHelp:
		return "메뉴를 말씀해주시면 주문을 도와드릴게요."
	case order.ActionModifyCartItem:
		return "장바구니 메뉴를 변경했습니다."
	case order.ActionSelectMenu:
		return last.Menu + " 샌드위치를 준비할게요. 원하시는 대로 바꿔드릴까요?"
	}
	return "네, 반영했습니다."
}

// Verify Rules implements Source at compile time.
var _ Source = (*Rules)(nil)
