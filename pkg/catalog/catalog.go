// Package catalog holds the kiosk's static reference data: sandwich menu
// templates and the option sets for bread, cheese, vegetables and sauces.
//
// Everything here is immutable. Lookups hand out copies so callers can never
// mutate a template's default lists.
package catalog

import "slices"

// OptionSet names one of the option groups a sandwich is built from.
type OptionSet string

const (
	SetBread      OptionSet = "bread"
	SetCheese     OptionSet = "cheese"
	SetVegetables OptionSet = "vegetables"
	SetSauces     OptionSet = "sauces"
)

// Menu is a named preset defining the default build of a sandwich.
type Menu struct {
	Name              string   `json:"name"`
	DefaultBread      string   `json:"defaultBread"`
	DefaultCheese     string   `json:"defaultCheese"`
	DefaultVegetables []string `json:"defaultVegetables"`
	DefaultSauces     []string `json:"defaultSauces"`
	Description       string   `json:"description"`
}

var breads = []string{"위트", "허니오트", "파마산오레가노", "화이트", "플랫브레드"}

var cheeses = []string{"아메리칸치즈", "슈레드치즈", "모짜렐라치즈"}

var vegetables = []string{
	"양상추", "토마토", "오이", "피망", "양파", "피클", "올리브", "할라피뇨",
}

var sauces = []string{
	"랜치", "마요네즈", "스위트 어니언", "허니 머스타드", "스위트 칠리",
	"사우스웨스트", "핫 칠리", "올리브오일",
}

var menus = []Menu{
	{
		Name:              "에그마요",
		DefaultBread:      "위트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "오이"},
		DefaultSauces:     []string{"마요네즈"},
		Description:       "부드러운 계란과 마요네즈",
	},
	{
		Name:              "이탈리안 비엠티",
		DefaultBread:      "위트",
		DefaultCheese:     "슈레드치즈",
		DefaultVegetables: []string{"양상추", "토마토", "양파", "피망"},
		DefaultSauces:     []string{"랜치", "올리브오일"},
		Description:       "페퍼로니, 살라미, 햄",
	},
	{
		Name:              "비엘티",
		DefaultBread:      "허니오트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토"},
		DefaultSauces:     []string{"랜치", "마요네즈"},
		Description:       "베이컨, 양상추, 토마토",
	},
	{
		Name:              "써브웨이 클럽",
		DefaultBread:      "위트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "오이"},
		DefaultSauces:     []string{"랜치", "스위트 어니언"},
		Description:       "터키, 햄, 베이컨",
	},
	{
		Name:              "로티세리 바비큐 치킨",
		DefaultBread:      "허니오트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "양파"},
		DefaultSauces:     []string{"스위트 어니언", "허니 머스타드"},
		Description:       "훈제 바비큐 치킨",
	},
	{
		Name:              "로스트 치킨",
		DefaultBread:      "위트",
		DefaultCheese:     "슈레드치즈",
		DefaultVegetables: []string{"양상추", "토마토", "양파", "피망"},
		DefaultSauces:     []string{"스위트 칠리", "허니 머스타드"},
		Description:       "오븐에 구운 치킨 가슴살",
	},
	{
		Name:              "참치",
		DefaultBread:      "위트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "오이", "양파"},
		DefaultSauces:     []string{"마요네즈"},
		Description:       "참치와 마요네즈",
	},
	{
		Name:              "햄",
		DefaultBread:      "위트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "피클"},
		DefaultSauces:     []string{"허니 머스타드"},
		Description:       "슬라이스 햄",
	},
	{
		Name:              "베지",
		DefaultBread:      "허니오트",
		DefaultCheese:     "슈레드치즈",
		DefaultVegetables: []string{"양상추", "토마토", "오이", "피망", "양파", "올리브"},
		DefaultSauces:     []string{"랜치", "올리브오일"},
		Description:       "신선한 야채 샌드위치",
	},
	{
		Name:              "스테이크 앤 치즈",
		DefaultBread:      "화이트",
		DefaultCheese:     "아메리칸치즈",
		DefaultVegetables: []string{"양상추", "토마토", "피망", "양파"},
		DefaultSauces:     []string{"사우스웨스트", "핫 칠리"},
		Description:       "스테이크와 치즈",
	},
}

// FindMenu looks up a template by exact name.
func FindMenu(name string) (Menu, bool) {
	for _, m := range menus {
		if m.Name == name {
			return m.clone(), true
		}
	}
	return Menu{}, false
}

// Menus returns every template in display order.
func Menus() []Menu {
	out := make([]Menu, len(menus))
	for i, m := range menus {
		out[i] = m.clone()
	}
	return out
}

// MenuNames returns the template names in display order.
func MenuNames() []string {
	names := make([]string, len(menus))
	for i, m := range menus {
		names[i] = m.Name
	}
	return names
}

// Options returns a copy of the named option set, or nil for an unknown set.
func Options(set OptionSet) []string {
	switch set {
	case SetBread:
		return slices.Clone(breads)
	case SetCheese:
		return slices.Clone(cheeses)
	case SetVegetables:
		return slices.Clone(vegetables)
	case SetSauces:
		return slices.Clone(sauces)
	default:
		return nil
	}
}

// IsValidOption reports whether value is a member of the given option set.
func IsValidOption(value string, set OptionSet) bool {
	switch set {
	case SetBread:
		return slices.Contains(breads, value)
	case SetCheese:
		return slices.Contains(cheeses, value)
	case SetVegetables:
		return slices.Contains(vegetables, value)
	case SetSauces:
		return slices.Contains(sauces, value)
	default:
		return false
	}
}

// FilterValid keeps the values that belong to set, preserving order.
func FilterValid(values []string, set OptionSet) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if IsValidOption(v, set) {
			out = append(out, v)
		}
	}
	return out
}

func (m Menu) clone() Menu {
	m.DefaultVegetables = slices.Clone(m.DefaultVegetables)
	m.DefaultSauces = slices.Clone(m.DefaultSauces)
	return m
}
