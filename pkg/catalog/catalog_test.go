package catalog

import (
	"slices"
	"testing"
)

func TestFindMenu(t *testing.T) {
	m, ok := FindMenu("햄")
	if !ok {
		t.Fatal("expected 햄 to resolve")
	}
	if m.DefaultBread != "위트" || m.DefaultCheese != "아메리칸치즈" {
		t.Errorf("unexpected defaults: %+v", m)
	}
	if !slices.Equal(m.DefaultVegetables, []string{"양상추", "토마토", "피클"}) {
		t.Errorf("unexpected vegetables: %v", m.DefaultVegetables)
	}

	if _, ok := FindMenu("햄버거"); ok {
		t.Error("unknown menu should not resolve")
	}
	if _, ok := FindMenu(""); ok {
		t.Error("empty name should not resolve")
	}
}

func TestFindMenuReturnsCopy(t *testing.T) {
	m, _ := FindMenu("참치")
	m.DefaultVegetables[0] = "changed"
	m.DefaultSauces = append(m.DefaultSauces, "랜치")

	again, _ := FindMenu("참치")
	if again.DefaultVegetables[0] != "양상추" {
		t.Errorf("template mutated through returned copy: %v", again.DefaultVegetables)
	}
	if len(again.DefaultSauces) != 1 {
		t.Errorf("template sauces mutated: %v", again.DefaultSauces)
	}
}

func TestIsValidOption(t *testing.T) {
	tests := []struct {
		value string
		set   OptionSet
		want  bool
	}{
		{"화이트", SetBread, true},
		{"호밀", SetBread, false},
		{"모짜렐라치즈", SetCheese, true},
		{"올리브", SetVegetables, true},
		{"올리브", SetSauces, false},
		{"올리브오일", SetSauces, true},
		{"허니 머스타드", SetSauces, true},
		{"양상추", OptionSet("toppings"), false},
	}
	for _, tt := range tests {
		if got := IsValidOption(tt.value, tt.set); got != tt.want {
			t.Errorf("IsValidOption(%q, %s) = %v, want %v", tt.value, tt.set, got, tt.want)
		}
	}
}

func TestFilterValid(t *testing.T) {
	got := FilterValid([]string{"올리브", "감자", "피클", "올리브"}, SetVegetables)
	want := []string{"올리브", "피클", "올리브"}
	if !slices.Equal(got, want) {
		t.Errorf("FilterValid = %v, want %v", got, want)
	}
}

func TestMenuNames(t *testing.T) {
	names := MenuNames()
	if len(names) != len(Menus()) {
		t.Fatalf("name count %d != menu count %d", len(names), len(Menus()))
	}
	if names[0] != "에그마요" {
		t.Errorf("expected display order to start with 에그마요, got %s", names[0])
	}
}
