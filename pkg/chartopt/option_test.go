package chartopt

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	opt, err := Parse([]byte(`{"title":{"text":"Vendas"},"series":[{"type":"pie"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !opt.Has(KeyTitle) || !opt.Has(KeySeries) {
		t.Fatalf("expected title and series, got %v", opt)
	}
	if opt.Has(KeyLegend) {
		t.Fatal("legend should be absent")
	}

	if _, err := Parse([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for a non-object document")
	}
}

func TestCloneIsShallow(t *testing.T) {
	title := map[string]any{"text": "A"}
	src := Option{KeyTitle: title, "grid": 1}

	out := src.Clone()
	out["grid"] = 2
	if src["grid"] != 1 {
		t.Fatal("top-level write leaked into source")
	}
	if reflect.ValueOf(out[KeyTitle]).Pointer() != reflect.ValueOf(title).Pointer() {
		t.Fatal("nested values should be shared")
	}

	var nilOpt Option
	if nilOpt.Clone() != nil {
		t.Fatal("clone of nil should be nil")
	}
}

func TestOverride(t *testing.T) {
	src := Option{KeyTitle: map[string]any{"text": "A"}, KeyLegend: nil, "extra": "kept"}
	calls := 0
	fn := func(v any) any {
		calls++
		return "replaced"
	}

	out := src.Override(map[string]func(any) any{
		KeyTitle:  fn,
		KeyLegend: fn,
		KeySeries: fn,
	})

	if calls != 1 {
		t.Fatalf("override ran %d times, want 1", calls)
	}
	if out[KeyTitle] != "replaced" {
		t.Fatalf("title = %v", out[KeyTitle])
	}
	if _, ok := out[KeySeries]; ok {
		t.Fatal("absent key must stay absent")
	}
	if v, ok := out[KeyLegend]; !ok || v != nil {
		t.Fatal("nil key must be carried through as nil")
	}
	if out["extra"] != "kept" {
		t.Fatal("unknown keys must be preserved")
	}
	if _, ok := src[KeyTitle].(map[string]any); !ok {
		t.Fatal("source must not be modified")
	}
}

func TestMergeMap(t *testing.T) {
	base := map[string]any{"text": "A", "left": "center"}
	out := MergeMap(base, map[string]any{"text": "B"})

	if out["text"] != "B" || out["left"] != "center" {
		t.Fatalf("unexpected merge result %v", out)
	}
	if base["text"] != "A" {
		t.Fatal("base must not be modified")
	}

	out = MergeMap("not a map", map[string]any{"show": true})
	if len(out) != 1 || out["show"] != true {
		t.Fatalf("non-map base should act as empty, got %v", out)
	}
}

func TestMapSeries(t *testing.T) {
	series := []any{map[string]any{"type": "pie"}, map[string]any{"type": "bar"}}
	out := MapSeries(series, func(s any) any {
		if IsPie(s) {
			return "pie"
		}
		return s
	})

	items := out.([]any)
	if items[0] != "pie" {
		t.Fatalf("first series = %v", items[0])
	}
	if !reflect.DeepEqual(items[1], series[1]) {
		t.Fatalf("second series = %v", items[1])
	}

	typed := []map[string]any{{"type": "pie"}}
	if got := MapSeries(typed, func(any) any { return 1 }); !reflect.DeepEqual(got, []any{1}) {
		t.Fatalf("typed slice result = %v", got)
	}

	single := map[string]any{"type": "pie"}
	if got := MapSeries(single, func(any) any { return 1 }); !reflect.DeepEqual(got, single) {
		t.Fatal("non-slice series must be returned unchanged")
	}
}

func TestIsPie(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{map[string]any{"type": "pie"}, true},
		{Option{"type": "pie"}, true},
		{map[string]any{"type": "line"}, false},
		{map[string]any{}, false},
		{"pie", false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := IsPie(tc.in); got != tc.want {
			t.Errorf("IsPie(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{float32(2), 2, true},
		{3, 3, true},
		{int64(4), 4, true},
		{uint(5), 5, true},
		{json.Number("6.25"), 6.25, true},
		{json.Number("x"), 0, false},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tc := range tests {
		got, ok := Number(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Number(%v) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLabelFormatterMarshal(t *testing.T) {
	opt := Option{"label": map[string]any{"formatter": LabelFormatter(func(string, any, float64) string { return "" })}}
	data, err := json.Marshal(opt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"label":{"formatter":"{b}\n{c} ({d}%)"}}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}
