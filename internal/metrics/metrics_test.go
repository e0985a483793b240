package metrics

import (
	"math"
	"testing"
)

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPrecision(t *testing.T) {
	t.Parallel()

	{
		got := Precision([]string{"get_calendar_events"}, []string{"get_calendar_events"})
		if !floatEq(got, 1.0) {
			t.Fatalf("exact match: got %v want 1.0", got)
		}
	}

	{
		got := Precision(nil, []string{"send_email"})
		if !floatEq(got, 0.0) {
			t.Fatalf("empty result: got %v want 0.0", got)
		}
	}

	{
		// An empty result is never rewarded, even with nothing expected.
		got := Precision(nil, nil)
		if !floatEq(got, 0.0) {
			t.Fatalf("empty/empty: got %v want 0.0", got)
		}
	}

	{
		got := Precision([]string{"get_calendar_events"}, []string{"get_calendar_events", "create_reminder"})
		if !floatEq(got, 1.0) {
			t.Fatalf("subset result: got %v want 1.0", got)
		}
	}

	{
		got := Precision([]string{"a", "b", "c"}, []string{"b"})
		if !floatEq(got, 1.0/3.0) {
			t.Fatalf("one of three: got %v want 1/3", got)
		}
		if r := Round2(got); !floatEq(r, 0.33) {
			t.Fatalf("Round2: got %v want 0.33", r)
		}
	}

	{
		// Duplicates collapse before scoring.
		got := Precision([]string{"b", "b", "c"}, []string{"b"})
		if !floatEq(got, 0.5) {
			t.Fatalf("duplicate result: got %v want 0.5", got)
		}
	}
}

func TestPrecisionWithPolicy(t *testing.T) {
	t.Parallel()

	if got := PrecisionWithPolicy(nil, nil, EmptyVacuous); !floatEq(got, 1.0) {
		t.Fatalf("vacuous empty/empty: got %v want 1.0", got)
	}
	if got := PrecisionWithPolicy(nil, []string{"x"}, EmptyVacuous); !floatEq(got, 0.0) {
		t.Fatalf("vacuous empty result, nonempty expected: got %v want 0.0", got)
	}
	if got := PrecisionWithPolicy(nil, nil, EmptyZero); !floatEq(got, 0.0) {
		t.Fatalf("zero empty/empty: got %v want 0.0", got)
	}
	if got := PrecisionWithPolicy([]string{"x"}, []string{"x"}, EmptyVacuous); !floatEq(got, 1.0) {
		t.Fatalf("vacuous nonempty path: got %v want 1.0", got)
	}
}

func TestRecall(t *testing.T) {
	t.Parallel()

	{
		got := Recall([]string{"get_calendar_events"}, []string{"get_calendar_events"})
		if !floatEq(got, 1.0) {
			t.Fatalf("exact match: got %v want 1.0", got)
		}
	}

	{
		got := Recall(nil, []string{"send_email"})
		if !floatEq(got, 0.0) {
			t.Fatalf("empty result: got %v want 0.0", got)
		}
	}

	{
		// Nothing required means nothing missed.
		if got := Recall(nil, nil); !floatEq(got, 1.0) {
			t.Fatalf("empty expected, empty result: got %v want 1.0", got)
		}
		if got := Recall([]string{"anything"}, nil); !floatEq(got, 1.0) {
			t.Fatalf("empty expected, nonempty result: got %v want 1.0", got)
		}
	}

	{
		got := Recall([]string{"get_calendar_events"}, []string{"get_calendar_events", "create_reminder"})
		if !floatEq(got, 0.5) {
			t.Fatalf("half covered: got %v want 0.5", got)
		}
	}

	{
		got := Recall([]string{"a", "b", "c"}, []string{"b"})
		if !floatEq(got, 1.0) {
			t.Fatalf("full coverage: got %v want 1.0", got)
		}
	}

	{
		// Duplicate expected entries count once.
		got := Recall([]string{"b"}, []string{"b", "b", "c"})
		if !floatEq(got, 0.5) {
			t.Fatalf("duplicate expected: got %v want 0.5", got)
		}
	}
}

func TestReciprocalRank(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		result   []string
		expected []string
		want     float64
	}{
		{"rank one", []string{"b", "a"}, []string{"b"}, 1.0},
		{"rank two", []string{"a", "b", "c"}, []string{"b"}, 0.5},
		{"rank three", []string{"a", "c", "b"}, []string{"b"}, 1.0 / 3.0},
		{"no match", []string{"a", "c"}, []string{"b"}, 0.0},
		{"empty result", nil, []string{"b"}, 0.0},
		{"empty expected", []string{"a"}, nil, 0.0},
		{"duplicate before match", []string{"a", "a", "b"}, []string{"b"}, 0.5},
	}
	for _, tc := range cases {
		if got := ReciprocalRank(tc.result, tc.expected); !floatEq(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMetricsAreBounded(t *testing.T) {
	t.Parallel()

	results := [][]string{
		{"a"}, {"a", "b"}, {"c", "d", "e"}, {"b", "a", "c", "d"},
	}
	expected := [][]string{
		{"a"}, {"b", "c"}, {"a", "b", "c", "d", "e"},
	}
	for _, res := range results {
		for _, exp := range expected {
			p := Precision(res, exp)
			r := Recall(res, exp)
			rr := ReciprocalRank(res, exp)
			if p < 0 || p > 1 || r < 0 || r > 1 || rr < 0 || rr > 1 {
				t.Fatalf("out of range: result=%v expected=%v p=%v r=%v rr=%v", res, exp, p, r, rr)
			}
		}
	}
}

func TestMetricsDoNotMutateInputs(t *testing.T) {
	t.Parallel()

	result := []string{" b ", "b", "", "a"}
	expected := []string{"a", "a"}
	Precision(result, expected)
	Recall(result, expected)
	ReciprocalRank(result, expected)

	if result[0] != " b " || result[2] != "" || len(result) != 4 {
		t.Fatalf("result mutated: %v", result)
	}
	if expected[0] != "a" || len(expected) != 2 {
		t.Fatalf("expected mutated: %v", expected)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	got := Normalize([]string{" doc1 ", "doc2", "doc1", "", "   ", "doc3", "doc2"})
	want := []string{"doc1", "doc2", "doc3"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	if out := Normalize(nil); out != nil {
		t.Fatalf("nil input: got %v want nil", out)
	}
}

func TestParseEmptyPolicy(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "zero", "ZERO", " zero "} {
		p, err := ParseEmptyPolicy(s)
		if err != nil || p != EmptyZero {
			t.Fatalf("%q: got %v, %v", s, p, err)
		}
	}
	if p, err := ParseEmptyPolicy("vacuous"); err != nil || p != EmptyVacuous {
		t.Fatalf("vacuous: got %v, %v", p, err)
	}
	if _, err := ParseEmptyPolicy("strict"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{1.0 / 3.0, 0.33},
		{2.0 / 3.0, 0.67},
		{0.005, 0.01},
		{1.0, 1.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); !floatEq(got, tc.want) {
			t.Fatalf("Round2(%v): got %v want %v", tc.in, got, tc.want)
		}
	}
}
