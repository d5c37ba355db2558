package scoring

import "testing"

func perfectSheet() []int {
	answers := make([]int, NumQuestions)
	for i, key := range answerKey {
		answers[i] = key - 1
	}
	return answers
}

// sheetWithCorrect returns a sheet where exactly n answers match the key.
func sheetWithCorrect(n int) []int {
	answers := perfectSheet()
	for i := n; i < NumQuestions; i++ {
		// Shift off the correct option; stays within [0,7].
		answers[i] = (answers[i] + 1) % 8
	}
	return answers
}

func TestPerfectScoreAtReferenceAge(t *testing.T) {
	iq, correct := Score(perfectSheet(), 20)
	if correct != NumQuestions {
		t.Fatalf("expected %d correct, got %d", NumQuestions, correct)
	}
	if iq != 140 {
		t.Fatalf("expected top score 140, got %d", iq)
	}
}

func TestBaseTableIsMonotonic(t *testing.T) {
	prev := 0
	for c := minTabledCorrect; c <= NumQuestions; c++ {
		iq, got := Score(sheetWithCorrect(c), 20)
		if got != c {
			t.Fatalf("sheet build broken: wanted %d correct, got %d", c, got)
		}
		if iq < prev {
			t.Fatalf("base score decreased at %d correct: %d < %d", c, iq, prev)
		}
		prev = iq
	}
}

func TestFloorBelowTable(t *testing.T) {
	for _, c := range []int{0, 1, 14} {
		iq, correct := Score(sheetWithCorrect(c), 20)
		if correct != c {
			t.Fatalf("wanted %d correct, got %d", c, correct)
		}
		if iq != 60 {
			t.Fatalf("expected floor 60 for %d correct, got %d", c, iq)
		}
	}
}

func TestAgeBands(t *testing.T) {
	cases := []struct {
		age  int
		want int
	}{
		{20, 140}, // quotient 100
		{30, 140}, // boundary: 30 is not >30
		{31, 135}, // 140*97/100 truncated
		{36, 130}, // 140*93/100
		{41, 123}, // 140*88/100
		{46, 114}, // 140*82/100
		{51, 106}, // 140*76/100
		{56, 98},  // 140*70/100
		{60, 98},  // band saturates at 70
		{95, 98},
	}
	for _, tc := range cases {
		iq, _ := Score(perfectSheet(), tc.age)
		if iq != tc.want {
			t.Fatalf("age %d: expected %d, got %d", tc.age, tc.want, iq)
		}
	}
}

func TestHalfCorrectReferenceValue(t *testing.T) {
	iq, correct := Score(sheetWithCorrect(30), 25)
	if correct != 30 {
		t.Fatalf("expected 30 correct, got %d", correct)
	}
	if iq != 82 {
		t.Fatalf("expected table value 82 for 30 correct at age 25, got %d", iq)
	}
}

func TestOutOfRangeAnswersCountAsWrong(t *testing.T) {
	answers := perfectSheet()
	answers[0] = -1
	answers[1] = 9
	_, correct := Score(answers, 20)
	if correct != NumQuestions-2 {
		t.Fatalf("expected %d correct, got %d", NumQuestions-2, correct)
	}
}

func TestShortSheetIsTotal(t *testing.T) {
	iq, correct := Score(nil, 20)
	if correct != 0 || iq != 60 {
		t.Fatalf("expected floor for empty sheet, got iq=%d correct=%d", iq, correct)
	}
}

func TestPercentile(t *testing.T) {
	if p := Percentile(100); p < 49.9 || p > 50.1 {
		t.Fatalf("expected ~50%% above the mean, got %f", p)
	}
	if p := Percentile(145); p > 0.2 {
		t.Fatalf("expected well under 0.2%% above 145, got %f", p)
	}
	if Percentile(120) >= Percentile(110) {
		t.Fatalf("percentile should shrink as iq grows")
	}
}
