// Package scoring holds the fixed Raven's test answer key and the mapping
// from raw correct counts to IQ scores. Everything here is pure and
// deterministic; the tables are package constants in all but syntax and are
// never mutated at runtime.
package scoring

import "math"

// NumQuestions is the length of a complete answer sheet.
const NumQuestions = 60

// maxOption is the highest 0-indexed option a respondent can pick.
const maxOption = 7

// answerKey holds the 1-indexed correct option per question. A submitted
// answer i is correct iff answers[i]+1 == answerKey[i].
var answerKey = [NumQuestions]int{
	4, 5, 1, 2, 6, 3, 6, 2, 1, 3, 4, 5, 2, 6, 1, 2, 1, 3, 5,
	6, 4, 3, 4, 5, 8, 2, 3, 8, 7, 4, 5, 1, 7, 6, 1, 2, 3, 4, 3, 7, 8, 6, 5,
	4, 1, 2, 5, 6, 7, 6, 8, 2, 1, 5, 1, 6, 3, 2, 4, 5,
}

// floorScore covers correct counts below the first table entry.
const floorScore = 60

// minTabledCorrect is the lowest correct count with a table entry.
const minTabledCorrect = 15

// iqByCorrect maps correct counts >= minTabledCorrect to a base IQ value.
// The table is hand-curated and monotonically non-decreasing.
var iqByCorrect = [...]int{
	62, 65, 65, 66, 67, 69, 70, 71, 72, 73, 75,
	76, 77, 79, 80, 82, 83, 84, 86, 87, 88, 90, 91, 92, 94, 95, 96, 98, 99,
	100, 102, 104, 106, 108, 110, 112, 114, 116, 118, 120, 122, 124, 126, 128,
	130, 140,
}

// Score compares the answer sheet against the fixed key and returns the
// age-adjusted IQ score together with the raw correct count.
//
// The caller is expected to have validated the sheet shape; out-of-range
// answers simply count as wrong, so Score is total for any input.
func Score(answers []int, age int) (iq, correct int) {
	for i, answ := range answers {
		if i >= NumQuestions {
			break
		}
		if answ >= 0 && answ <= maxOption && answ+1 == answerKey[i] {
			correct++
		}
	}

	base := floorScore
	if correct >= minTabledCorrect {
		base = iqByCorrect[correct-minTabledCorrect]
	}

	// Bands are cumulative overrides; the highest applicable threshold wins.
	quotient := 100
	if age > 30 {
		quotient = 97
	}
	if age > 35 {
		quotient = 93
	}
	if age > 40 {
		quotient = 88
	}
	if age > 45 {
		quotient = 82
	}
	if age > 50 {
		quotient = 76
	}
	if age > 55 {
		quotient = 70
	}

	return base * quotient / 100, correct
}

// AnswerKey returns a copy of the fixed key, for seeding tests and demos.
func AnswerKey() []int {
	key := make([]int, NumQuestions)
	copy(key, answerKey[:])
	return key
}

// Percentile returns the share of the population scoring above iq, in
// percent, assuming the usual N(100, 15) IQ distribution.
func Percentile(iq int) float64 {
	z := (float64(iq) - 100) / 15
	below := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	return 100 - below*100
}
