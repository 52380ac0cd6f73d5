package session

import (
	"math/rand"

	"github.com/gift-practice/giftpractice/internal/gift"
)

// PickPerCategory draws up to counts[name] questions from each category, in
// the bank's category order, then shuffles the combined sequence. Categories
// absent from counts (or with a non-positive count) contribute nothing; a
// count larger than the category yields the whole category.
func PickPerCategory(bank *gift.Bank, counts map[string]int, rng *rand.Rand) []gift.Question {
	var picked []gift.Question
	for _, name := range bank.CategoryNames() {
		n := counts[name]
		if n <= 0 {
			continue
		}
		pool := bank.QuestionsByCategory(name)
		idx := rng.Perm(len(pool))
		if n > len(pool) {
			n = len(pool)
		}
		for _, j := range idx[:n] {
			picked = append(picked, *pool[j])
		}
	}
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked
}

// PickRandom draws up to n questions from the whole bank, shuffled.
func PickRandom(bank *gift.Bank, n int, rng *rand.Rand) []gift.Question {
	if n <= 0 {
		return nil
	}
	idx := rng.Perm(len(bank.Questions))
	if n > len(idx) {
		n = len(idx)
	}
	picked := make([]gift.Question, 0, n)
	for _, j := range idx[:n] {
		picked = append(picked, bank.Questions[j])
	}
	return picked
}
