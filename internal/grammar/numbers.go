package grammar

// numberWords maps spoken English quantities to their numeric value. The
// lexicon covers zero through twenty plus the round tens, which is as far as
// single-token quantities go in practice; anything else has to arrive as
// digits.
var numberWords = map[string]float64{
	"zero":      0,
	"one":       1,
	"two":       2,
	"three":     3,
	"four":      4,
	"five":      5,
	"six":       6,
	"seven":     7,
	"eight":     8,
	"nine":      9,
	"ten":       10,
	"eleven":    11,
	"twelve":    12,
	"thirteen":  13,
	"fourteen":  14,
	"fifteen":   15,
	"sixteen":   16,
	"seventeen": 17,
	"eighteen":  18,
	"nineteen":  19,
	"twenty":    20,
	"thirty":    30,
	"forty":     40,
	"fifty":     50,
	"sixty":     60,
	"seventy":   70,
	"eighty":    80,
	"ninety":    90,
	"hundred":   100,
}

// NumberWord resolves a spoken quantity word. The second return is false for
// words outside the lexicon, which then fall through to numeric parsing.
func NumberWord(tok string) (float64, bool) {
	v, ok := numberWords[tok]
	return v, ok
}
