package testutil

// OpGenConfig configures the operation generator. Rates are percentages
// and should add up to at most 100; the remainder goes to reopen.
type OpGenConfig struct {
	SetRate     int
	LookupRate  int
	HasRate     int
	DeleteRate  int
	ClearRate   int
	AdvanceRate int
	FlushRate   int

	// TTLRate is the percentage of sets that carry a TTL.
	TTLRate int

	// MaxTTL bounds generated TTLs in seconds.
	MaxTTL int

	// Keys is the key space ops draw from. Small spaces produce more
	// overwrites and deletes of live keys.
	Keys []string
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		SetRate:     30,
		LookupRate:  25,
		HasRate:     10,
		DeleteRate:  13,
		ClearRate:   2,
		AdvanceRate: 8,
		FlushRate:   6,
		TTLRate:     33,
		MaxTTL:      5,
		Keys:        []string{"a", "b", "c", "d", "e", "f", "g", "h"},
	}
}

// OpGenerator turns an input byte slice into a deterministic op sequence.
// Once the input is used up every draw reads as zero, so a given input
// always yields the same ops.
type OpGenerator struct {
	input  []byte
	pos    int
	config OpGenConfig
}

// NewOpGenerator creates a new operation generator.
func NewOpGenerator(input []byte, cfg *OpGenConfig) *OpGenerator {
	c := *cfg
	if len(c.Keys) == 0 {
		c.Keys = DefaultOpGenConfig().Keys
	}

	return &OpGenerator{input: input, config: c}
}

// HasMore reports whether unread input remains.
func (g *OpGenerator) HasMore() bool {
	return g.pos < len(g.input)
}

func (g *OpGenerator) draw() byte {
	if g.pos >= len(g.input) {
		return 0
	}

	b := g.input[g.pos]
	g.pos++

	return b
}

// intn returns a value in [0, n), or 0 for n <= 0.
func (g *OpGenerator) intn(n int) int {
	if n <= 0 {
		return 0
	}

	return int(g.draw()) % n
}

// word returns a lowercase word of 1 to maxLen letters.
func (g *OpGenerator) word(maxLen int) string {
	out := make([]byte, 1+g.intn(maxLen))
	for i := range out {
		out[i] = 'a' + g.draw()%26
	}

	return string(out)
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	choice := g.intn(100)

	cumulative := 0

	cumulative += g.config.SetRate
	if choice < cumulative {
		return g.genSet()
	}

	cumulative += g.config.LookupRate
	if choice < cumulative {
		return OpLookup{Key: g.pickKey()}
	}

	cumulative += g.config.HasRate
	if choice < cumulative {
		return OpHas{Key: g.pickKey()}
	}

	cumulative += g.config.DeleteRate
	if choice < cumulative {
		return OpDelete{Key: g.pickKey()}
	}

	cumulative += g.config.ClearRate
	if choice < cumulative {
		return OpClear{}
	}

	cumulative += g.config.AdvanceRate
	if choice < cumulative {
		return OpAdvance{Seconds: g.intn(3)}
	}

	cumulative += g.config.FlushRate
	if choice < cumulative {
		return OpFlush{}
	}

	return OpReopen{}
}

func (g *OpGenerator) genSet() Op {
	op := OpSet{Key: g.pickKey(), Value: g.genValue()}

	if g.config.MaxTTL > 0 && g.intn(100) < g.config.TTLRate {
		op.TTLSeconds = 1 + int64(g.intn(g.config.MaxTTL))
	}

	return op
}

func (g *OpGenerator) genValue() any {
	switch g.intn(6) {
	case 0:
		return g.word(12)
	case 1:
		return int64(g.intn(1000)) - 500
	case 2:
		return float64(g.intn(100)) / 4
	case 3:
		return g.draw()&1 == 1
	case 4:
		n := g.intn(4)

		items := make([]any, 0, n)
		for range n {
			items = append(items, int64(g.intn(10)))
		}

		return items
	default:
		return map[string]any{
			"n":   int64(g.intn(10)),
			"tag": g.word(4),
		}
	}
}

func (g *OpGenerator) pickKey() string {
	return g.config.Keys[g.intn(len(g.config.Keys))]
}
