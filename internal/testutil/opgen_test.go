package testutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/filecache/internal/testutil"
)

func Test_OpGenerator_Is_Deterministic_When_Given_Same_Bytes(t *testing.T) {
	t.Parallel()

	input := []byte{3, 77, 1, 200, 9, 42, 42, 5, 18, 250, 99, 64, 1, 2, 3, 4, 5}
	cfg := testutil.DefaultOpGenConfig()

	collect := func() []string {
		gen := testutil.NewOpGenerator(input, &cfg)

		var ops []string
		for gen.HasMore() {
			ops = append(ops, gen.NextOp().String())
		}

		return ops
	}

	if diff := cmp.Diff(collect(), collect()); diff != "" {
		t.Errorf("ops differ between runs (-first +second):\n%s", diff)
	}
}

func Test_OpGenerator_Generates_Only_Configured_Op_When_Rate_Is_100(t *testing.T) {
	t.Parallel()

	cfg := testutil.OpGenConfig{SetRate: 100, TTLRate: 100, MaxTTL: 4, Keys: []string{"only"}}
	gen := testutil.NewOpGenerator([]byte{0, 0, 0, 2, 50, 3}, &cfg)

	op := gen.NextOp()

	set, ok := op.(testutil.OpSet)
	if !ok {
		t.Fatalf("expected OpSet, got %T", op)
	}

	if got, want := set.Key, "only"; got != want {
		t.Errorf("Key=%q, want=%q", got, want)
	}

	if set.TTLSeconds < 1 || set.TTLSeconds > 4 {
		t.Errorf("TTLSeconds=%d, want within [1,4]", set.TTLSeconds)
	}
}

func Test_OpGenerator_Falls_Through_To_Reopen_When_Rates_Leave_Room(t *testing.T) {
	t.Parallel()

	cfg := testutil.OpGenConfig{}
	gen := testutil.NewOpGenerator([]byte{10}, &cfg)

	if _, ok := gen.NextOp().(testutil.OpReopen); !ok {
		t.Fatal("expected OpReopen when every rate is zero")
	}
}

func Test_OpGenerator_Reads_Zeros_When_Input_Exhausted(t *testing.T) {
	t.Parallel()

	cfg := testutil.OpGenConfig{SetRate: 100, Keys: []string{"x", "y"}}
	gen := testutil.NewOpGenerator([]byte{0, 1}, &cfg)

	if got, want := gen.NextOp(), testutil.Op(testutil.OpSet{Key: "y", Value: "a"}); !cmp.Equal(got, want) {
		t.Fatalf("first op=%v, want=%v", got, want)
	}

	if gen.HasMore() {
		t.Fatal("HasMore=true after consuming all input")
	}

	for range 3 {
		if got, want := gen.NextOp(), testutil.Op(testutil.OpSet{Key: "x", Value: "a"}); !cmp.Equal(got, want) {
			t.Fatalf("op after exhaustion=%v, want=%v", got, want)
		}
	}
}
