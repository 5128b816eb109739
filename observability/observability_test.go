package observability

import (
	"errors"
	"testing"
	"time"
)

func TestFields(t *testing.T) {
	err := errors.New("boom")
	cases := []struct {
		field Field
		key   string
		value interface{}
	}{
		{String("a", "b"), "a", "b"},
		{Int("n", 3), "n", 3},
		{Int64("n64", int64(9)), "n64", int64(9)},
		{Float64("f", 1.5), "f", 1.5},
		{Duration("d", time.Second), "d", time.Second},
		{Error("err", err), "err", err},
	}
	for _, c := range cases {
		if c.field.Key() != c.key {
			t.Fatalf("unexpected key: %s", c.field.Key())
		}
		if c.field.Value() != c.value {
			t.Fatalf("unexpected value for %s: %v", c.key, c.field.Value())
		}
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With(String("k", "v"))
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error", Error("err", errors.New("x")))
}

func TestStdLoggerWith(t *testing.T) {
	base := NewStdLogger("test")
	bound := base.With(String("request_id", "r1"))
	if bound == Logger(base) {
		t.Fatalf("With() should return a new logger")
	}
	bound.Info("hello", Int("n", 1))
}
