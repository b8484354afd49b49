package obs

import (
	"expvar"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPublishTwice(t *testing.T) {
	Publish("obs_test_counter", func() any { return 1 })
	Publish("obs_test_counter", func() any { return 2 })
	v := expvar.Get("obs_test_counter")
	if v == nil || v.String() != "1" {
		t.Fatalf("unexpected published value: %v", v)
	}
}
