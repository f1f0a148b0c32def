package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestComponent_TagsLines(t *testing.T) {
	prev := log
	defer func() { log = prev }()

	var buf bytes.Buffer
	log = zerolog.New(&buf)

	l := Component("gorm")
	l.Warn().Msg("slow query")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["component"] != "gorm" {
		t.Errorf("component = %v, want gorm", line["component"])
	}
	if line["level"] != "warn" || line["message"] != "slow query" {
		t.Errorf("unexpected line: %v", line)
	}
}

func TestInit_FallsBackToInfo(t *testing.T) {
	prev := log
	defer func() { log = prev }()

	Init("not-a-level")
	if got := log.GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", got)
	}
}
