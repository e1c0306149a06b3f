package strategy

import (
	"strings"
	"testing"
)

func TestNewStrategyID(t *testing.T) {
	a, b := NewStrategyID(), NewStrategyID()
	if !strings.HasPrefix(a, "strategy_") {
		t.Fatalf("id = %q", a)
	}
	if a == b {
		t.Fatalf("ids collide: %q", a)
	}
}

func TestNewRecordID(t *testing.T) {
	a, b := NewRecordID(), NewRecordID()
	if !strings.HasPrefix(a, "exec_") {
		t.Fatalf("id = %q", a)
	}
	if a == b {
		t.Fatalf("ids collide: %q", a)
	}
}
