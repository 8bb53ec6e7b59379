package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelsAndDebugToggle(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(Options{Out: &out, Err: &errOut})

	l.Info("hello")
	l.Warnf("careful %d", 2)
	l.Error("boom")
	l.Debug("hidden")

	if !strings.Contains(out.String(), "[DINE-INFO]") || !strings.Contains(out.String(), "hello") {
		t.Errorf("Expected info line, got %q", out.String())
	}
	if !strings.Contains(out.String(), "careful 2") {
		t.Errorf("Expected formatted warn line, got %q", out.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Error("Debug output should be off by default")
	}
	if !strings.Contains(errOut.String(), "[DINE-ERROR]") {
		t.Errorf("Expected error on error stream, got %q", errOut.String())
	}

	l.SetDebug(true)
	l.Debugf("seat %d", 3)
	if !strings.Contains(out.String(), "seat 3") {
		t.Errorf("Expected debug line once enabled, got %q", out.String())
	}
}

func TestEventFormat(t *testing.T) {
	var out bytes.Buffer
	l := New(Options{Out: &out})
	l.Event("BACKOFF", "2", "released right fork")
	if !strings.Contains(out.String(), "[EVENT:BACKOFF] Actor:2 | released right fork") {
		t.Errorf("Unexpected event line: %q", out.String())
	}
}

func TestColourPrefix(t *testing.T) {
	var out bytes.Buffer
	l := New(Options{Out: &out, Colour: true})
	l.Info("x")
	if !strings.Contains(out.String(), "\x1b[") {
		t.Errorf("Expected ANSI colour codes, got %q", out.String())
	}
}
