package log

import (
	"testing"
)

func TestGetBeforeSetup(t *testing.T) {
	l := Get()
	if l == nil {
		t.Fatal("Get returned nil logger")
	}
}

func TestWithComponent(t *testing.T) {
	l := WithComponent("runner")
	if l == nil {
		t.Fatal("WithComponent returned nil logger")
	}
}

func TestWithWorkspaceAndStep(t *testing.T) {
	if WithWorkspace("demo1") == nil {
		t.Fatal("WithWorkspace returned nil logger")
	}
	if WithStep("runTrace") == nil {
		t.Fatal("WithStep returned nil logger")
	}
}
