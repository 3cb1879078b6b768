package transport

import "testing"

func TestExceedsRequestLimit(t *testing.T) {
	c := newConnection(distinctKey("1"), nil)

	RequestLimit = 0
	if c.ExceedsRequestLimit() {
		t.Fatal("RequestLimit of 0 must mean unlimited")
	}

	RequestLimit = 3
	defer func() { RequestLimit = 0 }()

	c.useCount = 2
	if c.ExceedsRequestLimit() {
		t.Fatal("use count below the limit must not exceed it")
	}
	c.useCount = 3
	if !c.ExceedsRequestLimit() {
		t.Fatal("use count at the limit must exceed it")
	}
}

func TestCloseIsIdempotentAndSafeBeforeDial(t *testing.T) {
	c := newConnection(distinctKey("1"), nil)
	if err := c.Close(); err != nil {
		t.Fatalf("closing a never-dialed connection should be a no-op, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing twice should be a no-op, got %v", err)
	}
}
