package security

import "testing"

func TestClientIPResolver_ForwardedForLeftMost(t *testing.T) {
	res, err := NewClientIPResolver([]string{"10.0.0.0/8"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	r := request("10.0.0.7:443", "X-Forwarded-For", "198.51.100.9, 10.0.0.3")
	if got := res.Key(r); got != "198.51.100.9" {
		t.Fatalf("expected left-most forwarded address, got %s", got)
	}
}

func TestClientIPResolver_SkipsGarbageEntries(t *testing.T) {
	res, err := NewClientIPResolver([]string{"10.0.0.1"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	r := request("10.0.0.1:443", "X-Forwarded-For", "unknown, , 198.51.100.2")
	if got := res.Key(r); got != "198.51.100.2" {
		t.Fatalf("expected first valid address, got %s", got)
	}
}

func TestClientIPResolver_UnmapsIPv4InIPv6(t *testing.T) {
	res, err := NewClientIPResolver(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := res.Key(request("[::ffff:192.0.2.1]:1234")); got != "192.0.2.1" {
		t.Fatalf("expected unmapped IPv4, got %s", got)
	}
}

func TestClientIPResolver_UnknownPeer(t *testing.T) {
	res, err := NewClientIPResolver(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := res.Key(request("@")); got != "unknown" {
		t.Fatalf("expected unknown, got %s", got)
	}
}
