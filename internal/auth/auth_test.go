package auth

import "testing"

func TestIsOwner(t *testing.T) {
	t.Parallel()

	if !IsOwner("u1", "u1") {
		t.Fatalf("expected owner match")
	}
	if IsOwner("u1", "u2") {
		t.Fatalf("expected owner mismatch")
	}
	// An empty owner must never match, even against an empty caller.
	if IsOwner("", "") {
		t.Fatalf("empty ids must not match")
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	if !IsAdmin(RoleAdmin) {
		t.Fatalf("expected ADMIN to be admin")
	}
	if IsAdmin(RoleUser) || IsAdmin("") || IsAdmin("admin") {
		t.Fatalf("only the exact ADMIN role is admin")
	}
}
