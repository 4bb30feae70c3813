package auth_test

import (
	"testing"

	"VaultCore/internal/auth"
)

func TestAllowlist_SeededOperators(t *testing.T) {
	reg := auth.NewAllowlist("ops/alice", "ops/bob")

	if !reg.Authorized("ops/alice") {
		t.Error("seeded operator should be authorized")
	}
	if !reg.Authorized("ops/bob") {
		t.Error("seeded operator should be authorized")
	}
	if reg.Authorized("ops/mallory") {
		t.Error("unknown caller should not be authorized")
	}
}

func TestAllowlist_RelyThenDeny(t *testing.T) {
	reg := auth.NewAllowlist()

	if reg.Authorized("ops/carol") {
		t.Error("empty allowlist should authorize nobody")
	}

	reg.Rely("ops/carol")
	if !reg.Authorized("ops/carol") {
		t.Error("rely should grant the capability")
	}

	reg.Deny("ops/carol")
	if reg.Authorized("ops/carol") {
		t.Error("deny should revoke the capability")
	}
}

func TestAllowlist_DenyUnknownIsNoop(t *testing.T) {
	reg := auth.NewAllowlist("ops/alice")
	reg.Deny("ops/never-added")
	if !reg.Authorized("ops/alice") {
		t.Error("denying an unknown caller must not disturb others")
	}
}
