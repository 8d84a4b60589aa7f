package store

import (
	"strings"
	"testing"

	"github.com/quillsec/alertconv/pkg/types"
)

func strp(s string) *string { return &s }
func i32p(v int32) *int32   { return &v }

func TestNetworkAttackIdentityKey(t *testing.T) {
	a := &types.NetworkAttackRecord{
		SrcIP: strp("10.0.0.1"), SrcPort: i32p(443),
		DstIP: strp("10.0.0.2"), DstPort: i32p(8080),
		Protocol: strp("TCP"),
	}
	b := &types.NetworkAttackRecord{
		SrcIP: strp("10.0.0.1"), SrcPort: i32p(443),
		DstIP: strp("10.0.0.2"), DstPort: i32p(8080),
		Protocol: strp("TCP"),
	}
	if networkAttackIdentityKey(a) != networkAttackIdentityKey(b) {
		t.Error("identical five-tuples should share a key")
	}

	c := &types.NetworkAttackRecord{
		SrcIP: strp("10.0.0.1"), SrcPort: i32p(443),
		DstIP: strp("10.0.0.2"), DstPort: i32p(8080),
		Protocol: strp("UDP"),
	}
	if networkAttackIdentityKey(a) == networkAttackIdentityKey(c) {
		t.Error("different protocols should not share a key")
	}
}

func TestIdentityKeyNilVersusEmpty(t *testing.T) {
	withNil := &types.NetworkAttackRecord{SrcIP: nil}
	withEmpty := &types.NetworkAttackRecord{SrcIP: strp("")}
	if networkAttackIdentityKey(withNil) == networkAttackIdentityKey(withEmpty) {
		t.Error("nil and empty string are distinct identities")
	}

	hbNil := &types.HostBehaviorRecord{HostName: nil, TerminalIP: strp("h")}
	hbShift := &types.HostBehaviorRecord{HostName: strp("h"), TerminalIP: nil}
	if hostBehaviorIdentityKey(hbNil) == hostBehaviorIdentityKey(hbShift) {
		t.Error("a value must not slide between tuple positions")
	}
}

func TestMaliciousSampleIdentityKeys(t *testing.T) {
	both := &types.MaliciousSampleRecord{SHA256: strp("aa"), MD5: strp("bb")}
	md5Only := &types.MaliciousSampleRecord{MD5: strp("bb")}

	// A both-hash sample carries one key per hash, and its md5 key
	// matches an md5-only sibling's so the two serialize.
	keys := maliciousSampleIdentityKeys(both)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys for a both-hash sample, got %d", len(keys))
	}
	sibling := maliciousSampleIdentityKeys(md5Only)
	if len(sibling) != 1 || sibling[0] != keys[1] {
		t.Errorf("md5-only key %v should match the both-hash md5 key %q", sibling, keys[1])
	}
	if !strings.Contains(keys[0], "sha256") || !strings.Contains(keys[1], "md5") {
		t.Errorf("keys should be hash-scoped, got %v", keys)
	}

	bare := &types.MaliciousSampleRecord{}
	if got := maliciousSampleIdentityKeys(bare); len(got) != 0 {
		t.Errorf("a sample with no hash has no identity keys, got %v", got)
	}
}

func TestLockIdentityStripes(t *testing.T) {
	s := &Store{}
	mu := s.lockIdentity("some-key")
	mu.Unlock()

	// Same key must always land on the same stripe.
	first := s.lockIdentity("k1")
	first.Unlock()
	second := s.lockIdentity("k1")
	if first != second {
		t.Error("same key mapped to different stripes")
	}
	second.Unlock()
}

func TestLockIdentitiesOverlap(t *testing.T) {
	s := &Store{}

	// Keys colliding onto one stripe must lock it once, not deadlock.
	unlock := s.lockIdentities("k1", "k1")
	unlock()

	// After release, a single-key caller can take the same stripe.
	unlock = s.lockIdentities("k1", "k2")
	unlock()
	mu := s.lockIdentity("k2")
	mu.Unlock()
}

func TestMarshalJSONB(t *testing.T) {
	if got := marshalJSONB[string](nil); got != nil {
		t.Errorf("nil slice should become SQL NULL, got %q", got)
	}
	if got := marshalJSONB([]string{}); string(got) != "[]" {
		t.Errorf("empty slice should stay a JSON array, got %q", got)
	}
	if got := marshalJSONB([]string{"T1059"}); string(got) != `["T1059"]` {
		t.Errorf("unexpected marshal output %q", got)
	}
	if got := marshalJSONB([]int32{7, 9}); string(got) != "[7,9]" {
		t.Errorf("unexpected marshal output %q", got)
	}
}

func TestPrefixColumns(t *testing.T) {
	got := prefixColumns("id, name,\n\tcreated_at", "t1")
	want := "t1.id, t1.name, t1.created_at"
	if got != want {
		t.Errorf("prefixColumns = %q, want %q", got, want)
	}

	// The real column constants must survive prefixing without stray
	// whitespace.
	for _, cols := range []string{networkAttackColumns, convergedHostBehaviorColumns, tagColumns} {
		prefixed := prefixColumns(cols, "x")
		if strings.Contains(prefixed, "\t") || strings.Contains(prefixed, "\n") {
			t.Errorf("prefixed list still contains whitespace: %q", prefixed)
		}
		if strings.Contains(prefixed, "x. ") {
			t.Errorf("alias applied to empty column: %q", prefixed)
		}
	}
}
