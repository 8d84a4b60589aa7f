package testutil

import (
	"encoding/json"
	"testing"

	"github.com/quillsec/alertconv/pkg/types"
)

func TestFixtureNetworkAttackMessage(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		msg := FixtureNetworkAttackMessage()
		for _, key := range types.RequiredAlertKeys {
			if _, ok := msg[key]; !ok {
				t.Errorf("expected message to carry %q", key)
			}
		}
		if msg["alarm_type"] != float64(1) {
			t.Errorf("alarm_type = %v, want 1", msg["alarm_type"])
		}
	})

	t.Run("with overrides", func(t *testing.T) {
		msg := FixtureNetworkAttackMessage(func(m map[string]any) {
			m["src_ip"] = "10.9.8.7"
			delete(m, "alarm_subtype")
		})
		if msg["src_ip"] != "10.9.8.7" {
			t.Errorf("src_ip = %v, want 10.9.8.7", msg["src_ip"])
		}
		if _, ok := msg["alarm_subtype"]; ok {
			t.Error("expected alarm_subtype to be deleted")
		}
	})

	t.Run("decodes into record", func(t *testing.T) {
		data := MustJSON(FixtureNetworkAttackMessage())
		var rec types.NetworkAttackRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if rec.AlarmType != 1 || rec.AlarmSubtype != 1001 {
			t.Errorf("decoded type/subtype = %d/%d, want 1/1001", rec.AlarmType, rec.AlarmSubtype)
		}
		if rec.SrcIP == nil || *rec.SrcIP != "203.0.113.7" {
			t.Errorf("decoded SrcIP = %v, want 203.0.113.7", rec.SrcIP)
		}
	})
}

func TestFixtureMaliciousSampleMessage(t *testing.T) {
	data := MustJSON(FixtureMaliciousSampleMessage())
	var rec types.MaliciousSampleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rec.SHA256 == nil || rec.MD5 == nil {
		t.Fatal("expected both hashes on the default sample")
	}
	if rec.AlarmType != 2 {
		t.Errorf("AlarmType = %d, want 2", rec.AlarmType)
	}
}

func TestFixtureHostBehaviorMessage(t *testing.T) {
	data := MustJSON(FixtureHostBehaviorMessage())
	var rec types.HostBehaviorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rec.HostName == nil || *rec.HostName != "WIN-FILESRV01" {
		t.Errorf("HostName = %v, want WIN-FILESRV01", rec.HostName)
	}
}

func TestFixtureConvergedRecords(t *testing.T) {
	na := FixtureConvergedNetworkAttack(func(c *types.ConvergedNetworkAttack) {
		c.ConvergenceCount = 7
	})
	if na.ConvergenceCount != 7 {
		t.Errorf("ConvergenceCount = %d, want 7", na.ConvergenceCount)
	}
	if na.AlarmType != 1 {
		t.Errorf("AlarmType = %d, want 1", na.AlarmType)
	}

	ms := FixtureConvergedMaliciousSample()
	if ms.SHA256 == nil {
		t.Error("expected converged sample to carry sha256")
	}

	hb := FixtureConvergedHostBehavior()
	if hb.HostName == nil {
		t.Error("expected converged host behavior to carry host_name")
	}
}

func TestPtr(t *testing.T) {
	p := Ptr(int32(443))
	if p == nil || *p != 443 {
		t.Errorf("Ptr(443) = %v", p)
	}
}
