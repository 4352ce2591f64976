package access

import (
	"path/filepath"
	"testing"

	"incidentbot/internal/config"
	"incidentbot/internal/storage"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "access.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.UpsertGrant(db, storage.Grant{
		ConversationID: "conv-staff", Role: "staff", MayCreate: true,
	}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return NewGate(config.Config{AdminConversations: []string{"conv-admin"}}, db)
}

func TestCheck(t *testing.T) {
	g := testGate(t)

	d, err := g.Check("conv-admin", "anyone")
	if err != nil || !d.Allowed || d.Role != "admin" || !d.MayUpdate {
		t.Fatalf("admin conversation must get full capabilities: %+v %v", d, err)
	}

	d, err = g.Check("conv-staff", "u-1")
	if err != nil || !d.Allowed || d.Role != "staff" || !d.MayCreate || d.MayUpdate {
		t.Fatalf("granted conversation: %+v %v", d, err)
	}

	d, err = g.Check("conv-stranger", "u-1")
	if err != nil || d.Allowed {
		t.Fatalf("ungranted conversation must be denied: %+v %v", d, err)
	}
}

func TestRequestAccessDeduplicates(t *testing.T) {
	g := testGate(t)

	pending, err := g.RequestAccess("conv-stranger", "u-1", "soy de jardineria")
	if err != nil || pending {
		t.Fatalf("first request: pending=%v err=%v", pending, err)
	}
	pending, err = g.RequestAccess("conv-stranger", "u-1", "sigo esperando")
	if err != nil || !pending {
		t.Fatalf("second request must report already pending: pending=%v err=%v", pending, err)
	}
}
