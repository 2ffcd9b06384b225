package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// fakeIssuer records calls and can be told to fail.
type fakeIssuer struct {
	created   []string
	deleted   []string
	failOn    string // device id whose Create/Delete fails
	failError error
}

func (f *fakeIssuer) Create(_ context.Context, deviceID string) error {
	if deviceID == f.failOn {
		return f.failError
	}
	f.created = append(f.created, deviceID)
	return nil
}

func (f *fakeIssuer) Delete(_ context.Context, deviceID string) error {
	if deviceID == f.failOn {
		return f.failError
	}
	f.deleted = append(f.deleted, deviceID)
	return nil
}

func (f *fakeIssuer) ConnectionString(deviceID string) string {
	return "HostName=test.example;DeviceId=" + deviceID + ";SharedAccessKey=k"
}

// newTestPool builds a Pool over an in-memory repository and the given issuer.
func newTestPool(t *testing.T, issuer Issuer) (*Pool, *SQLiteRepository) {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t))
	return NewPool(repo, issuer, "simdevice", logging.Default()), repo
}

func TestPool_Provision(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions sequential keys", func(t *testing.T) {
		issuer := &fakeIssuer{}
		pool, repo := newTestPool(t, issuer)

		keys, err := pool.Provision(ctx, 3)
		if err != nil {
			t.Fatalf("Provision() error = %v", err)
		}

		want := []string{"simdevice0001", "simdevice0002", "simdevice0003"}
		if len(keys) != len(want) {
			t.Fatalf("Provision() = %v, want %v", keys, want)
		}
		for i, key := range want {
			if keys[i] != key {
				t.Errorf("keys[%d] = %q, want %q", i, keys[i], key)
			}
		}
		if len(issuer.created) != 3 {
			t.Errorf("issuer created %d credentials, want 3", len(issuer.created))
		}

		stored, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(stored) != 3 {
			t.Errorf("stored %d identities, want 3", len(stored))
		}
	})

	t.Run("issuance failure aborts batch but keeps prior keys", func(t *testing.T) {
		issuer := &fakeIssuer{failOn: "simdevice0003", failError: errors.New("hub unavailable")}
		pool, repo := newTestPool(t, issuer)

		keys, err := pool.Provision(ctx, 5)
		if !errors.Is(err, ErrCredentialIssuance) {
			t.Fatalf("Provision() error = %v, want ErrCredentialIssuance", err)
		}
		if len(keys) != 2 {
			t.Errorf("Provision() returned %v, want the 2 keys recorded before the failure", keys)
		}

		// Keys issued before the failure stay recorded (no rollback).
		stored, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(stored) != 2 {
			t.Errorf("stored %d identities after partial failure, want 2", len(stored))
		}
	})
}

func TestPool_ClaimScenario(t *testing.T) {
	ctx := context.Background()
	pool, _ := newTestPool(t, &fakeIssuer{})

	if _, err := pool.Provision(ctx, 3); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	first, err := pool.Claim(ctx, "abc")
	if err != nil {
		t.Fatalf("Claim(abc) error = %v", err)
	}
	if first != "simdevice0001" {
		t.Errorf("Claim(abc) = %q, want simdevice0001", first)
	}

	second, err := pool.Claim(ctx, "def")
	if err != nil {
		t.Fatalf("Claim(def) error = %v", err)
	}
	if second != "simdevice0002" {
		t.Errorf("Claim(def) = %q, want simdevice0002", second)
	}

	if err := pool.ReleaseAll(ctx); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}

	again, err := pool.Claim(ctx, "ghi")
	if err != nil {
		t.Fatalf("Claim(ghi) error = %v", err)
	}
	if again != "simdevice0001" {
		t.Errorf("Claim() after release = %q, want simdevice0001", again)
	}
}

func TestPool_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes credential then record", func(t *testing.T) {
		issuer := &fakeIssuer{}
		pool, repo := newTestPool(t, issuer)
		if _, err := pool.Provision(ctx, 1); err != nil {
			t.Fatalf("Provision() error = %v", err)
		}

		if err := pool.Delete(ctx, "simdevice0001"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if len(issuer.deleted) != 1 || issuer.deleted[0] != "simdevice0001" {
			t.Errorf("issuer.deleted = %v", issuer.deleted)
		}
		if _, err := repo.Get(ctx, "simdevice0001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("credential failure aborts record delete", func(t *testing.T) {
		issuer := &fakeIssuer{}
		pool, repo := newTestPool(t, issuer)
		if _, err := pool.Provision(ctx, 1); err != nil {
			t.Fatalf("Provision() error = %v", err)
		}

		issuer.failOn = "simdevice0001"
		issuer.failError = errors.New("hub unavailable")

		err := pool.Delete(ctx, "simdevice0001")
		if !errors.Is(err, ErrCredentialIssuance) {
			t.Fatalf("Delete() error = %v, want ErrCredentialIssuance", err)
		}
		if _, err := repo.Get(ctx, "simdevice0001"); err != nil {
			t.Errorf("record should survive a failed credential delete: %v", err)
		}
	})

	t.Run("unknown key returns ErrNotFound", func(t *testing.T) {
		pool, _ := newTestPool(t, &fakeIssuer{})
		if err := pool.Delete(ctx, "simdevice9999"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})
}

func TestPool_DeleteAll(t *testing.T) {
	ctx := context.Background()

	t.Run("continues past per-key credential failures", func(t *testing.T) {
		issuer := &fakeIssuer{}
		pool, repo := newTestPool(t, issuer)
		if _, err := pool.Provision(ctx, 3); err != nil {
			t.Fatalf("Provision() error = %v", err)
		}

		issuer.failOn = "simdevice0002"
		issuer.failError = errors.New("hub unavailable")

		count, err := pool.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll() error = %v", err)
		}
		if count != 3 {
			t.Errorf("DeleteAll() = %d, want 3", count)
		}

		stored, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(stored) != 0 {
			t.Errorf("stored = %v, want empty", stored)
		}
	})

	t.Run("empty pool is a no-op", func(t *testing.T) {
		issuer := &fakeIssuer{}
		pool, _ := newTestPool(t, issuer)

		count, err := pool.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll() error = %v", err)
		}
		if count != 0 {
			t.Errorf("DeleteAll() = %d, want 0", count)
		}
		if len(issuer.deleted) != 0 {
			t.Errorf("no credentials should be revoked for an empty pool, got %v", issuer.deleted)
		}
	})
}

func TestHubIssuer(t *testing.T) {
	ctx := context.Background()
	issuer := NewHubIssuer(config.ProvisioningConfig{
		HubHostName:        "hub.example.net",
		HubSharedAccessKey: "shared-key",
	})

	t.Run("created device gets its own key", func(t *testing.T) {
		if err := issuer.Create(ctx, "simdevice0001"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		cs := issuer.ConnectionString("simdevice0001")
		if !strings.HasPrefix(cs, "HostName=hub.example.net;DeviceId=simdevice0001;SharedAccessKey=") {
			t.Errorf("ConnectionString() = %q", cs)
		}
		if strings.HasSuffix(cs, "SharedAccessKey=shared-key") {
			t.Error("created device should not use the shared fallback key")
		}
	})

	t.Run("unknown device falls back to shared key", func(t *testing.T) {
		cs := issuer.ConnectionString("simdevice0042")
		if cs != "HostName=hub.example.net;DeviceId=simdevice0042;SharedAccessKey=shared-key" {
			t.Errorf("ConnectionString() = %q", cs)
		}
	})

	t.Run("delete forgets the device key", func(t *testing.T) {
		if err := issuer.Create(ctx, "simdevice0007"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := issuer.Delete(ctx, "simdevice0007"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		cs := issuer.ConnectionString("simdevice0007")
		if !strings.HasSuffix(cs, "SharedAccessKey=shared-key") {
			t.Errorf("deleted device should fall back to shared key: %q", cs)
		}
	})
}
