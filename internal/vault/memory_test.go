package vault

import (
	"context"
	"strings"
	"testing"
	"time"

	"gallery-go/internal/gallery"
	"gallery-go/internal/testutil"
)

func TestMemoryVault_Contract(t *testing.T) {
	testVaultContract(t, func(t *testing.T) gallery.Vault {
		return NewMemoryVault("test-vault")
	})
}

func TestMemoryVault_StampsModTimeFromClock(t *testing.T) {
	clock := testutil.FixedClock()
	v := NewMemoryVaultWithClock("test-vault", clock)
	ctx := context.Background()

	if err := v.Put(ctx, "a.jpg", strings.NewReader("a")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	clock.Advance(time.Minute)
	if err := v.Put(ctx, "b.jpg", strings.NewReader("b")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	a, _ := v.Stat(ctx, "a.jpg")
	b, _ := v.Stat(ctx, "b.jpg")
	if got := b.ModifiedAt.Sub(a.ModifiedAt); got != time.Minute {
		t.Errorf("mod time difference = %v, want 1m", got)
	}
}
