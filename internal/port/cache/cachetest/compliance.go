// Package cachetest provides a compliance suite shared by every cache.Cache
// adapter.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/tenantgate/internal/port/cache"
)

// RunComplianceTests runs the standard compliance test suite against any Cache implementation.
// settle is called after writes for adapters that apply them asynchronously; it may be nil.
func RunComplianceTests(t *testing.T, c cache.Cache, settle func()) {
	t.Helper()
	ctx := context.Background()
	if settle == nil {
		settle = func() {}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "route:acme.example.com", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "route:acme.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "route:nonexistent.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "route:del.example.com", []byte("del-val"), time.Minute)
		settle()
		if err := c.Delete(ctx, "route:del.example.com"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "route:del.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "route:never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "route:ow.example.com", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "route:ow.example.com", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "route:ow.example.com")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	t.Run("HostnameWithPort", func(t *testing.T) {
		if err := c.Set(ctx, "route:127.0.0.1:8000", []byte("dev"), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "route:127.0.0.1:8000")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "dev" {
			t.Fatalf("expected dev, got %q (found=%v)", val, found)
		}
	})

	t.Run("ConcurrentReadersSeeWholeValues", func(t *testing.T) {
		a := []byte("aaaaaaaaaaaaaaaa")
		b := []byte("bbbbbbbbbbbbbbbb")
		_ = c.Set(ctx, "route:race.example.com", a, time.Minute)
		settle()

		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for i := range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				v := a
				if i%2 == 0 {
					v = b
				}
				_ = c.Set(ctx, "route:race.example.com", v, time.Minute)
			}()
			go func() {
				defer wg.Done()
				val, found, err := c.Get(ctx, "route:race.example.com")
				if err != nil || !found {
					return
				}
				if string(val) != string(a) && string(val) != string(b) {
					errs <- fmt.Errorf("torn read: %q", val)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
