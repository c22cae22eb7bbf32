package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landhub/internal/rbac"
)

func seededStore(n int) *memoryStore {
	store := &memoryStore{}
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		store.entries = append(store.entries, Entry{
			ID:        int64(i + 1),
			AdminID:   1,
			AdminRole: rbac.RoleAdmin,
			Action:    "land.create",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return store
}

func TestServiceTimelinePaging(t *testing.T) {
	svc := NewService(seededStore(3))
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Entries))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %+v", result.Paging)
	}

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline page 2: %v", err)
	}
	if len(result.Entries) != 1 || result.Paging.HasNext || result.Paging.PrevPage != 1 {
		t.Fatalf("unexpected second page: %+v", result)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	svc := NewService(seededStore(60))
	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Len(t, result.Entries, maxPageSize)
	assert.Equal(t, 1, result.Paging.Page)
}

func TestServiceTimelineEmptyIsNotNil(t *testing.T) {
	svc := NewService(&memoryStore{})
	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.NotNil(t, result.Entries)
	assert.Empty(t, result.Entries)
}

func TestServiceWithoutListerFails(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestFileStoreWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, Entry{AdminID: 1, AdminRole: rbac.RoleAdmin, Action: "land.create"}))
	require.NoError(t, store.Append(ctx, Entry{AdminID: 2, AdminRole: rbac.RoleSuperAdmin, Action: "user.restrict"}))
	require.NoError(t, store.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var actions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"land.create", "user.restrict"}, actions)

	assert.Error(t, store.Append(ctx, Entry{Action: "after.close"}))
}

func TestMultiStoreContinuesPastFailure(t *testing.T) {
	broken := &memoryStore{err: errors.New("db down")}
	healthy := &memoryStore{}
	multi := NewMultiStore(broken, nil, healthy)

	err := multi.Append(context.Background(), Entry{Action: "land.delete"})
	require.Error(t, err)
	assert.Equal(t, 1, healthy.count())
}
