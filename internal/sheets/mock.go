package sheets

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockGateway is a deterministic in-memory backend used when no real
// spreadsheet endpoint is configured, and in tests.
type MockGateway struct {
	mu          sync.RWMutex
	collections map[string][]Row
}

// DefaultCollections seed the mock backend when none are configured.
var DefaultCollections = []string{"groceries", "rent", "utilities"}

func NewMockGateway(names ...string) *MockGateway {
	if len(names) == 0 {
		names = DefaultCollections
	}
	collections := make(map[string][]Row, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			collections[name] = nil
		}
	}
	return &MockGateway{collections: collections}
}

func (g *MockGateway) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.collections))
	for name := range g.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *MockGateway) ReadCollection(ctx context.Context, name string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rows, ok := g.collections[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("read collection %q: not found", name)
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out, nil
}

func (g *MockGateway) AppendRow(ctx context.Context, name string, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := g.collections[key]; !ok {
		return fmt.Errorf("append row to %q: not found", name)
	}
	row := Row{"appended_at": time.Now().UTC().Format(time.RFC3339)}
	for i, v := range values {
		row["col"+strconv.Itoa(i+1)] = v
	}
	g.collections[key] = append(g.collections[key], row)
	return nil
}

// RowCount reports how many rows a collection holds; test helper.
func (g *MockGateway) RowCount(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.collections[strings.ToLower(name)])
}
