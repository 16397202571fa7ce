package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finview/internal/core"
)

// Store keeps both collections in memory. It is the development backend and
// the test double for everything above the storage layer.
type Store struct {
	mu      sync.RWMutex
	items   map[core.Kind][]core.Transaction
	cats    map[core.Kind][]string
	version int64
}

func New() *Store {
	return &Store{
		items: map[core.Kind][]core.Transaction{},
		cats:  map[core.Kind][]string{},
	}
}

// NewFromFiles seeds a store from <base>/expenses.json and incomes.json
// (the backend's JSON shape) and optional seed_<kind>_categories.txt files.
// Missing files leave the collection empty; malformed JSON is an error.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	for _, kind := range core.Kinds() {
		txs, err := readTransactions(filepath.Join(base, string(kind)+"s.json"))
		if err != nil {
			return nil, err
		}
		s.items[kind] = txs
		s.cats[kind] = readLines(filepath.Join(base, "seed_"+string(kind)+"_categories.txt"))
	}
	return s, nil
}

// ListTransactions implements ports.TransactionLister
func (s *Store) ListTransactions(_ context.Context, kind core.Kind) ([]core.Transaction, error) {
	if !kind.Valid() {
		return nil, core.ErrUnknownKind
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.items[kind]...), nil
}

// SaveTransaction implements ports.TransactionWriter
func (s *Store) SaveTransaction(_ context.Context, kind core.Kind, tx core.Transaction) (core.ID, error) {
	if !kind.Valid() {
		return "", core.ErrUnknownKind
	}
	if tx.ID == "" {
		tx.ID = core.ID(uuid.NewString())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[kind]
	replaced := false
	for i := range items {
		if items[i].ID == tx.ID {
			items[i] = tx
			replaced = true
			break
		}
	}
	if !replaced {
		s.items[kind] = append(items, tx)
	}
	s.version++
	return tx.ID, nil
}

// ReplaceAll swaps the collection of kind for a copy of txs.
func (s *Store) ReplaceAll(_ context.Context, kind core.Kind, txs []core.Transaction) error {
	if !kind.Valid() {
		return core.ErrUnknownKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[kind] = append([]core.Transaction(nil), txs...)
	s.version++
	return nil
}

// Categories implements ports.CategoryLister
func (s *Store) Categories(_ context.Context, kind core.Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seeded := s.cats[kind]
	if len(seeded) == 0 {
		seeded = core.DefaultCategories(kind)
	}
	seen := make([]string, 0, len(s.items[kind]))
	for _, tx := range s.items[kind] {
		seen = append(seen, tx.Category)
	}
	return core.MergeCategories(seeded, seen), nil
}

// Version implements ports.Versioner
func (s *Store) Version(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func readTransactions(path string) ([]core.Transaction, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return txs, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return core.MergeCategories(out)
}
