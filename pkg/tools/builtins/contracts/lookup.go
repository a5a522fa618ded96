// Package contracts provides the built-in contract lookup tool,
// getContractDetailsByName. Contract records come from a Lookup backed
// by memory (tests, demos) or PostgreSQL.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by a Lookup when no contract has the name.
var ErrNotFound = errors.New("contract not found")

// Contract is the subset of a contract record the assistant can see.
type Contract struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Counterparty string `json:"counterparty,omitempty"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	Summary      string `json:"summary,omitempty"`
}

// Details renders a one-paragraph description for the model.
func (c *Contract) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", c.Name)
	if c.Type != "" {
		fmt.Fprintf(&b, " (%s)", c.Type)
	}
	if c.Counterparty != "" {
		fmt.Fprintf(&b, " with %s", c.Counterparty)
	}
	if c.Status != "" {
		fmt.Fprintf(&b, ", status %s", c.Status)
	}
	switch {
	case c.StartDate != "" && c.EndDate != "":
		fmt.Fprintf(&b, ", effective %s to %s", c.StartDate, c.EndDate)
	case c.StartDate != "":
		fmt.Fprintf(&b, ", effective from %s", c.StartDate)
	case c.EndDate != "":
		fmt.Fprintf(&b, ", effective until %s", c.EndDate)
	}
	b.WriteString(".")
	if c.Summary != "" {
		b.WriteString(" ")
		b.WriteString(c.Summary)
	}
	return b.String()
}

// Lookup finds contracts by name. Names match case-insensitively after
// trimming surrounding whitespace.
type Lookup interface {
	FindByName(ctx context.Context, name string) (*Contract, error)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MemoryLookup is an in-process Lookup.
type MemoryLookup struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

var _ Lookup = (*MemoryLookup)(nil)

// NewMemoryLookup returns a MemoryLookup seeded with contracts.
func NewMemoryLookup(contracts ...Contract) *MemoryLookup {
	m := &MemoryLookup{contracts: make(map[string]Contract, len(contracts))}
	for _, c := range contracts {
		m.Put(c)
	}
	return m
}

// Put adds or replaces a contract.
func (m *MemoryLookup) Put(c Contract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[normalizeName(c.Name)] = c
}

// FindByName implements Lookup.
func (m *MemoryLookup) FindByName(ctx context.Context, name string) (*Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[normalizeName(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Names lists the stored contract names, sorted.
func (m *MemoryLookup) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.contracts))
	for _, c := range m.contracts {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}
