package contentfilter

import (
	"time"

	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/userrules"
)

// Snapshot is an immutable set of loaded filters and the engines using them.
// It is safe for concurrent use.
type Snapshot struct {
	engine   *Engine
	cosmetic *CosmeticFiltering
	elements *lookup.ElementContainer

	// Counts is the number of filters by class.
	Counts map[filterlist.Class]int

	// Lists are the ids of the lists the snapshot was built from.
	Lists []string

	// Built is the time the snapshot was built.
	Built time.Time
}

// SnapshotConfig is the configuration structure for a [Snapshot].
type SnapshotConfig struct {
	// Tables are the lookup tables of network filters by class.
	Tables map[filterlist.Class]lookup.Table

	// Elements is the selector index.  nil means no element filters.
	Elements *lookup.ElementContainer

	// User is the container of user rules.  nil means no user rules.
	User *userrules.Container

	// Lists are the ids of the lists the tables were loaded from.
	Lists []string
}

// NewSnapshot returns a new *Snapshot.  The containers of c must not be
// modified after the call.
func NewSnapshot(c *SnapshotConfig) (s *Snapshot) {
	engine := NewEngine(&EngineConfig{
		User:   c.User,
		Tables: c.Tables,
	})

	elements := c.Elements
	if elements == nil {
		elements = lookup.NewElementContainer()
	}

	counts := make(map[filterlist.Class]int, len(engine.tables)+1)
	for class, t := range engine.tables {
		counts[class] = t.Len()
	}

	counts[filterlist.ClassElement] = elements.Len()

	return &Snapshot{
		engine:   engine,
		cosmetic: newCosmetic(engine, elements),
		elements: elements,
		Counts:   counts,
		Lists:    c.Lists,
		Built:    time.Now(),
	}
}

// NewSnapshotFromResult builds a snapshot directly from a decoded list, without
// a store.  Unlike [Manager.Rebuild], it doesn't apply the $badfilter records.
func NewSnapshotFromResult(res *filterlist.Result, user *userrules.Container) (s *Snapshot) {
	tables := map[filterlist.Class]lookup.Table{}
	for class, fs := range res.Sets {
		if class.IsBad() {
			continue
		}

		c := lookup.NewFilterContainer()
		for _, f := range fs {
			c.Add(f)
		}

		tables[class] = c
	}

	elements := lookup.NewElementContainer()
	for _, e := range res.Elements {
		elements.Add(e)
	}

	return NewSnapshot(&SnapshotConfig{
		Tables:   tables,
		Elements: elements,
		User:     user,
	})
}

// newCosmetic returns the cosmetic filtering sharing the element-disable
// table and the user rules of e.
func newCosmetic(e *Engine, elements *lookup.ElementContainer) (c *CosmeticFiltering) {
	return NewCosmeticFiltering(e.tables[filterlist.ClassElementDisable], elements, e.user)
}

// Engine returns the network filtering engine of s.
func (s *Snapshot) Engine() (e *Engine) {
	return s.engine
}

// Cosmetic returns the cosmetic filtering of s.
func (s *Snapshot) Cosmetic() (c *CosmeticFiltering) {
	return s.cosmetic
}

// withUser returns a copy of s using the user rules of c.
func (s *Snapshot) withUser(c *userrules.Container) (clone *Snapshot) {
	cloned := *s
	cloned.engine = s.engine.WithUser(c)
	cloned.cosmetic = newCosmetic(cloned.engine, s.elements)

	return &cloned
}
