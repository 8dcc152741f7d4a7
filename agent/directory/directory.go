package directory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// Directory holds the capability profile of every known agent.
// All mutation goes through Register/SetLoad/SetAvailability under a single
// writer lock; readers always receive clones, so a lookup never observes a
// half-written record.
type Directory struct {
	mu sync.RWMutex

	// agents stores registered agents by ID.
	agents map[string]*types.AgentCapabilities

	// skillIndex indexes agent IDs by lower-cased skill name.
	skillIndex map[string]map[string]struct{}

	logger *zap.Logger
	now    func() time.Time
}

// New creates an empty directory.
func New(logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		agents:     make(map[string]*types.AgentCapabilities),
		skillIndex: make(map[string]map[string]struct{}),
		logger:     logger.With(zap.String("component", "agent_directory")),
		now:        time.Now,
	}
}

// Register inserts or replaces the entry for caps.Agent. Idempotent;
// concurrent registrations of the same id are last-write-wins.
func (d *Directory) Register(caps types.AgentCapabilities) error {
	if caps.Agent.IsZero() {
		return types.NewError(types.ErrInvalidInput, "agent id is required")
	}

	entry := caps.Clone()
	if entry.Proficiency == nil {
		entry.Proficiency = make(map[string]float64)
	}
	entry.Normalize()
	entry.UpdatedAt = d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.agents[entry.Agent.ID]; ok {
		d.unindexLocked(old)
	}
	d.agents[entry.Agent.ID] = &entry
	d.indexLocked(&entry)

	d.logger.Debug("agent registered",
		zap.String("agent_id", entry.Agent.ID),
		zap.Strings("skills", entry.Skills),
		zap.Float64("load", entry.Load),
		zap.Bool("available", entry.Available),
	)
	return nil
}

// Lookup returns a copy of the agent's capabilities.
func (d *Directory) Lookup(id string) (types.AgentCapabilities, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.agents[id]
	if !ok {
		return types.AgentCapabilities{}, false
	}
	return entry.Clone(), true
}

// Contains reports whether the agent is registered.
func (d *Directory) Contains(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.agents[id]
	return ok
}

// ListAll returns every registered agent sorted by id.
func (d *Directory) ListAll() []types.AgentCapabilities {
	d.mu.RLock()
	out := make([]types.AgentCapabilities, 0, len(d.agents))
	for _, entry := range d.agents {
		out = append(out, entry.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Agent.ID < out[j].Agent.ID })
	return out
}

// FindBySkill returns agents declaring skill, sorted by descending proficiency
// for that skill; ties are broken by ascending load, then id.
func (d *Directory) FindBySkill(skill string) []types.AgentCapabilities {
	key := strings.ToLower(strings.TrimSpace(skill))

	d.mu.RLock()
	ids := d.skillIndex[key]
	out := make([]types.AgentCapabilities, 0, len(ids))
	for id := range ids {
		out = append(out, d.agents[id].Clone())
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].ProficiencyFor(skill), out[j].ProficiencyFor(skill)
		if pi != pj {
			return pi > pj
		}
		if out[i].Load != out[j].Load {
			return out[i].Load < out[j].Load
		}
		return out[i].Agent.ID < out[j].Agent.ID
	})
	return out
}

// SetLoad updates the load factor of a registered agent.
func (d *Directory) SetLoad(id string, load float64) error {
	return d.update(id, func(c *types.AgentCapabilities) {
		c.Load = load
	})
}

// SetAvailability marks an agent available or unavailable. Agents are never removed.
func (d *Directory) SetAvailability(id string, available bool) error {
	return d.update(id, func(c *types.AgentCapabilities) {
		c.Available = available
	})
}

// Snapshot returns copies of the listed agents in the given order, failing on the
// first unknown id. Engines call it once per operation so each call works on a
// consistent view of its inputs.
func (d *Directory) Snapshot(ids []types.AgentID) ([]types.AgentCapabilities, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.AgentCapabilities, 0, len(ids))
	for _, id := range ids {
		entry, ok := d.agents[id.ID]
		if !ok {
			return nil, types.NewUnknownAgentError(id.ID)
		}
		out = append(out, entry.Clone())
	}
	return out, nil
}

// Len returns the number of registered agents.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.agents)
}

// update copies the record, applies fn and swaps the pointer, so a reader holding
// a previous clone is unaffected.
func (d *Directory) update(id string, fn func(*types.AgentCapabilities)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.agents[id]
	if !ok {
		return types.NewUnknownAgentError(id)
	}
	next := entry.Clone()
	fn(&next)
	next.Normalize()
	next.UpdatedAt = d.now()
	d.agents[id] = &next
	return nil
}

func (d *Directory) indexLocked(c *types.AgentCapabilities) {
	for _, skill := range c.Skills {
		key := strings.ToLower(skill)
		if d.skillIndex[key] == nil {
			d.skillIndex[key] = make(map[string]struct{})
		}
		d.skillIndex[key][c.Agent.ID] = struct{}{}
	}
}

func (d *Directory) unindexLocked(c *types.AgentCapabilities) {
	for _, skill := range c.Skills {
		key := strings.ToLower(skill)
		delete(d.skillIndex[key], c.Agent.ID)
		if len(d.skillIndex[key]) == 0 {
			delete(d.skillIndex, key)
		}
	}
}
