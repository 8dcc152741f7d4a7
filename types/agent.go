package types

import (
	"sort"
	"strings"
	"time"
)

// AgentID identifies an agent. Two AgentIDs are equal when their ID matches;
// Name is display-only.
type AgentID struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// NewAgentID creates an AgentID.
func NewAgentID(id, name string) AgentID {
	return AgentID{ID: id, Name: name}
}

// Equal compares identifiers only.
func (a AgentID) Equal(other AgentID) bool {
	return a.ID == other.ID
}

// IsZero reports whether the identifier is empty.
func (a AgentID) IsZero() bool {
	return a.ID == ""
}

// String returns "name(id)" or just the id.
func (a AgentID) String() string {
	if a.Name == "" || a.Name == a.ID {
		return a.ID
	}
	return a.Name + "(" + a.ID + ")"
}

// AgentCapabilities Agent 能力画像
type AgentCapabilities struct {
	Agent AgentID `json:"agent" yaml:"agent"`

	// Skills 技能标签（有序）
	Skills []string `json:"skills" yaml:"skills"`

	// Proficiency 技能 -> 熟练度 (0-1)
	Proficiency map[string]float64 `json:"proficiency" yaml:"proficiency"`

	// Load 负载因子，0 空闲，1 饱和
	Load float64 `json:"load" yaml:"load"`

	Available bool      `json:"available" yaml:"available"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy so readers never share mutable state with the directory.
func (c AgentCapabilities) Clone() AgentCapabilities {
	out := c
	if c.Skills != nil {
		out.Skills = append([]string(nil), c.Skills...)
	}
	if c.Proficiency != nil {
		out.Proficiency = make(map[string]float64, len(c.Proficiency))
		for k, v := range c.Proficiency {
			out.Proficiency[k] = v
		}
	}
	return out
}

// HasSkill reports whether the agent declares the skill (case-insensitive).
func (c AgentCapabilities) HasSkill(skill string) bool {
	for _, s := range c.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// ProficiencyFor returns the proficiency for a declared skill, 0 otherwise.
// A declared skill without an explicit proficiency counts as 0.5.
func (c AgentCapabilities) ProficiencyFor(skill string) float64 {
	for _, s := range c.Skills {
		if !strings.EqualFold(s, skill) {
			continue
		}
		if p, ok := c.Proficiency[s]; ok {
			return p
		}
		for k, p := range c.Proficiency {
			if strings.EqualFold(k, skill) {
				return p
			}
		}
		return 0.5
	}
	return 0
}

// Normalize clamps proficiency and load into [0,1] and adds proficiency-only skills
// to the ordered skill list.
func (c *AgentCapabilities) Normalize() {
	c.Load = clamp01(c.Load)
	var missing []string
	for k, v := range c.Proficiency {
		c.Proficiency[k] = clamp01(v)
		if !c.HasSkill(k) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	c.Skills = append(c.Skills, missing...)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
