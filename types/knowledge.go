package types

import (
	"sort"
	"strings"
	"time"
)

// KnowledgeFact 原子知识条目，按 Key 唯一，Version 为逻辑版本
type KnowledgeFact struct {
	Key       string    `json:"key" yaml:"key"`
	Topics    []string  `json:"topics" yaml:"topics"`
	Statement string    `json:"statement" yaml:"statement"`
	Version   uint64    `json:"version" yaml:"version"`
	Origin    string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Newer reports whether f should replace other under the same key.
// Higher version wins; ties are broken by origin then statement so every
// replica picks the same winner.
func (f KnowledgeFact) Newer(other KnowledgeFact) bool {
	if f.Version != other.Version {
		return f.Version > other.Version
	}
	if f.Origin != other.Origin {
		return f.Origin > other.Origin
	}
	return f.Statement > other.Statement
}

// Same reports whether two facts carry identical content and version.
func (f KnowledgeFact) Same(other KnowledgeFact) bool {
	return f.Key == other.Key && f.Version == other.Version &&
		f.Origin == other.Origin && f.Statement == other.Statement
}

// HasTopic reports whether the fact is tagged with topic (case-insensitive).
func (f KnowledgeFact) HasTopic(topic string) bool {
	for _, t := range f.Topics {
		if strings.EqualFold(t, topic) {
			return true
		}
	}
	return false
}

// MergeFacts returns the union of fact sets, keeping the newer fact per key,
// sorted by key.
func MergeFacts(sets ...[]KnowledgeFact) []KnowledgeFact {
	byKey := make(map[string]KnowledgeFact)
	for _, set := range sets {
		for _, f := range set {
			if cur, ok := byKey[f.Key]; !ok || f.Newer(cur) {
				byKey[f.Key] = f
			}
		}
	}
	out := make([]KnowledgeFact, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MissingFrom returns the facts in source that target lacks or holds at an older version.
func MissingFrom(source, target []KnowledgeFact) []KnowledgeFact {
	have := make(map[string]KnowledgeFact, len(target))
	for _, f := range target {
		have[f.Key] = f
	}
	var out []KnowledgeFact
	for _, f := range source {
		cur, ok := have[f.Key]
		if !ok || f.Newer(cur) {
			out = append(out, f)
		}
	}
	return out
}

// MaxVersion returns the highest version in the set.
func MaxVersion(facts []KnowledgeFact) uint64 {
	var v uint64
	for _, f := range facts {
		if f.Version > v {
			v = f.Version
		}
	}
	return v
}
