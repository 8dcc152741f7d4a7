package types

// Vote 单个投票。Weight 为 0 表示未设置，由共识协议决定默认权重。
type Vote struct {
	Voter     AgentID `json:"voter" yaml:"voter"`
	InFavor   bool    `json:"in_favor" yaml:"in_favor"`
	Weight    float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Rationale string  `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Abstention 未投票的参与者
type Abstention struct {
	Voter  AgentID `json:"voter" yaml:"voter"`
	Reason string  `json:"reason" yaml:"reason"`
}

// Decision 共识结果
type Decision struct {
	Proposal    string       `json:"proposal" yaml:"proposal"`
	Protocol    string       `json:"protocol" yaml:"protocol"`
	Accepted    bool         `json:"accepted" yaml:"accepted"`
	Score       float64      `json:"score" yaml:"score"`
	Votes       []Vote       `json:"votes" yaml:"votes"`
	Abstentions []Abstention `json:"abstentions,omitempty" yaml:"abstentions,omitempty"`
	Leader      *AgentID     `json:"leader,omitempty" yaml:"leader,omitempty"`
}
