package bus

import (
	"github.com/simsomlab/simsom/pkg/types"
)

// Fixed ranks for the singleton roles. Workers occupy every rank from
// FirstWorker up.
const (
	RankAnalyzer    Rank = 0
	RankDataManager Rank = 1
	RankRecSys      Rank = 2
	RankAgentPool   Rank = 3
	RankPolicyEval  Rank = 4
	FirstWorker     Rank = 5
)

// RankIndex publishes the rank layout of a run so every participant
// can address its peers without further coordination.
type RankIndex struct {
	Analyzer    Rank
	DataManager Rank
	RecSys      Rank
	AgentPool   Rank
	PolicyEval  Rank
	Workers     []Rank
}

// NewRankIndex lays out participants in the canonical order. The
// caller validates that participants is at least six beforehand.
func NewRankIndex(participants int) RankIndex {
	idx := RankIndex{
		Analyzer:    RankAnalyzer,
		DataManager: RankDataManager,
		RecSys:      RankRecSys,
		AgentPool:   RankAgentPool,
		PolicyEval:  RankPolicyEval,
	}
	for r := FirstWorker; r < Rank(participants); r++ {
		idx.Workers = append(idx.Workers, r)
	}
	return idx
}

// Size returns the total number of ranks.
func (ri RankIndex) Size() int {
	return 5 + len(ri.Workers)
}

// RoleOf maps a rank back to its role.
func (ri RankIndex) RoleOf(rank Rank) types.Role {
	switch rank {
	case ri.Analyzer:
		return types.RoleAnalyzer
	case ri.DataManager:
		return types.RoleDataManager
	case ri.RecSys:
		return types.RoleRecSys
	case ri.AgentPool:
		return types.RoleAgentPool
	case ri.PolicyEval:
		return types.RolePolicyEval
	default:
		return types.RoleWorker
	}
}
