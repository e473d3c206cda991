package netgen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	exprand "golang.org/x/exp/rand"

	"github.com/simsomlab/simsom/pkg/config"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/types"
)

// minCutOff is the newsfeed length floor every user gets regardless of
// their activity level.
const minCutOff = 15

// Generate builds the agent population for a run. The follower graph
// comes either from a synthetic random-walk growth process or from an
// edge-list file, then every user is assigned behavioral attributes
// from the same seeded source.
func Generate(cfg config.NetworkConfig) ([]*types.User, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network config: %w", err)
	}
	rng := exprand.New(exprand.NewSource(uint64(cfg.Seed)))

	var (
		uids []string
		adj  [][]int
		err  error
	)
	if cfg.FromFile {
		uids, adj, err = loadEdgeList(cfg.RealWorldNetwork)
		if err != nil {
			return nil, err
		}
		log.Logger.Info().
			Str("path", cfg.RealWorldNetwork).
			Int("users", len(uids)).
			Msg("Loaded network from file")
	} else {
		adj = growGraph(cfg.NetSize, cfg.AvgNFriend, cfg.ProbabilityFollow, rng)
		uids = make([]string, len(adj))
		for i := range uids {
			uids[i] = fmt.Sprintf("u%d", i)
		}
		log.Logger.Info().
			Int("users", len(uids)).
			Int("avg_n_friend", cfg.AvgNFriend).
			Float64("probability_follow", cfg.ProbabilityFollow).
			Msg("Generated synthetic network")
	}

	return buildUsers(uids, adj, cfg, rng), nil
}

// growGraph implements a directed variant of the random-walk growth
// model. The graph starts as a full clique of k nodes; each subsequent
// node follows one uniformly chosen target, a binomial number of the
// target's friends, and uniform random nodes for the remaining slots,
// for exactly k outgoing edges per new node.
func growGraph(n, k int, p float64, rng *exprand.Rand) [][]int {
	if n <= k+1 {
		return clique(n)
	}

	adj := clique(k)
	for node := k; node < n; node++ {
		target := rng.Intn(node)
		picked := map[int]struct{}{target: {}}
		friends := []int{target}

		viaTarget := 0
		for i := 0; i < k-1; i++ {
			if rng.Float64() < p {
				viaTarget++
			}
		}
		if viaTarget > len(adj[target]) {
			viaTarget = len(adj[target])
		}
		for _, f := range sampleK(adj[target], viaTarget, rng) {
			if _, dup := picked[f]; dup {
				continue
			}
			picked[f] = struct{}{}
			friends = append(friends, f)
		}

		// Uniform fills, rejecting duplicates. At least k earlier
		// vertices exist at this point, so this terminates.
		for len(friends) < k {
			c := rng.Intn(node)
			if _, dup := picked[c]; dup {
				continue
			}
			picked[c] = struct{}{}
			friends = append(friends, c)
		}
		adj = append(adj, friends)
	}
	return adj
}

// clique returns the adjacency of a complete directed graph on n nodes.
func clique(n int) [][]int {
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j != i {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return adj
}

// sampleK picks k distinct elements from pool by partial Fisher-Yates.
func sampleK(pool []int, k int, rng *exprand.Rand) []int {
	if k <= 0 {
		return nil
	}
	scratch := append([]int(nil), pool...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(scratch)-i)
		scratch[i], scratch[j] = scratch[j], scratch[i]
	}
	return scratch[:k]
}

// loadEdgeList reads a directed edge-list CSV where each row is
// source,target and the source follows the target. A leading
// source,target header row is skipped. Self-loops and repeated edges
// are dropped.
func loadEdgeList(path string) ([]string, [][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	index := make(map[string]int)
	var uids []string
	var adj [][]int
	seen := make(map[[2]int]struct{})

	intern := func(uid string) int {
		if i, ok := index[uid]; ok {
			return i
		}
		i := len(uids)
		index[uid] = i
		uids = append(uids, uid)
		adj = append(adj, nil)
		return i
	}

	for row := 1; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse network file %s: %w", path, err)
		}
		if len(record) < 2 {
			return nil, nil, fmt.Errorf("network file %s row %d: expected source,target got %d fields",
				path, row, len(record))
		}
		src := strings.TrimSpace(record[0])
		dst := strings.TrimSpace(record[1])
		if row == 1 && strings.EqualFold(src, "source") && strings.EqualFold(dst, "target") {
			continue
		}
		if src == "" || dst == "" {
			return nil, nil, fmt.Errorf("network file %s row %d: empty node id", path, row)
		}
		if src == dst {
			continue
		}
		si, di := intern(src), intern(dst)
		edge := [2]int{si, di}
		if _, dup := seen[edge]; dup {
			continue
		}
		seen[edge] = struct{}{}
		adj[si] = append(adj[si], di)
	}

	if len(uids) == 0 {
		return nil, nil, fmt.Errorf("network file %s contains no edges", path)
	}
	return uids, adj, nil
}

// buildUsers materializes User records from the adjacency and samples
// per-user attributes.
func buildUsers(uids []string, adj [][]int, cfg config.NetworkConfig, rng *exprand.Rand) []*types.User {
	followers := make([][]int, len(adj))
	for i, outs := range adj {
		for _, j := range outs {
			followers[j] = append(followers[j], i)
		}
	}

	users := make([]*types.User, len(adj))
	for i := range adj {
		mean := rng.Float64() * cfg.MaxActionsPerDay
		users[i] = &types.User{
			UID:               uids[i],
			Friends:           toUIDs(adj[i], uids),
			Followers:         toUIDs(followers[i], uids),
			MeanActionsPerDay: mean,
			CutOff:            cutOff(mean),
			Interests:         sampleInterests(cfg.NTopics, cfg.MaxInterests, rng),
			Quality: types.QualityParams{
				Alpha: cfg.QualityAlpha,
				Beta:  cfg.QualityBeta,
				Lower: cfg.QualityLower,
				Upper: cfg.QualityUpper,
			},
		}
	}

	if cfg.ShadowFraction > 0 {
		count := int(math.Round(cfg.ShadowFraction * float64(len(users))))
		for _, i := range rng.Perm(len(users))[:count] {
			users[i].Shadow = true
		}
	}
	return users
}

func toUIDs(indices []int, uids []string) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = uids[idx]
	}
	return out
}

// cutOff derives the newsfeed length limit from the user's activity
// level. Prolific posters get a feed at least as long as a typical day
// of output.
func cutOff(meanActions float64) int {
	if c := int(math.Round(meanActions)); c > minCutOff {
		return c
	}
	return minCutOff
}

// sampleInterests draws a sparse interest vector: between one and
// maxInterests dimensions, duplicates collapsing, each with weight one.
func sampleInterests(nTopics, maxInterests int, rng *exprand.Rand) types.TopicVector {
	if maxInterests < 1 {
		maxInterests = 1
	}
	if maxInterests > nTopics {
		maxInterests = nTopics
	}
	count := 1 + rng.Intn(maxInterests)
	vec := make(types.TopicVector, nTopics)
	for i := 0; i < count; i++ {
		vec[rng.Intn(nTopics)] = 1
	}
	return vec
}
