package netgen

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simsomlab/simsom/pkg/config"
	"github.com/simsomlab/simsom/pkg/types"
)

func testConfig() config.NetworkConfig {
	cfg := config.DefaultNetworkConfig()
	cfg.NetSize = 100
	cfg.AvgNFriend = 5
	return cfg
}

func TestGenerateTinyNetworkIsClique(t *testing.T) {
	cfg := testConfig()
	cfg.NetSize = 4
	cfg.AvgNFriend = 5 // net_size <= k+1

	users, err := Generate(cfg)
	require.NoError(t, err)
	require.Len(t, users, 4)

	for _, u := range users {
		assert.Len(t, u.Friends, 3)
		assert.Len(t, u.Followers, 3)
		assert.NotContains(t, u.Friends, u.UID)
	}
}

func TestGenerateOutDegree(t *testing.T) {
	cfg := testConfig()
	users, err := Generate(cfg)
	require.NoError(t, err)
	require.Len(t, users, 100)

	k := cfg.AvgNFriend
	for i, u := range users {
		if i < k {
			// Seed clique nodes follow the other seed nodes and never
			// gain friends afterwards.
			assert.Len(t, u.Friends, k-1)
		} else {
			assert.Len(t, u.Friends, k, "grown node %s", u.UID)
		}

		seen := make(map[string]struct{}, len(u.Friends))
		for _, f := range u.Friends {
			assert.NotEqual(t, u.UID, f, "self-follow on %s", u.UID)
			_, dup := seen[f]
			assert.False(t, dup, "duplicate friend %s on %s", f, u.UID)
			seen[f] = struct{}{}
		}
	}
}

func TestGenerateFriendsFollowersConsistent(t *testing.T) {
	users, err := Generate(testConfig())
	require.NoError(t, err)

	byUID := make(map[string]*types.User, len(users))
	for _, u := range users {
		byUID[u.UID] = u
	}
	for _, u := range users {
		for _, f := range u.Friends {
			assert.Contains(t, byUID[f].Followers, u.UID,
				"%s follows %s but is not in their followers", u.UID, f)
		}
		for _, f := range u.Followers {
			assert.Contains(t, byUID[f].Friends, u.UID,
				"%s is followed by %s but not in their friends", u.UID, f)
		}
	}
}

func TestGenerateAttributes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxActionsPerDay = 50
	cfg.NTopics = 7
	cfg.MaxInterests = 4
	cfg.QualityLower = 0.1
	cfg.QualityUpper = 0.9

	users, err := Generate(cfg)
	require.NoError(t, err)

	sawLongCutOff := false
	for _, u := range users {
		require.GreaterOrEqual(t, u.MeanActionsPerDay, 0.0)
		require.Less(t, u.MeanActionsPerDay, 50.0)

		if rounded := int(math.Round(u.MeanActionsPerDay)); rounded > 15 {
			assert.Equal(t, rounded, u.CutOff)
			sawLongCutOff = true
		} else {
			assert.Equal(t, 15, u.CutOff)
		}

		require.Len(t, u.Interests, 7)
		hot := 0
		for _, w := range u.Interests {
			require.Contains(t, []float64{0, 1}, w)
			if w == 1 {
				hot++
			}
		}
		assert.GreaterOrEqual(t, hot, 1)
		assert.LessOrEqual(t, hot, 4)

		assert.Equal(t, 0.1, u.Quality.Lower)
		assert.Equal(t, 0.9, u.Quality.Upper)
	}
	assert.True(t, sawLongCutOff, "mean 50 should produce cut_offs above the floor")
}

func TestGenerateShadowFraction(t *testing.T) {
	cfg := testConfig()
	cfg.NetSize = 200
	cfg.ShadowFraction = 0.25

	users, err := Generate(cfg)
	require.NoError(t, err)

	shadows := 0
	for _, u := range users {
		if u.Shadow {
			shadows++
		}
	}
	assert.Equal(t, 50, shadows)
}

func TestGenerateDeterministicBySeed(t *testing.T) {
	cfg := testConfig()

	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].UID, b[i].UID)
		assert.Equal(t, a[i].Friends, b[i].Friends)
		assert.Equal(t, a[i].MeanActionsPerDay, b[i].MeanActionsPerDay)
		assert.Equal(t, a[i].Interests, b[i].Interests)
	}

	cfg.Seed = 99
	c, err := Generate(cfg)
	require.NoError(t, err)
	diverged := false
	for i := range a {
		if a[i].MeanActionsPerDay != c[i].MeanActionsPerDay {
			diverged = true
			break
		}
	}
	assert.True(t, diverged, "different seeds should produce different populations")
}

func TestGenerateInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NetSize = 0
	_, err := Generate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid network config")
}

func writeNetworkFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEdgeList(t *testing.T) {
	path := writeNetworkFile(t, "source,target\nalice,bob\nalice,carol\nbob,carol\nalice,bob\ncarol,carol\n")

	uids, adj, err := loadEdgeList(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "carol"}, uids)
	assert.Equal(t, []int{1, 2}, adj[0], "duplicate alice->bob dropped")
	assert.Equal(t, []int{2}, adj[1])
	assert.Empty(t, adj[2], "self-loop dropped")
}

func TestLoadEdgeListNoHeader(t *testing.T) {
	path := writeNetworkFile(t, "u1,u2\nu2,u1\n")

	uids, adj, err := loadEdgeList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, uids)
	assert.Equal(t, []int{1}, adj[0])
	assert.Equal(t, []int{0}, adj[1])
}

func TestLoadEdgeListErrors(t *testing.T) {
	_, _, err := loadEdgeList(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, _, err = loadEdgeList(writeNetworkFile(t, "source,target\nonlyone\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	_, _, err = loadEdgeList(writeNetworkFile(t, "source,target\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no edges")
}

func TestGenerateFromFile(t *testing.T) {
	var content string
	for i := 0; i < 10; i++ {
		content += fmt.Sprintf("n%d,n%d\n", i, (i+1)%10)
	}
	path := writeNetworkFile(t, content)

	cfg := testConfig()
	cfg.FromFile = true
	cfg.RealWorldNetwork = path

	users, err := Generate(cfg)
	require.NoError(t, err)
	require.Len(t, users, 10)
	for _, u := range users {
		assert.Len(t, u.Friends, 1)
		assert.Len(t, u.Followers, 1)
		assert.NotZero(t, u.CutOff)
		assert.NotEmpty(t, u.Interests)
	}
}
