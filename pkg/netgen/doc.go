// Package netgen builds the agent population a simulation runs on.
//
// # Architecture
//
// Two sources produce the directed follower graph, and both feed the
// same attribute sampler:
//
//	┌───────────────────┐      ┌───────────────────┐
//	│  growGraph        │      │  loadEdgeList     │
//	│  (random-walk     │      │  (source,target   │
//	│   growth model)   │      │   CSV on disk)    │
//	└─────────┬─────────┘      └─────────┬─────────┘
//	          │      adjacency + uids    │
//	          └──────────┬───────────────┘
//	                     ▼
//	          ┌─────────────────────┐
//	          │  buildUsers         │
//	          │  friends/followers  │
//	          │  activity level     │
//	          │  interests, quality │
//	          │  shadow sampling    │
//	          └─────────────────────┘
//
// An edge u→v means u follows v: v's messages are eligible for u's
// newsfeed, and u appears in v's followers.
//
// # Growth Model
//
// The synthetic graph is a directed variant of random-walk growth.
// Networks no larger than k+1 nodes become full cliques. Otherwise a
// k-clique seeds the graph and each new node picks one uniform target,
// follows a binomial share of the target's friends (probability p per
// slot, which is what produces clustering), and fills the remaining
// slots with uniform random nodes. Every grown node ends up with
// exactly k distinct friends.
//
// # Attributes
//
// Mean actions per day is uniform on [0, max_actions_per_day). The
// newsfeed cut_off is 15 or the rounded mean, whichever is larger, so
// prolific posters can hold a day of their own output. Interests are a
// sparse binary topic vector with at most max_interests hot dimensions.
// A shadow_fraction share of users is flagged shadow at generation
// time; their content gets zero appeal downstream.
//
// All sampling runs off one seeded source, so a (config, seed) pair
// reproduces the identical population.
package netgen
