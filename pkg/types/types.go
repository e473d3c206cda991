package types

// Role identifies the function of a participant in the simulation.
// Envelope sender tags carry these values on the wire.
type Role string

const (
	RoleWorker      Role = "worker"
	RoleDataManager Role = "dataMngr"
	RoleRecSys      Role = "recSys"
	RoleAgentPool   Role = "agntPoolMngr"
	RolePolicyEval  Role = "policyEval"
	RoleAnalyzer    Role = "analyzer"
)

// TopicVector is a fixed-width embedding of interests or message topics.
// All vectors in one simulation share the same dimensionality.
type TopicVector []float64

// QualityParams are the parameters of the bounded beta distribution a
// user draws message quality from.
type QualityParams struct {
	Alpha float64
	Beta  float64
	Lower float64
	Upper float64
}

// User is an agent in the social network. The Data Manager owns the
// authoritative copy; clones travel through the pipeline and the
// returned clone replaces the authoritative one on arrival.
type User struct {
	UID       string
	Friends   []string // accounts this user follows
	Followers []string // accounts following this user

	MeanActionsPerDay float64
	CutOff            int // newsfeed length limit
	Interests         TopicVector
	Quality           QualityParams

	Newsfeed []*Message

	// Lifetime action counters, also used to mint deterministic IDs.
	PostCount   int
	RepostCount int
	ViewCount   int

	// Staged by the Data Manager for the current dispatch.
	PendingActions int
	DispatchedAt   float64 // simulation time at dispatch, in days

	// Moderation state, evaluated by the Policy Evaluator.
	Shadow             bool
	BadMessagePosting  bool
	Suspended          bool
	SuspensionLiftTime float64
	Strikes            []float64 // timestamps of recorded strikes
	Terminated         bool
}

// Clone returns a copy safe to hand to another participant. Messages
// are shared because they are immutable once timestamped; mutable
// slices are copied.
func (u *User) Clone() *User {
	c := *u
	c.Friends = append([]string(nil), u.Friends...)
	c.Followers = append([]string(nil), u.Followers...)
	c.Newsfeed = append([]*Message(nil), u.Newsfeed...)
	c.Strikes = append([]float64(nil), u.Strikes...)
	return &c
}

// FriendSet returns the followed accounts as a lookup set.
func (u *User) FriendSet() map[string]struct{} {
	set := make(map[string]struct{}, len(u.Friends))
	for _, f := range u.Friends {
		set[f] = struct{}{}
	}
	return set
}

// Message is a post or reshare. Messages are immutable after the Data
// Manager assigns Time, so a single instance may appear in many
// newsfeeds at once.
type Message struct {
	MID     string
	UID     string // author
	Quality float64
	Appeal  float64
	Topics  TopicVector
	Time    float64 // simulation time in days, assigned by the Data Manager

	// Reshare chain. Empty strings on original posts.
	ResharedID         string // immediate parent message
	ResharedOriginalID string // root of the chain
	ResharedUserID     string // author of the immediate parent
}

// IsReshare reports whether m was produced by resharing another message.
func (m *Message) IsReshare() bool {
	return m.ResharedOriginalID != ""
}

// RootID returns the chain root for reshares and the message's own ID
// for original posts.
func (m *Message) RootID() string {
	if m.IsReshare() {
		return m.ResharedOriginalID
	}
	return m.MID
}

// View is a passive exposure of a user to a message in their newsfeed.
type View struct {
	VID       string
	UID       string // viewer
	ParentMID string // message seen
	ParentUID string // author of the message seen
}

// DataRequest asks the upstream participant for the next batch of work.
// It carries no payload; the sender role on the envelope is enough.
type DataRequest struct{}

// UserPack bundles a user with the network reactions to their past
// messages. The same shape flows worker to Data Manager (fresh actions)
// and Data Manager to Recommender (staged reactions for feed building).
type UserPack struct {
	User        *User
	Activities  []*Message
	Passivities []*View
}

// ProcessedBatch is a group of completed user turns returned by a
// worker to the Data Manager.
type ProcessedBatch struct {
	Packs []*UserPack
}

// FirehoseChunk is an ordered run of messages that were timestamped
// together by the Data Manager.
type FirehoseChunk struct {
	ID       string
	Messages []*Message
}

// WorkBatch is the Data Manager's reply to a data request: users ready
// for feed building plus every firehose chunk stamped since the last
// reply. Draining the whole buffer keeps the chunk stream lossless and
// in stamp order regardless of how many workers feed the manager.
type WorkBatch struct {
	Packs    []*UserPack
	Firehose []*FirehoseChunk
}

// AnalyzerPack carries one processed batch to the Analyzer. The chunk
// run is the persistence stream: concatenated across packs it lists
// every message exactly once in timestamp order. Views have no
// ordering guarantee and travel per dispatched user.
type AnalyzerPack struct {
	Users       []*User
	Passivities []*View
	Firehose    []*FirehoseChunk
}

// ModerationUpdate reports a policy outcome back to the Data Manager so
// the authoritative user record reflects it.
type ModerationUpdate struct {
	UID                string
	Suspended          bool
	SuspensionLiftTime float64
	Strikes            []float64
	Terminated         bool
	ClearFeed          bool
}
