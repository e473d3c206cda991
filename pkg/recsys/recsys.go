package recsys

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

const (
	// inventoryHighWater bounds the candidate pool; on overflow only
	// the most recent inventoryKeep messages survive.
	inventoryHighWater = 2000
	inventoryKeep      = 1000
)

// Config tunes feed assembly.
type Config struct {
	// InPerc and OutPerc are the shares of the in-network and
	// out-of-network candidate pools admitted into a feed. Zero
	// selects the 0.5 default.
	InPerc  float64
	OutPerc float64

	// FilterSuspended drops messages authored by users the
	// recommender has seen suspended.
	FilterSuspended bool

	ProbeTimeout time.Duration
	DrainTimeout time.Duration
}

// Recommender builds personalized newsfeeds for every dispatched user
// and fans the processed batch out to the Agent Pool Manager and the
// Analyzer.
type Recommender struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config

	inventory []*types.Message
	suspended map[string]bool
	invSize   atomic.Int64

	logger zerolog.Logger
}

// New creates a Recommender bound to its bus endpoint.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) *Recommender {
	if cfg.InPerc <= 0 {
		cfg.InPerc = 0.5
	}
	if cfg.OutPerc <= 0 {
		cfg.OutPerc = 0.5
	}
	return &Recommender{
		ep:        ep,
		ranks:     ranks,
		cfg:       cfg,
		suspended: make(map[string]bool),
		logger:    log.WithRank(string(types.RoleRecSys), int(ranks.RecSys)),
	}
}

// InventorySize reports the current candidate pool length. Safe to
// call from the metrics collector.
func (r *Recommender) InventorySize() int {
	return int(r.invSize.Load())
}

// Run executes the recommender until STOP, a stall, or a protocol
// fault, then drains and joins the shutdown barrier.
func (r *Recommender) Run() error {
	r.ep.Barrier()
	r.logger.Info().Msg("Recommender started")

	err := r.loop()

	r.ep.Flush()
	if n := r.ep.Drain(r.cfg.DrainTimeout); n > 0 {
		r.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	r.ep.Barrier()
	return err
}

func (r *Recommender) loop() error {
	for {
		env, ok := r.ep.Poll(r.cfg.ProbeTimeout)
		if !ok {
			r.logger.Error().Msg("No traffic within probe window, escalating stop")
			r.ep.Broadcast(bus.Stop)
			return fmt.Errorf("recommender: %w", bus.ErrStalled)
		}
		if env.IsStop() {
			r.logger.Info().Msg("Stop received")
			return nil
		}

		switch env.From {
		case types.RoleAgentPool:
			req, ok := env.Body.(*types.DataRequest)
			if !ok {
				return r.protocolError(env)
			}
			r.ep.Send(r.ranks.DataManager, req)
		case types.RoleDataManager:
			batch, ok := env.Body.(*types.WorkBatch)
			if !ok {
				return r.protocolError(env)
			}
			r.handleWorkBatch(batch)
		default:
			return r.protocolError(env)
		}
	}
}

func (r *Recommender) protocolError(env bus.Envelope) error {
	r.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	r.ep.Broadcast(bus.Stop)
	return fmt.Errorf("recommender: unexpected envelope from %s", env.From)
}

// handleWorkBatch folds each pack's staged activities into the
// inventory, rebuilds that user's feed, and forwards the assembled
// batch downstream. The firehose run passes through untouched; the
// Analyzer persists from it, so the Recommender must not reorder or
// thin it.
func (r *Recommender) handleWorkBatch(batch *types.WorkBatch) {
	users := make([]*types.User, 0, len(batch.Packs))
	var passivities []*types.View

	for _, pack := range batch.Packs {
		u := pack.User
		r.noteModeration(u)

		r.inventory = append(r.inventory, pack.Activities...)
		r.buildFeed(u)

		users = append(users, u)
		passivities = append(passivities, pack.Passivities...)
	}

	if len(r.inventory) > inventoryHighWater {
		r.inventory = append([]*types.Message(nil), r.inventory[len(r.inventory)-inventoryKeep:]...)
	}
	r.invSize.Store(int64(len(r.inventory)))

	r.ep.Send(r.ranks.Analyzer, &types.AnalyzerPack{
		Users:       users,
		Passivities: passivities,
		Firehose:    batch.Firehose,
	})
	r.ep.Send(r.ranks.AgentPool, users)
}

// noteModeration tracks suspension state observed on passing user
// copies so the optional author filter has something to consult.
func (r *Recommender) noteModeration(u *types.User) {
	if u.Suspended {
		r.suspended[u.UID] = true
	} else {
		delete(r.suspended, u.UID)
	}
}

// buildFeed assembles u's newsfeed from the inventory: partition into
// in-network and out-of-network candidates, admit the configured share
// of each, deduplicate reshare chains, rank by topic similarity, and
// truncate to the user's cut_off.
func (r *Recommender) buildFeed(u *types.User) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FeedBuildDuration)

	friends := u.FriendSet()
	var in, out []*types.Message
	for _, msg := range r.inventory {
		if r.cfg.FilterSuspended && r.suspended[msg.UID] {
			continue
		}
		if _, ok := friends[msg.UID]; ok {
			in = append(in, msg)
		} else {
			out = append(out, msg)
		}
	}

	nIn := int(float64(len(in)) * r.cfg.InPerc)
	nOut := int(float64(len(out)) * r.cfg.OutPerc)
	feed := make([]*types.Message, 0, nIn+nOut)
	feed = append(feed, in[:nIn]...)
	feed = append(feed, out[:nOut]...)

	feed = CleanFeed(feed)
	feed = RankByTopicSimilarity(feed, u.Interests)
	if len(feed) > u.CutOff {
		feed = feed[:u.CutOff]
	}
	u.Newsfeed = feed
	metrics.FeedsBuilt.Inc()
}

// CleanFeed deduplicates reshare chains. The most recent reshare of
// each root is kept and weighted by how many times the root appeared;
// originals pass through untouched. The result is ordered by (weight,
// time) descending, ties resolved by recency.
func CleanFeed(feed []*types.Message) []*types.Message {
	if len(feed) == 0 {
		return feed
	}

	byTime := append([]*types.Message(nil), feed...)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].Time > byTime[j].Time
	})

	weights := make(map[string]int)
	keptByRoot := make(map[string]*types.Message)
	var rootOrder []string
	var orphans []*types.Message

	for _, msg := range byTime {
		if !msg.IsReshare() {
			orphans = append(orphans, msg)
			continue
		}
		root := msg.ResharedOriginalID
		if _, seen := keptByRoot[root]; !seen {
			keptByRoot[root] = msg
			rootOrder = append(rootOrder, root)
			weights[root] = 1
		} else {
			weights[root]++
		}
	}

	cleaned := make([]*types.Message, 0, len(rootOrder)+len(orphans))
	for _, root := range rootOrder {
		cleaned = append(cleaned, keptByRoot[root])
	}
	cleaned = append(cleaned, orphans...)

	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Time > cleaned[j].Time
	})
	sort.SliceStable(cleaned, func(i, j int) bool {
		wi, wj := reshareWeight(weights, cleaned[i]), reshareWeight(weights, cleaned[j])
		if wi != wj {
			return wi > wj
		}
		return cleaned[i].Time > cleaned[j].Time
	})
	return cleaned
}

// reshareWeight looks up a message's chain weight. Originals always
// weigh zero, even when their own chain was deduplicated alongside.
func reshareWeight(weights map[string]int, m *types.Message) int {
	if !m.IsReshare() {
		return 0
	}
	return weights[m.ResharedOriginalID]
}

// RankByTopicSimilarity orders messages by cosine similarity between
// their topics and the given interest vector, most similar first.
// Ties keep their incoming order.
func RankByTopicSimilarity(feed []*types.Message, interests types.TopicVector) []*types.Message {
	if len(feed) == 0 {
		return feed
	}
	sims := make([]float64, len(feed))
	for i, msg := range feed {
		sims[i] = interests.Cosine(msg.Topics)
	}
	idx := make([]int, len(feed))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return sims[idx[a]] > sims[idx[b]]
	})
	ranked := make([]*types.Message, len(feed))
	for i, j := range idx {
		ranked[i] = feed[j]
	}
	return ranked
}
