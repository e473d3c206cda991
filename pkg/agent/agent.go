package agent

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/simsomlab/simsom/pkg/types"
)

// Config tunes the behavior model shared by all users on a worker.
type Config struct {
	// Mu is the propensity to post an original message instead of
	// resharing when the newsfeed offers something to reshare.
	Mu float64

	// AppealExponent shapes the appeal distribution 1-(1-u)^(1/k):
	// larger k concentrates appeal near zero.
	AppealExponent float64

	// BadQualityThreshold marks an original post as a moderation
	// signal when its quality falls below it.
	BadQualityThreshold float64
}

// sampling attempts before the bounded quality draw falls back to
// clamping.
const maxQualityAttempts = 1000

// Model executes user turns: it turns a user's pending action budget
// into posts, reshares, and the views collected while scanning the
// feed. One Model serves all users of a worker.
type Model struct {
	cfg Config
	rng *rand.Rand
	src rand.Source
}

// NewModel creates a behavior model with its own random stream.
func NewModel(cfg Config, seed uint64) *Model {
	if cfg.Mu <= 0 || cfg.Mu > 1 {
		cfg.Mu = 0.5
	}
	if cfg.AppealExponent <= 0 {
		cfg.AppealExponent = 5
	}

	src := rand.NewSource(seed)
	return &Model{
		cfg: cfg,
		rng: rand.New(src),
		src: src,
	}
}

// MakeActions consumes the user's pending action budget. Each action
// reshares from a non-empty feed with probability 1-mu and posts
// otherwise. The returned views record every feed item scanned while
// choosing reshare targets. BadMessagePosting signals low-quality
// posting during this turn only, so it resets on entry.
func (m *Model) MakeActions(u *types.User) ([]*types.Message, []*types.View) {
	u.BadMessagePosting = false
	n := u.PendingActions
	if n <= 0 {
		return nil, nil
	}

	messages := make([]*types.Message, 0, n)
	var views []*types.View

	for i := 0; i < n; i++ {
		if len(u.Newsfeed) > 0 && m.rng.Float64() > m.cfg.Mu {
			msg, vs := m.reshare(u)
			messages = append(messages, msg)
			views = append(views, vs...)
		} else {
			messages = append(messages, m.post(u))
		}
	}

	u.PendingActions = 0
	return messages, views
}

// post creates an original message with freshly sampled quality,
// appeal, and a single topic drawn from the author's interests.
func (m *Model) post(u *types.User) *types.Message {
	quality := m.sampleQuality(u.Quality)

	msg := &types.Message{
		MID:     fmt.Sprintf("P%d_%s", u.PostCount, u.UID),
		UID:     u.UID,
		Quality: quality,
		Appeal:  m.sampleAppeal(u),
		Topics:  m.sampleTopics(u),
	}
	u.PostCount++

	if quality < m.cfg.BadQualityThreshold {
		u.BadMessagePosting = true
	}
	return msg
}

// reshare scans the whole feed, recording one view per item, and
// reshares the last message whose appeal clears a uniformly drawn
// threshold. When nothing clears it, a uniformly random feed item is
// reshared instead.
func (m *Model) reshare(u *types.User) (*types.Message, []*types.View) {
	threshold := m.rng.Float64()

	var target *types.Message
	views := make([]*types.View, 0, len(u.Newsfeed))
	for _, item := range u.Newsfeed {
		views = append(views, &types.View{
			VID:       fmt.Sprintf("V%d_%s", u.ViewCount, u.UID),
			UID:       u.UID,
			ParentMID: item.MID,
			ParentUID: item.UID,
		})
		u.ViewCount++

		if item.Appeal >= threshold {
			target = item
		}
	}
	if target == nil {
		target = u.Newsfeed[m.rng.Intn(len(u.Newsfeed))]
	}

	msg := &types.Message{
		MID:            fmt.Sprintf("R%d_%s", u.RepostCount, u.UID),
		UID:            u.UID,
		Quality:        target.Quality,
		Appeal:         target.Appeal,
		Topics:         target.Topics,
		ResharedID:     target.MID,
		ResharedUserID: target.UID,
	}
	if target.IsReshare() {
		msg.ResharedOriginalID = target.ResharedOriginalID
	} else {
		msg.ResharedOriginalID = target.MID
	}
	u.RepostCount++

	return msg, views
}

// sampleQuality draws from the user's beta distribution, rounded to
// two decimals and rejection-sampled into the configured bounds.
func (m *Model) sampleQuality(p types.QualityParams) float64 {
	alpha, beta := p.Alpha, p.Beta
	if alpha <= 0 {
		alpha = 0.5
	}
	if beta <= 0 {
		beta = 0.15
	}
	dist := distuv.Beta{Alpha: alpha, Beta: beta, Src: m.src}

	for i := 0; i < maxQualityAttempts; i++ {
		q := math.Round(dist.Rand()*100) / 100
		if q >= p.Lower && q <= p.Upper {
			return q
		}
	}

	// Bounds with almost no beta mass: clamp instead of spinning.
	q := math.Round(dist.Rand()*100) / 100
	return math.Min(math.Max(q, p.Lower), p.Upper)
}

// sampleAppeal draws 1-(1-u)^(1/k). Shadow users produce unappealing
// content by construction.
func (m *Model) sampleAppeal(u *types.User) float64 {
	if u.Shadow {
		return 0
	}
	return 1 - math.Pow(1-m.rng.Float64(), 1/m.cfg.AppealExponent)
}

// sampleTopics picks one interest dimension, weighted by the user's
// interest mass, and emits it as a one-hot vector.
func (m *Model) sampleTopics(u *types.User) types.TopicVector {
	dim := len(u.Interests)
	if dim == 0 {
		return nil
	}

	total := 0.0
	for _, w := range u.Interests {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return types.OneHot(dim, m.rng.Intn(dim))
	}

	r := m.rng.Float64() * total
	for i, w := range u.Interests {
		if w <= 0 {
			continue
		}
		r -= w
		if r <= 0 {
			return types.OneHot(dim, i)
		}
	}
	return types.OneHot(dim, dim-1)
}
