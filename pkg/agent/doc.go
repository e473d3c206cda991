// Package agent implements the behavior model that turns a user's pending
// action budget into concrete posts, reshares, and views.
//
// # Architecture
//
// The model is a pure function of the user it is handed. It reads the
// user's newsfeed and sampling parameters, mutates the user's counters,
// and returns the produced content. It never touches the bus, the clock,
// or any shared state, which is what lets worker goroutines run one model
// each without synchronization.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                         Model                            │
//	│                                                          │
//	│  MakeActions(user)                                       │
//	│     │                                                    │
//	│     │  for each pending action:                          │
//	│     │    rand > mu and feed non-empty ──► reshare        │
//	│     │    otherwise                    ──► post           │
//	│     ▼                                                    │
//	│  ┌────────────┐    ┌─────────────────────────────┐       │
//	│  │   post     │    │          reshare            │       │
//	│  │ quality ~ β │    │ scan feed, view every item  │       │
//	│  │ appeal     │    │ pick last with appeal ≥ draw │       │
//	│  │ topics     │    │ copy quality/appeal/topics  │       │
//	│  └────────────┘    └─────────────────────────────┘       │
//	└──────────────────────────────────────────────────────────┘
//
// # Posting
//
// New messages draw quality from a Beta(alpha, beta) distribution rounded
// to two decimals and rejected into the user's [lower, upper] bounds.
// Appeal is sampled as 1-(1-u)^(1/k), which concentrates mass near zero:
// most content is unremarkable, a thin tail is viral. Shadow users always
// produce appeal zero, so their output can never win a reshare draw
// downstream. Topics are a one-hot vector drawn from the user's interest
// weights.
//
// A post whose quality falls below the configured threshold marks the
// user as a bad poster. The policy evaluator reads that flag when the
// user comes back through the pipeline.
//
// # Resharing
//
// Resharing models a user scrolling their feed. Every item scanned is
// recorded as a view, whether or not it gets reshared, so passive
// exposure is captured even when nothing qualifies. The reshared target
// is the last item whose appeal beats a single uniform draw; if none
// does, a random feed item is picked so the action budget is still
// spent.
//
// A reshare copies the target's quality, appeal, and topics. Its chain
// fields record both the direct parent and the root original, so a
// reshare of a reshare still resolves to the message that started the
// cascade.
//
// # Identifiers
//
// Message and view IDs embed a per-user sequence number and the user ID
// (P3_u42, R0_u42, V17_u42). The sequence counters live on the user and
// survive across batches, so IDs stay unique for the lifetime of a run.
//
// # Usage
//
//	model := agent.NewModel(agent.Config{
//	    Mu:                  0.5,
//	    AppealExponent:      5,
//	    BadQualityThreshold: 0.2,
//	}, seed)
//
//	msgs, views := model.MakeActions(user)
//	// msgs carry no timestamps yet; the data manager stamps them
//	// with clock values on return.
package agent
