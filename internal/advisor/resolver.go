package advisor

import (
	"context"
	"fmt"

	"zenith/internal/core"
	"zenith/internal/log"
)

// NoDataReply is returned for any non-small-talk question while the store
// is empty.
const NoDataReply = "📝 No expense data yet. Add some transactions first to get personalized insights!"

// SnapshotSource returns the current, possibly cached, analytics snapshot.
type SnapshotSource interface {
	Get(ctx context.Context) (*core.Snapshot, error)
}

// Resolution is the outcome of routing one question. When Reply is set the
// question is fully answered and no model call is needed.
type Resolution struct {
	SmallTalk bool           `json:"smallTalk"`
	NoData    bool           `json:"noData"`
	Reply     string         `json:"reply,omitempty"`
	Intent    Intent         `json:"intent"`
	Fact      string         `json:"fact,omitempty"`
	Snapshot  *core.Snapshot `json:"snapshot,omitempty"`
}

// Answered reports whether Reply already answers the question.
func (r Resolution) Answered() bool {
	return r.Reply != ""
}

// Resolver turns a question into a canned reply or a pre-computed fact.
type Resolver struct {
	snapshots SnapshotSource
	format    Formatter
	logger    *log.Logger
}

func NewResolver(snapshots SnapshotSource, symbol string, logger *log.Logger) *Resolver {
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	return &Resolver{
		snapshots: snapshots,
		format:    Formatter{Symbol: symbol},
		logger:    logger.WithComponent(log.ComponentAdvisor),
	}
}

// Resolve routes question. Small talk is answered without reading any
// data. Otherwise the snapshot is fetched once and, if non-empty, the
// first matching intent's fact is rendered from it.
func (r *Resolver) Resolve(ctx context.Context, question string) (Resolution, error) {
	if IsSmallTalk(question) {
		return Resolution{SmallTalk: true, Reply: PickSmallTalkReply()}, nil
	}

	snap, err := r.snapshots.Get(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snap.TransactionCount == 0 {
		return Resolution{NoData: true, Reply: NoDataReply, Snapshot: snap}, nil
	}

	intent := Classify(question)
	res := Resolution{
		Intent:   intent,
		Fact:     Fact(intent, snap, r.format),
		Snapshot: snap,
	}
	r.logger.DebugContext(ctx, "Question resolved", log.FieldIntent, intent.String())
	return res, nil
}

// Snapshot exposes the underlying snapshot source.
func (r *Resolver) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	return r.snapshots.Get(ctx)
}
