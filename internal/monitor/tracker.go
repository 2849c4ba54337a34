// Package monitor implements the range-monitoring loop: it periodically
// fetches the owner's positions and the pool's active bin, detects
// in-range/out-of-range transitions, alerts the operator on edges, and hands
// exited positions to the rebalance pipeline.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
)

// Tracker holds the per-position range state and owns notification dedup.
// Alerts are edge-triggered: at most one out-of-range alert per contiguous
// out-of-range streak, and at most one back-in-range alert per return.
type Tracker struct {
	mu       sync.Mutex
	statuses map[string]*domain.RangeStatus
	alerts   domain.Alerter
	logger   *slog.Logger
}

// NewTracker creates an empty Tracker.
func NewTracker(alerts domain.Alerter, logger *slog.Logger) *Tracker {
	return &Tracker{
		statuses: make(map[string]*domain.RangeStatus),
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "tracker")),
	}
}

// Evaluate updates the stored status of pos against activeBin and dispatches
// edge alerts. A position seen for the first time is assumed in-range, so a
// position that is already out of range at discovery alerts on the poll
// after first observation, not on the first observation itself: the stored
// containment is updated only after the notification check.
func (t *Tracker) Evaluate(ctx context.Context, pos domain.Position, activeBin int32) domain.Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statuses[pos.ID]
	if !ok {
		st = &domain.RangeStatus{InRange: true}
		t.statuses[pos.ID] = st
	}

	inRange := pos.Contains(activeBin)
	transition := domain.TransitionUnchanged

	if !inRange {
		if !st.InRange && !st.Notified {
			t.alerts.Alert(ctx, notify.EventRangeExit,
				"Position out of range",
				exitMessage(pos, activeBin),
			)
			st.Notified = true
			transition = domain.TransitionExited
		}
	} else if st.Notified {
		t.alerts.Alert(ctx, notify.EventRangeEnter,
			"Position back in range",
			fmt.Sprintf("%s\nactive bin %d is inside [%d, %d] again",
				pos.ID, activeBin, pos.LowerBin, pos.UpperBin),
		)
		st.Notified = false
		transition = domain.TransitionEntered
	}

	// Containment is stored after the notification check.
	st.InRange = inRange

	if transition != domain.TransitionUnchanged {
		t.logger.InfoContext(ctx, "range transition",
			slog.String("position", pos.ID),
			slog.String("transition", transition.String()),
			slog.Int("active_bin", int(activeBin)),
		)
	}

	return transition
}

// Status returns a copy of the stored state for a position and whether the
// position is tracked at all.
func (t *Tracker) Status(positionID string) (domain.RangeStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statuses[positionID]
	if !ok {
		return domain.RangeStatus{}, false
	}
	return *st, true
}

// Forget drops tracking state for positions absent from the given key set.
// Called after each cycle so closed positions do not accumulate.
func (t *Tracker) Forget(live map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.statuses {
		if !live[id] {
			delete(t.statuses, id)
		}
	}
}

func exitMessage(pos domain.Position, activeBin int32) string {
	dist := pos.BinDistance(activeBin)
	var where string
	if dist < 0 {
		where = fmt.Sprintf("%d bins below lower bound", -dist)
	} else {
		where = fmt.Sprintf("%d bins above upper bound", dist)
	}
	return fmt.Sprintf("%s\nactive bin %d left range [%d, %d] (%s)\nheld: x=%s y=%s",
		pos.ID, activeBin, pos.LowerBin, pos.UpperBin, where,
		pos.AmountX.String(), pos.AmountY.String(),
	)
}
