package run

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/eigloo/agentgraph/types"
)

// fanOutRecords is the full success record set for the PA -> {T1A,T1B} -> PB
// -> T2 graph.
func fanOutRecords() []types.ExecutionRecord {
	return []types.ExecutionRecord{
		planRecord("PA", "e1", types.ExecutionSucceeded, []string{"T1A", "T1B"}, testBase.Add(1*time.Second)),
		taskRecord("T1A", "e2", types.ExecutionSucceeded, testBase.Add(2*time.Second)),
		taskRecord("T1B", "e3", types.ExecutionSucceeded, testBase.Add(3*time.Second)),
		planRecord("PB", "e4", types.ExecutionSucceeded, []string{"T2"}, testBase.Add(4*time.Second)),
		taskRecord("T2", "e5", types.ExecutionSucceeded, testBase.Add(5*time.Second)),
	}
}

// drawPermutation shuffles records in place using draws from t.
func drawPermutation(t *rapid.T, recs []types.ExecutionRecord) {
	for i := len(recs) - 1; i > 0; i-- {
		j := rapid.IntRange(0, i).Draw(t, "swap")
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func TestProperty_CompletionIsArrivalOrderInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		recs := fanOutRecords()
		drawPermutation(rt, recs)

		b := newFakeBackend()
		b.addGraph(fanOutTestGraph(t))
		b.addRun(newQueuedRun("PA"))
		l := NewLifecycle(b, b, b, LifecycleOptions{})

		persistAndApply(t, b, l, recs...)

		r := b.run(t, testTenant, testLifetime)
		if r.Status != StatusSucceeded {
			rt.Fatalf("final status = %s after order %v, want SUCCEEDED", r.Status, recs)
		}
	})
}

func TestProperty_StrictSubsetNeverCompletes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		recs := fanOutRecords()
		drawPermutation(rt, recs)
		// Drop at least one record: the closure cannot be satisfied.
		keep := rapid.IntRange(1, len(recs)-1).Draw(rt, "keep")
		recs = recs[:keep]

		b := newFakeBackend()
		b.addGraph(fanOutTestGraph(t))
		b.addRun(newQueuedRun("PA"))
		l := NewLifecycle(b, b, b, LifecycleOptions{})

		persistAndApply(t, b, l, recs...)

		r := b.run(t, testTenant, testLifetime)
		if r.Status != StatusRunning {
			rt.Fatalf("status after %d of %d records = %s, want RUNNING", keep, 5, r.Status)
		}
	})
}

func TestProperty_FailureIsArrivalOrderInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		recs := fanOutRecords()
		// Replace a node whose success the closure needs with a failure.
		idx := rapid.IntRange(0, len(recs)-1).Draw(rt, "failed")
		recs[idx].Header.Status = types.ExecutionFailed
		recs[idx].ErrorMessage = "induced failure"
		recs[idx].NextTaskNames = nil
		drawPermutation(rt, recs)

		b := newFakeBackend()
		b.addGraph(fanOutTestGraph(t))
		b.addRun(newQueuedRun("PA"))
		l := NewLifecycle(b, b, b, LifecycleOptions{})

		persistAndApply(t, b, l, recs...)

		r := b.run(t, testTenant, testLifetime)
		if r.Status != StatusFailed {
			rt.Fatalf("final status = %s, want FAILED", r.Status)
		}
		if r.ErrorMessage == "" {
			rt.Fatalf("failed run has empty error message")
		}
	})
}

func TestProperty_TerminalRunsAreImmutable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := newFakeBackend()
		b.addGraph(fanOutTestGraph(t))
		b.addRun(newQueuedRun("PA"))
		l := NewLifecycle(b, b, b, LifecycleOptions{})

		persistAndApply(t, b, l, fanOutRecords()...)
		before := b.run(t, testTenant, testLifetime)
		if !before.Status.IsTerminal() {
			rt.Fatalf("expected terminal run, got %s", before.Status)
		}

		// Replay a random record (duplicate delivery); nothing may change.
		recs := fanOutRecords()
		replay := recs[rapid.IntRange(0, len(recs)-1).Draw(rt, "replay")]
		persistAndApply(t, b, l, replay)

		after := b.run(t, testTenant, testLifetime)
		if after.Status != before.Status ||
			after.ErrorMessage != before.ErrorMessage ||
			!after.CompletedAt.Equal(*before.CompletedAt) {
			rt.Fatalf("terminal run mutated: %+v -> %+v", before, after)
		}
	})
}
