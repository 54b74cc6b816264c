package executor

import (
	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/hashing"
	"github.com/cuenv/cuenv/internal/ir"
)

// PlannedTask is one task's dry-run projection: its wave index and
// predicted cache status, computed without spawning anything.
type PlannedTask struct {
	Name        string `json:"name"`
	Wave        int    `json:"wave"`
	Fingerprint string `json:"fingerprint"`
	WouldHit    bool   `json:"would_hit"`
}

// Plan computes the wave layout and per-task cache predictions for taskIDs
// without running anything. Fingerprints are computed over manifest env
// only, not resolved secrets, since dry-run must never trigger resolver
// side effects (an exec resolver running a command, a network call to
// Infisical); a planned fingerprint can therefore differ from the one
// computed at actual execution time when cache_key secrets are in play.
func (e *Executor) Plan(doc *ir.IR, taskIDs []string) ([]PlannedTask, error) {
	e.init()

	g, err := buildGraph(doc, taskIDs)
	if err != nil {
		return nil, err
	}
	waves, err := g.GetParallelGroups()
	if err != nil {
		return nil, err
	}

	var planned []PlannedTask
	for waveIdx, wave := range waves {
		for _, name := range wave {
			task, _ := doc.TaskByID(name)

			var runtimePtr *ir.Runtime
			if task.Runtime != "" {
				if rt, ok := doc.RuntimeByID(task.Runtime); ok {
					runtimePtr = &rt
				}
			}

			inputHashes, err := hashing.HashInputs(e.WorkDir, task.Inputs)
			if err != nil {
				return nil, err
			}
			fpInputs := cache.FromTask(task, runtimePtr)
			fpInputs.InputFileHashes = inputHashes
			fingerprint := cache.Compute(fpInputs)

			wouldHit := false
			if e.Cache != nil {
				wouldHit = e.Cache.WouldHit(fingerprint, task.CachePolicy)
			}

			planned = append(planned, PlannedTask{
				Name:        name,
				Wave:        waveIdx,
				Fingerprint: fingerprint,
				WouldHit:    wouldHit,
			})
		}
	}
	return planned, nil
}
