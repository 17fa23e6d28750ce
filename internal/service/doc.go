// Package service runs the scraper worker and relays its output.
//
// Overview
// A Runner turns one trigger into one Run. Start generates a run id, builds
// the worker environment and spawns the worker through a Worker. When the
// spawn fails, the error wraps model.ErrLaunch and no Run exists, so nothing
// has been sent to the caller yet.
//
// A Run is consumed exactly once through Events:
//
//	Runner.Start           Worker.Spawn            Run.Events
//	     |                      |                       |
//	     | NewRunID, NewEnv --->| os/exec Start ------->| start event
//	     |                      | stdout+stderr pipe -->| Lines -> line events
//	     |                      | Wait ---------------->| end event (exit code)
//
// Invariants:
//   - stdout and stderr of the worker share one pipe, lines keep the order
//     the worker wrote them in.
//   - Lines holds at most one line of undelivered output.
//   - Wait is called exactly once per run, also when the output ended by an
//     error or the consumer stopped early (Discard).
//   - Each run owns its process and its environment, runs share nothing.
//   - The worker is killed when the run context is cancelled, unless the
//     command is detached.
package service
