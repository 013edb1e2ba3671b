package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/observability"
	"github.com/TalentedProger/Preloader-Animate/internal/preloader"
)

// ProgressEvent is the data of a "progress" server-sent event.
type ProgressEvent struct {
	Percent int                          `json:"percent"`
	Step    int                          `json:"step"`
	Stage   preloader.Stage              `json:"stage"`
	Fill    [preloader.StepCount]float64 `json:"fill"`
}

// CompleteEvent is the data of the final "complete" server-sent event.
type CompleteEvent struct {
	Percent   int   `json:"percent"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// introStream runs one reveal sequence and streams its progress. The sequence
// is cancelled as soon as the client goes away.
func (h *Handler) introStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	total := h.introTotal
	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > h.maxIntro {
			writeFieldError(w, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("duration must be a positive duration up to %s", h.maxIntro), "duration")
			return
		}
		total = parsed
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	notify := make(chan struct{}, 1)
	completed := make(chan struct{})

	opts := append([]preloader.Option{
		preloader.WithTickInterval(h.introTick),
		preloader.WithLogger(h.logger),
		preloader.WithObserver(func(preloader.Progress) {
			select {
			case notify <- struct{}{}:
			default:
			}
		}),
	}, h.sequencerOpt...)
	seq := preloader.New(opts...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := seq.Start(total, func() { close(completed) }); err != nil {
		h.logger.Error("intro stream: start sequencer", zap.Error(err))
		return
	}

	last := -1
	emit := func(p preloader.Progress) bool {
		if p.Percent == last {
			return true
		}
		last = p.Percent
		if err := writeEvent(w, rc, "progress", progressEvent(p)); err != nil {
			return false
		}
		return true
	}

	if !emit(seq.Snapshot()) {
		stopSequence(seq)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			outcome := stopSequence(seq)
			h.logger.Debug("intro stream client gone", zap.String("outcome", outcome), zap.Int("percent", last))
			return
		case <-notify:
			if !emit(seq.Snapshot()) {
				stopSequence(seq)
				return
			}
		case <-completed:
			final := seq.Snapshot()
			if emit(final) {
				_ = writeEvent(w, rc, "complete", CompleteEvent{Percent: final.Percent, ElapsedMS: final.Elapsed.Milliseconds()})
			}
			observability.RecordSequence("completed")
			return
		}
	}
}

// stopSequence cancels seq and records how the run ended. A run whose
// completion fired before Cancel took effect counts as completed.
func stopSequence(seq *preloader.Sequencer) string {
	seq.Cancel()
	outcome := "cancelled"
	if seq.State() == preloader.StateCompleted {
		outcome = "completed"
	}
	observability.RecordSequence(outcome)
	return outcome
}

func progressEvent(p preloader.Progress) ProgressEvent {
	ev := ProgressEvent{
		Percent: p.Percent,
		Step:    p.Step,
		Stage:   preloader.StageAt(p.Step),
	}
	for i := range ev.Fill {
		ev.Fill[i] = preloader.Fill(i, p.Percent)
	}
	return ev
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}
