package engine

import (
	"context"
	"strings"

	"playbox/src/instream"
	"playbox/src/model"
	"playbox/src/playlist"
)

// findBreak returns the first ad break with the given offset.
func findBreak(breaks []playlist.AdBreak, offset string) (playlist.AdBreak, bool) {
	for _, b := range breaks {
		if b.Offset == offset {
			return b, true
		}
	}
	return playlist.AdBreak{}, false
}

// adPodItems converts an ad break's media URIs to playable items.
func adPodItems(b playlist.AdBreak) []*playlist.Item {
	items := make([]*playlist.Item, 0, len(b.Items))
	for _, uri := range b.Items {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		items = append(items, &playlist.Item{
			ID:      uri,
			Sources: []playlist.Source{{URI: uri}},
		})
	}
	return items
}

// PlayAdBreak runs an ad break over the active content, blocking until the
// break finishes. Pod failures are reported on the event stream and never
// reach the content's error state.
func (e *Engine) PlayAdBreak(ctx context.Context, b playlist.AdBreak) error {
	return e.runAdBreak(ctx, b)
}

func (e *Engine) runAdBreak(ctx context.Context, b playlist.AdBreak) error {
	items := adPodItems(b)
	if len(items) == 0 {
		return nil
	}
	metricAdBreaks.Inc()

	adapter := instream.NewAdapter(e.program, e.registry)
	ch := adapter.Events().Listen()
	defer adapter.Events().Unlisten(ch)

	if err := adapter.Init(); err != nil {
		return err
	}
	e.lock.Lock()
	e.adapter = adapter
	e.lock.Unlock()
	e.model.Set(model.KeyAdMode, true)

	defer func() {
		e.lock.Lock()
		if e.adapter == adapter {
			e.adapter = nil
		}
		e.lock.Unlock()
		e.model.Set(model.KeyAdMode, false)
	}()

	if err := adapter.LoadItems(ctx, items, b.SkipOffset); err != nil {
		adapter.Destroy(ctx, true)
		return err
	}

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			e.Emit(event)
			if _, done := event.(instream.AdCompleteEvent); done {
				if adapter.Destroy(ctx, false) == instream.ResumeAdvance {
					e.advance()
				}
				return nil
			}
		case <-ctx.Done():
			adapter.Destroy(context.Background(), true)
			return ctx.Err()
		}
	}
}

// SkipAd skips the playing ad pod entry, honored only after its skip
// offset.
func (e *Engine) SkipAd(ctx context.Context) error {
	e.lock.Lock()
	adapter := e.adapter
	e.lock.Unlock()
	if adapter == nil {
		return instream.ErrSkipNotReady
	}
	return adapter.SkipAd(ctx)
}
