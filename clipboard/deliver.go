package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/murmur/internal/types"
)

// DefaultPasteDelay gives the target app time to take focus before the chord.
const DefaultPasteDelay = 150 * time.Millisecond

// restoreDelay waits for the target app to read the clipboard before restoring it.
const restoreDelay = 300 * time.Millisecond

// DeliveryOptions controls how results reach the focused application.
type DeliveryOptions struct {
	AutoPaste        bool
	PasteDelay       time.Duration
	RestoreClipboard bool
}

// Deliverer writes results to the clipboard and optionally pastes them.
type Deliverer struct {
	clip   Clipboard
	paster Paster
	opts   DeliveryOptions
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDeliverer creates a Deliverer.
func NewDeliverer(clip Clipboard, paster Paster, opts DeliveryOptions) *Deliverer {
	if opts.PasteDelay <= 0 {
		opts.PasteDelay = DefaultPasteDelay
	}
	return &Deliverer{clip: clip, paster: paster, opts: opts, sleep: sleepCtx}
}

// Deliver copies text and, when auto-paste is on and a target app was
// captured, pastes it there. copied is true once the clipboard holds text.
func (d *Deliverer) Deliver(ctx context.Context, text string, app types.ForegroundApp) (copied, pasted bool, err error) {
	var previous string
	if d.opts.RestoreClipboard {
		previous, _ = d.clip.GetText()
	}

	if err := d.clip.SetText(text); err != nil {
		return false, false, fmt.Errorf("write clipboard: %w", err)
	}
	copied = true

	if !d.opts.AutoPaste || app.PID <= 0 || d.paster == nil {
		return copied, false, nil
	}

	if err := d.sleep(ctx, d.opts.PasteDelay); err != nil {
		return copied, false, err
	}
	if err := d.paster.Paste(app.PID); err != nil {
		return copied, false, fmt.Errorf("paste into %s: %w", app.Name, err)
	}
	pasted = true

	if d.opts.RestoreClipboard {
		if err := d.sleep(ctx, restoreDelay); err != nil {
			return copied, pasted, nil
		}
		if err := d.clip.SetText(previous); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	return copied, pasted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
