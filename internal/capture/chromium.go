// Package capture screenshots a web page with headless Chromium and turns
// the result into a panel image.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/chromedp/chromedp"

	"gglcd/internal/convert"
	"gglcd/internal/framebuffer"
	appLog "gglcd/internal/log"
)

// DefaultTimeout bounds a whole capture, browser start-up included.
const DefaultTimeout = 30 * time.Second

// Options defines one capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/status".
	URL string

	// Width and Height are the viewport in CSS pixels. CaptureInto fills
	// them from the panel when zero.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration

	// WaitSelector, when set, is waited for (visible) before the shot.
	WaitSelector string

	// Settle is an extra delay after load for late paints.
	Settle time.Duration

	// Convert tunes thresholding in CaptureInto. Pages are usually dark
	// text on white, so Invert is the common choice.
	Convert convert.Options
}

// CapturePNG navigates to opts.URL and returns a viewport-sized PNG.
func CapturePNG(parentCtx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("capture: viewport %dx%d is invalid", opts.Width, opts.Height)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var shot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
	}
	if opts.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}
	if opts.Settle > 0 {
		tasks = append(tasks, chromedp.Sleep(opts.Settle))
	}
	tasks = append(tasks, chromedp.CaptureScreenshot(&shot))

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	appLog.Debug("page captured", "url", opts.URL, "bytes", len(shot), "took", time.Since(start).String())
	return shot, nil
}

// CaptureInto captures opts.URL at the panel's resolution and thresholds it
// into fb.
func CaptureInto(ctx context.Context, opts Options, fb *framebuffer.Framebuffer) error {
	size := fb.Size()
	if opts.Width <= 0 {
		opts.Width = size.Width
	}
	if opts.Height <= 0 {
		opts.Height = size.Height
	}

	shot, err := CapturePNG(ctx, opts)
	if err != nil {
		return err
	}
	return DecodeInto(shot, fb, opts.Convert)
}

// DecodeInto thresholds a PNG into fb.
func DecodeInto(data []byte, fb *framebuffer.Framebuffer, opts convert.Options) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("capture: decode png: %w", err)
	}
	convert.Threshold(img, fb, opts)
	return nil
}
