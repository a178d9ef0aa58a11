package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gglcd/internal/capture"
	"gglcd/internal/config"
	"gglcd/internal/convert"
	"gglcd/internal/framebuffer"
	"gglcd/internal/ics"
	appLog "gglcd/internal/log"
	"gglcd/internal/session"
	"gglcd/internal/widget"
)

// renderer draws the configured mode into every panel of a session and
// flushes it.
type renderer struct {
	cfg     *config.Config
	sess    *session.Session
	loc     *time.Location
	fetcher *ics.Fetcher
}

func newRenderer(cfg *config.Config, sess *session.Session) (*renderer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &renderer{
		cfg:     cfg,
		sess:    sess,
		loc:     loc,
		fetcher: ics.NewFetcher(nil),
	}, nil
}

func (r *renderer) convertOptions() convert.Options {
	return convert.Options{Level: r.cfg.Threshold, Invert: r.cfg.Invert}
}

// draw renders one frame for every panel and sends it.
func (r *renderer) draw(ctx context.Context) error {
	start := time.Now()
	now := start.In(r.loc)

	var occ []ics.Occurrence
	if r.cfg.Mode == config.ModeAgenda {
		var err error
		occ, err = r.agenda(ctx, now)
		if err != nil {
			return err
		}
	}

	var svg []byte
	if r.cfg.Mode == config.ModeSVG {
		data, err := os.ReadFile(r.cfg.SVG)
		if err != nil {
			return fmt.Errorf("read svg: %w", err)
		}
		svg = data
	}

	for _, v := range r.sess.Panels() {
		fb, ok := r.sess.Framebuffer(v)
		if !ok {
			continue
		}
		if err := r.drawPanel(ctx, fb, now, svg, occ); err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	if err := r.sess.Update(reqCtx); err != nil {
		return err
	}

	appLog.Debug("frame flushed", "mode", r.cfg.Mode, "took", time.Since(start).String())
	return nil
}

func (r *renderer) drawPanel(ctx context.Context, fb *framebuffer.Framebuffer, now time.Time, svg []byte, occ []ics.Occurrence) error {
	switch r.cfg.Mode {
	case config.ModeText:
		widget.Text(fb, widget.Lines(r.cfg.Text), widget.TextOptions{Center: true, LineGap: 1})
	case config.ModeClock:
		widget.Clock(fb, now, r.cfg.ClockLayout)
	case config.ModeSVG:
		return widget.SVG(fb, bytes.NewReader(svg), r.convertOptions())
	case config.ModeURL:
		return capture.CaptureInto(ctx, capture.Options{
			URL:     r.cfg.URL,
			Settle:  300 * time.Millisecond,
			Convert: r.convertOptions(),
		}, fb)
	case config.ModeAgenda:
		widget.Agenda(fb, occ, now)
	default:
		return fmt.Errorf("unknown mode %q", r.cfg.Mode)
	}
	return nil
}

func (r *renderer) agenda(ctx context.Context, now time.Time) ([]ics.Occurrence, error) {
	body, err := r.fetcher.Fetch(ctx, r.cfg.ICSURL)
	if err != nil {
		return nil, err
	}
	events, err := ics.Parse(body)
	if err != nil {
		return nil, err
	}
	return ics.Upcoming(events, now, time.Duration(r.cfg.HorizonDays)*24*time.Hour, 8, r.loc)
}
