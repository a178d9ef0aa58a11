package session

import (
	"context"
	"time"

	"go.uber.org/atomic"

	appLog "gglcd/internal/log"
)

// DefaultHeartbeatInterval stays under the service's 15s inactivity timeout
// with room for one lost heartbeat.
const DefaultHeartbeatInterval = 10 * time.Second

type heartbeat struct {
	active atomic.Bool
	// gen identifies the loop allowed to run; older loops exit on their
	// next check.
	gen atomic.Uint64
}

// StartHeartbeat launches the keep-alive loop. A loop that is already
// running is retired first, so only one loop ever sends. interval <= 0
// means DefaultHeartbeatInterval.
func (s *Session) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if s.hb.active.Load() {
		appLog.Info("restarting heartbeat", "interval", interval.String())
	}

	s.hb.active.Store(false)
	gen := s.hb.gen.Inc()
	s.hb.active.Store(true)

	go s.heartbeatLoop(gen, interval)
}

// StopHeartbeat signals the loop to exit and returns immediately. The loop
// notices within one interval.
func (s *Session) StopHeartbeat() {
	s.hb.active.Store(false)
}

// HeartbeatActive reports whether a heartbeat loop is supposed to be running.
func (s *Session) HeartbeatActive() bool {
	return s.hb.active.Load()
}

func (s *Session) heartbeatLoop(gen uint64, interval time.Duration) {
	appLog.Debug("heartbeat loop started", "gen", gen, "interval", interval.String())
	for s.heartbeatCurrent(gen) {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := s.client.Heartbeat(ctx)
		cancel()
		if err != nil {
			// 하트비트 하나쯤 빠져도 장치 타임아웃 전에 다음 것이 간다.
			appLog.Debug("heartbeat failed", "err", err.Error())
		}
		time.Sleep(interval)
	}
	appLog.Debug("heartbeat loop stopped", "gen", gen)
}

func (s *Session) heartbeatCurrent(gen uint64) bool {
	return s.hb.active.Load() && s.hb.gen.Load() == gen
}
