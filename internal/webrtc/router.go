package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/logging"

	"peerlink/native/internal/domain"
	"peerlink/native/internal/util"
)

// LogRouter is the default domain.AudioRouter. It has no hardware to switch,
// so it validates the route, remembers it and logs the change.
type LogRouter struct {
	log logging.LeveledLogger

	mu    sync.Mutex
	route domain.AudioRoute
}

// NewLogRouter creates a router starting on the earpiece.
func NewLogRouter(factory logging.LoggerFactory) *LogRouter {
	return &LogRouter{
		log:   util.Scoped(factory, "audio"),
		route: domain.AudioRouteEarpiece,
	}
}

// Route implements domain.AudioRouter.
func (r *LogRouter) Route(route domain.AudioRoute) error {
	switch route {
	case domain.AudioRouteSpeaker, domain.AudioRouteEarpiece:
	default:
		return fmt.Errorf("unknown audio route %q", route)
	}

	r.mu.Lock()
	r.route = route
	r.mu.Unlock()

	r.log.Infof("audio output routed to %s", route)
	return nil
}

// Current returns the active route.
func (r *LogRouter) Current() domain.AudioRoute {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}
