package notify

import (
	"io"
	"log"
	"log/slog"
	"slices"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/logging"
)

// Pusher sends short ops alerts to the configured shoutrrr URLs. A nil or
// disabled Pusher drops everything silently, so callers never need to guard.
type Pusher struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	logger  *slog.Logger
}

// NewPusher builds a push alert sender from settings. URL validation errors
// disable the pusher rather than failing startup.
func NewPusher(settings *conf.PushSettings) *Pusher {
	p := &Pusher{
		enabled: settings.Enabled && len(settings.URLs) > 0,
		urls:    slices.Clone(settings.URLs),
		logger:  logging.ForService("notify"),
	}
	if !p.enabled {
		return p
	}
	sender, err := shoutrrr.CreateSender(p.urls...)
	if err != nil {
		p.logger.Error("invalid push alert URLs, push disabled", "error", err)
		p.enabled = false
		return p
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	p.sender = sender
	return p
}

// Push sends a titled message to all configured services. Best effort.
func (p *Pusher) Push(title, message string) {
	if p == nil || !p.enabled || p.sender == nil {
		return
	}
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range p.sender.Send(message, &params) {
		if err != nil {
			p.logger.Error("push alert failed", "error", err)
		}
	}
}
