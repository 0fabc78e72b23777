// Package labels generates warehouse print-label lines for graded cards and
// keeps the label warehouse table current via idempotent upserts keyed by
// item master id.
package labels

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/datastore"
	"github.com/gradehaus/gradeflow/internal/logging"
)

// Input carries the card attributes a label is built from.
type Input struct {
	ItemMasterID string
	CardKey      string
	Players      []string
	SetName      string
	Attribute    string
}

// Lines are the four print-label lines, upper-cased and width-constrained.
type Lines struct {
	Line1 string
	Line2 string
	Line3 string
	Line4 string
}

// Generator builds label lines from card attributes.
type Generator struct {
	cfg       conf.LabelSettings
	splitLine bool
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSplitPlayerLine keeps the player line separate from the set name
// instead of folding it in, wrapping it at the player line width.
func WithSplitPlayerLine() Option {
	return func(g *Generator) { g.splitLine = true }
}

// NewGenerator creates a label line generator from the given settings.
func NewGenerator(cfg conf.LabelSettings, opts ...Option) *Generator {
	g := &Generator{cfg: cfg, logger: logging.ForService("labels")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build produces the four label lines for a card. The set name is word
// wrapped at the set line width over at most MaxSetLines lines, the player
// line carries the card key, the player names and the attribute. Lines
// beyond the fourth are discarded.
func (g *Generator) Build(in Input) Lines {
	attr := ""
	if in.Attribute != "" {
		attr = " (" + in.Attribute + ")"
	}
	playerLine := "#" + in.CardKey + " " + strings.Join(in.Players, ",") + attr

	setName := in.SetName
	if !g.splitLine {
		setName = setName + " " + playerLine + attr
		playerLine = ""
	}

	var out []string
	out = wrap(out, setName, g.cfg.SetLineWidth, g.cfg.SetLineWidth, g.cfg.MaxSetLines)
	out = wrap(out, playerLine, g.cfg.PlayerLineWidth, g.cfg.PlayerScanWidth, 0)

	lines := Lines{}
	fields := []*string{&lines.Line1, &lines.Line2, &lines.Line3, &lines.Line4}
	for i, f := range fields {
		if i < len(out) {
			*f = strings.ToUpper(out[i])
		}
	}
	return lines
}

// wrap appends text to out, word wrapped at width. The scan window bounds
// how far back a break point is searched for; maxLines caps how many wrapped
// segments are emitted before the remainder goes out as a single line
// (0 means no cap). Text with no break point inside the window is emitted
// unsplit.
func wrap(out []string, text string, width, scan, maxLines int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	emitted := 0
	for len(text) > width {
		window := text[:scan]
		cut := strings.LastIndexByte(window, ' ')
		if cut <= 0 {
			break
		}
		out = append(out, text[:cut])
		text = strings.TrimSpace(text[cut:])
		emitted++
		if maxLines > 0 && emitted >= maxLines {
			break
		}
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// InputFromItem maps a stored item to label input.
func InputFromItem(item *datastore.Item) Input {
	var players []string
	for _, p := range strings.Split(item.PlayerNames, ",") {
		if p = strings.TrimSpace(p); p != "" {
			players = append(players, p)
		}
	}
	return Input{
		ItemMasterID: item.ItemMasterID,
		CardKey:      item.CardNumber,
		Players:      players,
		SetName:      item.SetName,
		Attribute:    "",
	}
}

// RefreshItems regenerates and upserts label lines for every item with a
// resolvable item master id. Failures are logged per item and never
// returned, label generation is a best-effort side effect.
func (g *Generator) RefreshItems(ctx context.Context, store datastore.Interface, items []datastore.Item) {
	for i := range items {
		if ctx.Err() != nil {
			g.logger.Warn("label refresh interrupted", "remaining", len(items)-i, "error", ctx.Err())
			return
		}
		item := &items[i]
		if item.ItemMasterID == "" {
			continue
		}
		lines := g.Build(InputFromItem(item))
		err := store.UpsertLabel(&datastore.LabelWarehouse{
			ItemMasterID: item.ItemMasterID,
			Line1:        lines.Line1,
			Line2:        lines.Line2,
			Line3:        lines.Line3,
			Line4:        lines.Line4,
		})
		if err != nil {
			g.logger.Error("label upsert failed", "item_master_id", item.ItemMasterID, "error", err)
			continue
		}
		g.logger.Debug("label refreshed", "item_master_id", item.ItemMasterID)
	}
}
