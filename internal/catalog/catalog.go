// Package catalog holds the static content catalog: the mini-games a player can
// launch and the content items each one unlocks. The catalog is read-only once
// loaded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownGame    = errors.New("unknown game id")
	ErrUnknownContent = errors.New("unknown content id")
	ErrInvalid        = errors.New("invalid catalog")
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Game is a mini-game and the bounds of what a finished session may award.
type Game struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Reward  int64  `yaml:"reward" json:"reward"`
	Penalty int64  `yaml:"penalty" json:"penalty"`
}

// Content is a content item gated behind a mini-game.
type Content struct {
	ID             string `yaml:"id" json:"id"`
	Title          string `yaml:"title" json:"title"`
	RequiredGameID string `yaml:"required_game" json:"requiredGameId"`
}

type document struct {
	Games   []Game    `yaml:"games"`
	Content []Content `yaml:"content"`
}

// Catalog indexes games and content by id. Safe for concurrent reads.
type Catalog struct {
	games   map[string]Game
	content map[string]Content
	order   []string
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}

	return c
}

// Load reads a YAML catalog from path. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var doc document

	err := yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	c := &Catalog{
		games:   make(map[string]Game, len(doc.Games)),
		content: make(map[string]Content, len(doc.Content)),
		order:   make([]string, 0, len(doc.Content)),
	}

	for _, g := range doc.Games {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: game without id", ErrInvalid)
		}
		if g.Reward < 0 || g.Penalty < 0 {
			return nil, fmt.Errorf("%w: game %q has negative reward or penalty", ErrInvalid, g.ID)
		}
		if _, dup := c.games[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate game %q", ErrInvalid, g.ID)
		}

		c.games[g.ID] = g
	}

	for _, item := range doc.Content {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: content without id", ErrInvalid)
		}
		if _, dup := c.content[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate content %q", ErrInvalid, item.ID)
		}
		if _, ok := c.games[item.RequiredGameID]; !ok {
			return nil, fmt.Errorf("%w: content %q requires %q: %w", ErrInvalid, item.ID, item.RequiredGameID, ErrUnknownGame)
		}

		c.content[item.ID] = item
		c.order = append(c.order, item.ID)
	}

	return c, nil
}

// Game looks up a game by id.
func (c *Catalog) Game(id string) (Game, error) {
	g, ok := c.games[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: %q", ErrUnknownGame, id)
	}

	return g, nil
}

// Content looks up a content item by id.
func (c *Catalog) Content(id string) (Content, error) {
	item, ok := c.content[id]
	if !ok {
		return Content{}, fmt.Errorf("%w: %q", ErrUnknownContent, id)
	}

	return item, nil
}

// Items returns all content items in catalog order.
func (c *Catalog) Items() []Content {
	out := make([]Content, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.content[id])
	}

	return out
}

// Bound clamps amount to the game's configured reward (positive) or penalty
// (negative) magnitude.
func (g Game) Bound(amount int64) int64 {
	switch {
	case amount > g.Reward:
		return g.Reward
	case amount < -g.Penalty:
		return -g.Penalty
	default:
		return amount
	}
}

// Outcome returns the amount a session of this game is worth.
func (g Game) Outcome(isWin bool) int64 {
	if isWin {
		return g.Reward
	}

	return -g.Penalty
}
