package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastprodman/kpeconomy/internal/catalog"
)

var errInvalidScript = errors.New("invalid script")

const (
	resultWin   = "win"
	resultLose  = "lose"
	resultClose = "close"
)

// step is one mini-game session of a script.
type step struct {
	Game    string        `yaml:"game"`
	Content string        `yaml:"content"`
	Result  string        `yaml:"result"`
	Wait    time.Duration `yaml:"wait"`
}

type script struct {
	Sessions []step `yaml:"sessions"`
}

func loadScript(path string, cat *catalog.Catalog) (script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return script{}, fmt.Errorf("read script: %w", err)
	}

	return parseScript(raw, cat)
}

// parseScript decodes and validates a script. Content ids are not checked
// against the catalog; an unknown id is a valid generic-reward session.
func parseScript(raw []byte, cat *catalog.Catalog) (script, error) {
	var s script

	err := yaml.Unmarshal(raw, &s)
	if err != nil {
		return script{}, fmt.Errorf("%w: %w", errInvalidScript, err)
	}

	if len(s.Sessions) == 0 {
		return script{}, fmt.Errorf("%w: no sessions", errInvalidScript)
	}

	for i, st := range s.Sessions {
		_, err = cat.Game(st.Game)
		if err != nil {
			return script{}, fmt.Errorf("%w: session %d: %w", errInvalidScript, i, err)
		}

		switch st.Result {
		case resultWin, resultLose, resultClose:
		default:
			return script{}, fmt.Errorf("%w: session %d: result %q", errInvalidScript, i, st.Result)
		}

		if st.Wait < 0 {
			return script{}, fmt.Errorf("%w: session %d: negative wait", errInvalidScript, i)
		}
	}

	return s, nil
}
