// Package bridgetext turns a set of vessel snapshots into the single
// Swedish status line broadcast to the public display.
package bridgetext

import (
	"strings"
	"sync"
	"time"

	"github.com/projectqai/brovakt/bridge"
	"github.com/projectqai/brovakt/vessel"
)

// Generator is the stateful wrapper around the otherwise pure template
// pipeline: it remembers the last message it produced so a momentary GPS
// jump hold doesn't flash the display back to the empty-canal message.
type Generator struct {
	registry *bridge.Registry

	mu          sync.Mutex
	lastText    string
	hasLastText bool
}

// New builds a Generator against the given bridge registry.
func New(registry *bridge.Registry) *Generator {
	return &Generator{registry: registry}
}

// Generate computes the public status line for the current vessel set.
// consumedHoldMMSIs lists vessels whose pending under-bridge hold the caller
// should clear via the state engine's ConsumeHold; the generator reports,
// it never mutates engine state directly.
func (g *Generator) Generate(vessels []vessel.Snapshot, now time.Time) (message string, consumedHoldMMSIs []string) {
	visible := make([]vessel.Snapshot, 0, len(vessels))
	for _, v := range vessels {
		if v.HasGPSJumpHoldAt(now) {
			continue
		}
		visible = append(visible, v)
	}

	if len(visible) == 0 {
		g.mu.Lock()
		defer g.mu.Unlock()
		if len(vessels) > 0 && g.hasLastText {
			return g.lastText, nil
		}
		g.lastText, g.hasLastText = DefaultMessage, true
		return DefaultMessage, nil
	}

	groups := groupVessels(visible)
	if len(groups) == 0 {
		return g.cache(FallbackMessage), nil
	}

	var phrases []string
	for _, key := range orderedKeys(groups) {
		phrase, ok, consumed := phraseForGroup(key, groups[key], now, g.registry)
		if !ok {
			continue
		}
		phrases = append(phrases, phrase)
		consumedHoldMMSIs = append(consumedHoldMMSIs, consumed...)
	}

	if len(phrases) == 0 {
		return g.cache(FallbackMessage), consumedHoldMMSIs
	}

	return g.cache(strings.Join(phrases, "; ")), consumedHoldMMSIs
}

func (g *Generator) cache(text string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastText, g.hasLastText = text, true
	return text
}
