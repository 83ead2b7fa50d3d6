// Package grounds maps sports onto the physical grounds they occupy.
package grounds

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"slotbook/internal/config"

	"gopkg.in/yaml.v2"
)

// Ground ids of the default venue.
const (
	MainTurf        = "main-turf"
	PickleballCourt = "pickleball-court"
	StitchballPitch = "stitchball-pitch"
)

// Sport describes one configured sport.
type Sport struct {
	Name       string   `json:"sport"`
	Ground     string   `json:"ground"`
	Contending []string `json:"contending"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	order   []string
	grounds map[string]string
	pairs   map[[2]string]bool
}

// DefaultVenue returns the stock layout: football and cricket share the turf.
func DefaultVenue() config.VenueConfig {
	return config.VenueConfig{
		Sports: []config.SportConfig{
			{Name: "football", Ground: MainTurf},
			{Name: "cricket", Ground: MainTurf},
			{Name: "pickleball", Ground: PickleballCourt},
			{Name: "stitchball", Ground: StitchballPitch},
		},
	}
}

// NewRegistry builds a registry from venue config. An empty sports list falls
// back to DefaultVenue.
func NewRegistry(venue config.VenueConfig) (*Registry, error) {
	if len(venue.Sports) == 0 {
		def := DefaultVenue()
		def.Contending = venue.Contending
		venue = def
	}
	if err := config.ValidateVenue(venue); err != nil {
		return nil, err
	}

	r := &Registry{
		grounds: make(map[string]string, len(venue.Sports)),
		pairs:   make(map[[2]string]bool, len(venue.Contending)),
	}
	for _, s := range venue.Sports {
		name := normalize(s.Name)
		ground := strings.TrimSpace(s.Ground)
		if ground == "" {
			ground = name
		}
		r.order = append(r.order, name)
		r.grounds[name] = ground
	}
	for _, p := range venue.Contending {
		r.pairs[pairKey(normalize(p[0]), normalize(p[1]))] = true
	}
	return r, nil
}

// Default is the registry of DefaultVenue.
func Default() *Registry {
	r, err := NewRegistry(DefaultVenue())
	if err != nil {
		panic(fmt.Sprintf("default venue invalid: %v", err))
	}
	return r
}

// LoadFile reads a standalone grounds file with the same layout as the
// venue config section.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grounds file: %w", err)
	}

	var venue config.VenueConfig
	if err := yaml.Unmarshal(data, &venue); err != nil {
		return nil, fmt.Errorf("parse grounds file: %w", err)
	}
	return NewRegistry(venue)
}

// GroundOf returns the ground a sport plays on. Unknown sports are their own ground.
func (r *Registry) GroundOf(sport string) string {
	name := normalize(sport)
	if g, ok := r.grounds[name]; ok {
		return g
	}
	return name
}

// SportsContend reports whether two sports cannot share an hour.
func (r *Registry) SportsContend(a, b string) bool {
	a, b = normalize(a), normalize(b)
	if r.GroundOf(a) == r.GroundOf(b) {
		return true
	}
	return r.pairs[pairKey(a, b)]
}

func (r *Registry) Known(sport string) bool {
	_, ok := r.grounds[normalize(sport)]
	return ok
}

// Sports lists configured sports in config order.
func (r *Registry) Sports() []Sport {
	out := make([]Sport, 0, len(r.order))
	for _, name := range r.order {
		var contending []string
		for _, other := range r.order {
			if other != name && r.SportsContend(name, other) {
				contending = append(contending, other)
			}
		}
		sort.Strings(contending)
		out = append(out, Sport{Name: name, Ground: r.grounds[name], Contending: contending})
	}
	return out
}

func normalize(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
