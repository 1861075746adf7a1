package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// variants is the closed set of supported engine versions.
var variants = map[string]Variant{
	"17":   stockfish17{},
	"16.1": stockfish16_1{},
	"16":   stockfish16{},
	"11":   stockfish11{},
}

// Selector turns an engine identity into a running session.
type Selector struct {
	opts  Options
	probe Probe
	log   zerolog.Logger
}

// NewSelector creates a selector. A nil probe means CPUProbe.
func NewSelector(opts Options, probe Probe) *Selector {
	if probe == nil {
		probe = CPUProbe{}
	}
	return &Selector{
		opts:  opts,
		probe: probe,
		log:   opts.Logger,
	}
}

// Select starts the variant named by id with the given worker hint. It
// fails with *UnsupportedEnvironmentError when the host cannot run a
// non-legacy variant; nothing is started in that case.
func (s *Selector) Select(ctx context.Context, id Identity, workers int) (*Session, error) {
	variant, ok := variants[id.Version]
	if !ok || id.Family != "stockfish" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, id)
	}
	if !variant.Legacy() && !s.probe.FeatureSupported() {
		err := &UnsupportedEnvironmentError{Engine: id.String()}
		s.log.Warn().Err(err).Msg("engine selection refused")
		return nil, err
	}

	flavor := id.Lite
	if id.Version == "16" {
		flavor = id.NNUE
	}
	session, err := variant.Create(ctx, s.opts, flavor, workers)
	if err != nil {
		s.log.Error().Err(err).Str("engine", id.String()).Msg("engine selection failed")
		return nil, err
	}
	return session, nil
}

// SelectName is Select for a user-facing engine name.
func (s *Selector) SelectName(ctx context.Context, name Name, workers int) (*Session, error) {
	id, err := name.Identity()
	if err != nil {
		return nil, err
	}
	return s.Select(ctx, id, workers)
}

// Availability reports which engines this host can run.
type Availability struct {
	Name      Name `json:"name"`
	Legacy    bool `json:"legacy"`
	Supported bool `json:"supported"`
}

func (s *Selector) Available() []Availability {
	featureOK := s.probe.FeatureSupported()
	var out []Availability
	for _, name := range Names() {
		id, _ := name.Identity()
		variant := variants[id.Version]
		out = append(out, Availability{
			Name:      name,
			Legacy:    variant.Legacy(),
			Supported: variant.Legacy() || featureOK,
		})
	}
	return out
}
