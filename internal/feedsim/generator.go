package feedsim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crowdwatch/internal/domain/classify"
	"github.com/okian/crowdwatch/internal/domain/model"
)

const (
	minCapacity   = 200
	capacityRange = 1800
	maxFood       = 50
	maxKits       = 20
	distressScale = 10
)

type simNode struct {
	id         string
	position   model.Position
	density    float64
	attributes model.Attributes
}

// Generator holds the simulated venue and advances its densities.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	nodes []simNode
}

// NewGenerator places cfg.Nodes hazard points around cfg.Center.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g := &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		nodes: make([]simNode, cfg.Nodes),
	}
	for i := range g.nodes {
		g.nodes[i] = simNode{
			id: uuid.NewString(),
			position: model.Position{
				Lat: cfg.Center.Lat + g.offset(),
				Lng: cfg.Center.Lng + g.offset(),
			},
			density: g.rng.Float64() * math.Min(1, cfg.MaxDensity),
			attributes: model.Attributes{
				Name:        "Zone " + strconv.Itoa(i+1),
				Capacity:    strconv.Itoa(minCapacity + g.rng.IntN(capacityRange)),
				Food:        float64(g.rng.IntN(maxFood)),
				MedicalKits: g.rng.IntN(maxKits),
			},
		}
	}
	return g, nil
}

func validate(cfg Config) error {
	switch {
	case cfg.Path == "":
		return fmt.Errorf("%w: path must not be empty", ErrInvalidConfig)
	case cfg.Nodes <= 0:
		return fmt.Errorf("%w: nodes must be positive", ErrInvalidConfig)
	case cfg.Spread < 0 || cfg.Step < 0:
		return fmt.Errorf("%w: spread and step must not be negative", ErrInvalidConfig)
	case cfg.MaxDensity <= 0:
		return fmt.Errorf("%w: max density must be positive", ErrInvalidConfig)
	case cfg.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func (g *Generator) offset() float64 {
	return (g.rng.Float64()*2 - 1) * g.cfg.Spread
}

// Step moves every density by at most cfg.Step, clamped to [0, MaxDensity].
func (g *Generator) Step() {
	for i := range g.nodes {
		d := g.nodes[i].density + (g.rng.Float64()*2-1)*g.cfg.Step
		g.nodes[i].density = math.Max(0, math.Min(g.cfg.MaxDensity, d))
	}
}

// Snapshot returns the venue in the feed's record format.
func (g *Generator) Snapshot() map[string]any {
	out := make(map[string]any, len(g.nodes))
	for _, n := range g.nodes {
		out[n.id] = map[string]any{
			"latitude":     n.position.Lat,
			"longitude":    n.position.Lng,
			"density":      n.density,
			"name":         n.attributes.Name,
			"capacity":     n.attributes.Capacity,
			"food":         n.attributes.Food,
			"medical kits": n.attributes.MedicalKits,
		}
	}
	return out
}

// Distress returns the simulated count of people in distress: the scaled
// density summed over points at Dangerous or above.
func (g *Generator) Distress() int {
	total := 0.0
	for _, n := range g.nodes {
		if tier, _ := classify.Classify(n.density); tier >= model.TierDangerous {
			total += n.density * distressScale
		}
	}
	return int(math.Round(total))
}

// Densities returns the current densities in node order.
func (g *Generator) Densities() []float64 {
	out := make([]float64, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.density
	}
	return out
}
