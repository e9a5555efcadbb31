package optimizer

import (
	"log"
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/plan"
)

// ErrNoFeasiblePlan is returned when every plan the search visited is
// infeasible under the buffer budget.
var ErrNoFeasiblePlan = errors.New("no feasible plan")

// Options tunes the search.
type Options struct {
	Seed uint64
	// InitialTemperatureFactor scales the starting plan's cost into the
	// annealing start temperature.
	InitialTemperatureFactor float64
	CoolingFactor            float64
	MinTemperature           float64
}

// DefaultOptions returns the standard annealing schedule.
func DefaultOptions() Options {
	return Options{
		Seed:                     1,
		InitialTemperatureFactor: 0.1,
		CoolingFactor:            0.9,
		MinTemperature:           1,
	}
}

// Coster scores plans.
type Coster interface {
	Cost(root *plan.Node) (plan.Estimate, error)
}

// Optimizer searches the space of join orders and join methods of a plan by
// iterative improvement followed by simulated annealing.
type Optimizer struct {
	coster Coster
	opts   Options
	rng    *rand.Rand
}

func New(coster Coster, opts Options) (*Optimizer, error) {
	if opts.CoolingFactor <= 0 || opts.CoolingFactor >= 1 {
		return nil, errors.Newf("cooling factor %v outside (0, 1)", opts.CoolingFactor)
	}
	if opts.MinTemperature <= 0 {
		return nil, errors.Newf("minimum temperature %v must be positive", opts.MinTemperature)
	}
	if opts.InitialTemperatureFactor < 0 {
		return nil, errors.Newf("negative initial temperature factor %v", opts.InitialTemperatureFactor)
	}
	return &Optimizer{
		coster: coster,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// state is a plan with its cached cost.
type state struct {
	root *plan.Node
	cost int64
}

// Optimize returns the cheapest plan found starting from initial. A plan with
// no joins is returned unchanged.
func (o *Optimizer) Optimize(initial *plan.Node) (*plan.Node, plan.Estimate, error) {
	est, err := o.coster.Cost(initial)
	if err != nil {
		return nil, plan.Estimate{}, err
	}
	numJoins := plan.NumJoins(initial)
	log.Printf("[OPT] Initial plan cost %d with %d joins", est.Cost, numJoins)
	if numJoins == 0 {
		if !est.Feasible {
			return nil, est, ErrNoFeasiblePlan
		}
		return initial, est, nil
	}

	start := state{root: initial, cost: est.Cost}
	best, err := o.iterativeImprovement(start, numJoins)
	if err != nil {
		return nil, plan.Estimate{}, err
	}
	log.Printf("[OPT] Iterative improvement cost %d", best.cost)
	if best.cost == plan.Infeasible {
		return nil, plan.Estimate{}, ErrNoFeasiblePlan
	}
	if best, err = o.simulatedAnnealing(best, numJoins); err != nil {
		return nil, plan.Estimate{}, err
	}
	log.Printf("[OPT] Simulated annealing cost %d", best.cost)

	final, err := o.coster.Cost(best.root)
	if err != nil {
		return nil, plan.Estimate{}, err
	}
	return best.root, final, nil
}

// iterativeImprovement runs 2n restarts from the initial plan. Each restart
// takes 3n random moves and then 8n hill-climbing trials that accept only
// strictly cheaper neighbors.
func (o *Optimizer) iterativeImprovement(initial state, numJoins int) (state, error) {
	global := initial
	for range 2 * numJoins {
		local := initial
		for range 3 * numJoins {
			next, err := o.neighbor(local.root, numJoins)
			if err != nil {
				return state{}, err
			}
			local.root = next
		}
		var err error
		if local, err = o.evaluate(local.root); err != nil {
			return state{}, err
		}
		for range 8 * numJoins {
			candidate, err := o.randomNeighbor(local.root, numJoins)
			if err != nil {
				return state{}, err
			}
			if candidate.cost < local.cost {
				local = candidate
			}
		}
		if local.cost < global.cost {
			global = local
		}
	}
	return global, nil
}

// simulatedAnnealing starts at T = factor * cost and runs 16n trials per
// temperature, cooling geometrically until T drops below the floor.
func (o *Optimizer) simulatedAnnealing(start state, numJoins int) (state, error) {
	best, current := start, start
	temperature := o.opts.InitialTemperatureFactor * float64(start.cost)
	for temperature >= o.opts.MinTemperature {
		for range 16 * numJoins {
			candidate, err := o.randomNeighbor(current.root, numJoins)
			if err != nil {
				return state{}, err
			}
			if accept(o.rng, current.cost, candidate.cost, temperature) {
				current = candidate
			}
			if current.cost < best.cost {
				best = current
			}
		}
		temperature *= o.opts.CoolingFactor
	}
	return best, nil
}

// accept takes a neighbor that is no worse, or a worse one with probability
// exp(-delta/T).
func accept(rng *rand.Rand, current, candidate int64, temperature float64) bool {
	if candidate <= current {
		return true
	}
	if candidate == plan.Infeasible {
		return false
	}
	delta := float64(candidate - current)
	return rng.Float64() <= math.Exp(-delta/temperature)
}

func (o *Optimizer) randomNeighbor(root *plan.Node, numJoins int) (state, error) {
	next, err := o.neighbor(root, numJoins)
	if err != nil {
		return state{}, err
	}
	return o.evaluate(next)
}

// neighbor applies a uniformly chosen move to a uniformly chosen join.
func (o *Optimizer) neighbor(root *plan.Node, numJoins int) (*plan.Node, error) {
	id := o.rng.IntN(numJoins)
	m := Move(o.rng.IntN(numMoves))
	return Apply(o.rng, root, id, m)
}

func (o *Optimizer) evaluate(root *plan.Node) (state, error) {
	est, err := o.coster.Cost(root)
	if err != nil {
		return state{}, err
	}
	return state{root: root, cost: est.Cost}, nil
}
