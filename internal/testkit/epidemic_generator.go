package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"epicalib/domain/epidemic"
	"epicalib/internal/oracle"
	"epicalib/ports"
)

// Age structure of the synthetic population, one share per band
var populationShares = []float64{0.12, 0.11, 0.13, 0.13, 0.13, 0.13, 0.11, 0.08, 0.06}

// Share of transmissions each network carries when all relative transmissions are 1
var networkShares = []float64{0.3, 0.25, 0.45}

// seedNetwork marks seed infections, which belong to no contact network
const seedNetwork = epidemic.Network(-1)

// GeneratorConfig holds the parameters the synthetic epidemic responds to
type GeneratorConfig struct {
	PopulationSize         int
	SeedInfections         int
	EndTime                int
	InfectiousRate         float64
	InfectiousMean         float64
	InfectiousSD           float64
	Seed                   uint64
	RelativeTransmission   [3]float64
	FractionAsymptomatic   []float64
	AsymptomaticInfective  float64
	RelativeSusceptibility []float64
}

// ConfigFromParams reads the generator configuration from a parameter set
func ConfigFromParams(params ports.ParameterSet) (GeneratorConfig, error) {
	var cfg GeneratorConfig
	var err error
	get := func(name string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = params.GetFloat(name)
		return v
	}

	cfg.PopulationSize = int(get("n_total"))
	cfg.SeedInfections = int(get("n_seed_infection"))
	cfg.EndTime = int(get("end_time"))
	cfg.InfectiousRate = get("infectious_rate")
	cfg.InfectiousMean = get("mean_infectious_period")
	cfg.InfectiousSD = get("sd_infectious_period")
	cfg.Seed = uint64(get("rng_seed"))
	for _, n := range epidemic.Networks {
		cfg.RelativeTransmission[n] = get(n.RelativeTransmissionParam())
	}
	cfg.AsymptomaticInfective = get("asymptomatic_infectious_factor")
	for _, band := range epidemic.AgeGroupLabels() {
		cfg.FractionAsymptomatic = append(cfg.FractionAsymptomatic, get("fraction_asymptomatic_"+band))
		cfg.RelativeSusceptibility = append(cfg.RelativeSusceptibility, get("relative_susceptibility_"+band))
	}
	if err != nil {
		return GeneratorConfig{}, err
	}
	return cfg, nil
}

// EpidemicGenerator produces simulator-shaped artifacts from a closed-form
// epidemic: cumulative infections grow at the analytical rate until they
// reach a final size set by the effective reproduction number and each age
// group's susceptibility. Transmissions are split across networks in
// proportion to their relative transmission, so the outputs obey the
// invariants the calibration suite checks.
type EpidemicGenerator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewEpidemicGenerator creates a generator seeded from cfg.Seed
func NewEpidemicGenerator(cfg GeneratorConfig) *EpidemicGenerator {
	return &EpidemicGenerator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// EffectiveReproduction discounts the infectious rate by the asymptomatic share
func (g *EpidemicGenerator) EffectiveReproduction() float64 {
	var mean float64
	for _, f := range g.cfg.FractionAsymptomatic {
		mean += f
	}
	if n := len(g.cfg.FractionAsymptomatic); n > 0 {
		mean /= float64(n)
	}
	return g.cfg.InfectiousRate * (1 - mean*(1-g.cfg.AsymptomaticInfective))
}

// GroupInfections is the number of non-seed infections per age group once
// the epidemic has run its course. Each group depends only on its own
// susceptibility.
func (g *EpidemicGenerator) GroupInfections() []int {
	susceptible := float64(g.cfg.PopulationSize - g.cfg.SeedInfections)
	reff := g.EffectiveReproduction()
	counts := make([]int, epidemic.AgeGroupCount)
	if susceptible <= 0 || g.attributedWeight() == 0 {
		return counts
	}
	for band := range counts {
		s := 0.0
		if band < len(g.cfg.RelativeSusceptibility) {
			s = g.cfg.RelativeSusceptibility[band]
		}
		attack := 1 - math.Exp(-reff*s)
		counts[band] = int(math.Round(susceptible * populationShares[band] * attack))
	}
	return counts
}

func (g *EpidemicGenerator) attributedWeight() float64 {
	var w float64
	for n, share := range networkShares {
		w += share * g.cfg.RelativeTransmission[n]
	}
	return w
}

// TimeSeries is the cumulative infected count on every day up to the end time
func (g *EpidemicGenerator) TimeSeries() epidemic.TimeSeries {
	seed := float64(g.cfg.SeedInfections)
	final := seed
	for _, c := range g.GroupInfections() {
		final += float64(c)
	}

	rate, err := g.growthRate()
	if err != nil || rate < 0 {
		rate = 0
	}

	series := make(epidemic.TimeSeries, 0, g.cfg.EndTime+1)
	for t := 0; t <= g.cfg.EndTime; t++ {
		count := math.Min(final, math.Round(seed*math.Exp(rate*float64(t))))
		series = append(series, epidemic.TimePoint{Time: float64(t), TotalInfected: count})
	}
	return series
}

func (g *EpidemicGenerator) growthRate() (float64, error) {
	return oracle.AnalyticGrowthRate(g.cfg.InfectiousRate, g.cfg.InfectiousMean, g.cfg.InfectiousSD)
}

// Generate builds both artifacts of one run
func (g *EpidemicGenerator) Generate() (*epidemic.Artifacts, error) {
	if g.cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be positive, got %d", g.cfg.PopulationSize)
	}
	if g.cfg.SeedInfections < 0 || g.cfg.SeedInfections > g.cfg.PopulationSize {
		return nil, fmt.Errorf("seed infections %d out of range", g.cfg.SeedInfections)
	}
	if g.cfg.EndTime < 0 {
		return nil, fmt.Errorf("end time must be non-negative, got %d", g.cfg.EndTime)
	}

	series := g.TimeSeries()
	total := int(series.Final())
	infections := total - g.cfg.SeedInfections

	groupCounts := g.GroupInfections()
	ages := expand(apportion(infections, toFloats(groupCounts)))
	networks := expand(apportion(infections, g.networkWeights()))
	g.rng.Shuffle(len(ages), func(i, j int) { ages[i], ages[j] = ages[j], ages[i] })

	period := oracle.InfectiousPeriod(g.cfg.InfectiousMean, g.cfg.InfectiousSD, g.rng)
	bound := oracle.InfectiousPeriodBound(g.cfg.InfectiousMean, g.cfg.InfectiousSD)
	latest := math.Ceil(bound) - 1

	log := make(epidemic.TransmissionLog, 0, total)
	for i := 0; i < g.cfg.SeedInfections; i++ {
		log = append(log, epidemic.TransmissionEvent{
			VictimAgeGroup:  epidemic.AgeGroup(i % epidemic.AgeGroupCount),
			InfectorStatus:  epidemic.StatusPresymptomatic,
			InfectorNetwork: seedNetwork,
		})
	}
	for i := 0; i < infections; i++ {
		network := epidemic.Network(networks[i])
		status := epidemic.InfectorStatuses[i%len(epidemic.InfectorStatuses)]
		if status == epidemic.StatusHospitalised && network != epidemic.NetworkRandom {
			status = epidemic.StatusSymptomatic
		}
		infected := 1.0
		if i > 0 {
			infected = math.Min(math.Max(1, math.Ceil(period.Rand())), latest)
		}
		log = append(log, epidemic.TransmissionEvent{
			VictimAgeGroup:       epidemic.AgeGroup(ages[i]),
			InfectorStatus:       status,
			InfectorNetwork:      network,
			InfectorInfectedTime: infected,
		})
	}

	if len(log) > g.cfg.PopulationSize {
		return nil, fmt.Errorf("generated %d infections for a population of %d", len(log), g.cfg.PopulationSize)
	}
	g.rng.Shuffle(len(log), func(i, j int) { log[i], log[j] = log[j], log[i] })
	ids := g.rng.Perm(g.cfg.PopulationSize)
	for i := range log {
		log[i].VictimID = int64(ids[i])
	}

	return &epidemic.Artifacts{TimeSeries: series, Transmission: log}, nil
}

func (g *EpidemicGenerator) networkWeights() []float64 {
	weights := make([]float64, len(networkShares))
	for n, share := range networkShares {
		weights[n] = share * g.cfg.RelativeTransmission[n]
	}
	return weights
}

// apportion splits total into integer parts proportional to weights using
// the largest remainder method
func apportion(total int, weights []float64) []int {
	parts := make([]int, len(weights))
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if total <= 0 || sum <= 0 {
		return parts
	}

	type remainder struct {
		index int
		frac  float64
	}
	remainders := make([]remainder, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := float64(total) * w / sum
		parts[i] = int(math.Floor(exact))
		assigned += parts[i]
		remainders[i] = remainder{i, exact - float64(parts[i])}
	}
	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac > remainders[b].frac
	})
	for k := 0; assigned < total; k++ {
		parts[remainders[k%len(remainders)].index]++
		assigned++
	}
	return parts
}

// expand turns per-category counts into a list of category indices
func expand(counts []int) []int {
	var n int
	for _, c := range counts {
		n += c
	}
	out := make([]int, 0, n)
	for category, c := range counts {
		for j := 0; j < c; j++ {
			out = append(out, category)
		}
	}
	return out
}

func toFloats(in []int) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
