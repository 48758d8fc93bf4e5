package epidemic

import "fmt"

// InfectorStatus is the clinical state of the infector at the time of transmission
type InfectorStatus int

const (
	StatusPresymptomatic InfectorStatus = 1
	StatusAsymptomatic   InfectorStatus = 2
	StatusSymptomatic    InfectorStatus = 3
	StatusHospitalised   InfectorStatus = 4
	StatusCritical       InfectorStatus = 5
)

// InfectorStatuses lists every status that is expected to transmit
var InfectorStatuses = []InfectorStatus{
	StatusPresymptomatic,
	StatusAsymptomatic,
	StatusSymptomatic,
	StatusHospitalised,
	StatusCritical,
}

func (s InfectorStatus) String() string {
	switch s {
	case StatusPresymptomatic:
		return "PRESYMPTOMATIC"
	case StatusAsymptomatic:
		return "ASYMPTOMATIC"
	case StatusSymptomatic:
		return "SYMPTOMATIC"
	case StatusHospitalised:
		return "HOSPITALISED"
	case StatusCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Network is the contact layer a transmission happened on
type Network int

const (
	NetworkHousehold Network = 0
	NetworkWork      Network = 1
	NetworkRandom    Network = 2
)

// Networks are the three layers counted by attribution ratios. Other codes
// may appear in a log but never enter a denominator.
var Networks = []Network{NetworkHousehold, NetworkWork, NetworkRandom}

func (n Network) String() string {
	switch n {
	case NetworkHousehold:
		return "household"
	case NetworkWork:
		return "work"
	case NetworkRandom:
		return "random"
	default:
		return fmt.Sprintf("network(%d)", int(n))
	}
}

// IsAttributed reports whether the network is one of the three counted layers
func (n Network) IsAttributed() bool {
	return n >= NetworkHousehold && n <= NetworkRandom
}

// RelativeTransmissionParam is the parameter that scales transmission on the network
func (n Network) RelativeTransmissionParam() string {
	switch n {
	case NetworkHousehold:
		return "relative_transmission_household"
	case NetworkWork:
		return "relative_transmission_workplace"
	case NetworkRandom:
		return "relative_transmission_random"
	default:
		return ""
	}
}

// ParseNetwork accepts either the numeric code or the lower-case name
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "household", "0":
		return NetworkHousehold, nil
	case "work", "workplace", "1":
		return NetworkWork, nil
	case "random", "2":
		return NetworkRandom, nil
	}
	return 0, fmt.Errorf("unknown network %q", s)
}

// AgeGroupCount is the number of ten-year age bands
const AgeGroupCount = 9

// AgeGroup indexes the bands 0_9, 10_19, ... 70_79, 80
type AgeGroup int

var ageGroupLabels = [AgeGroupCount]string{
	"0_9", "10_19", "20_29", "30_39", "40_49", "50_59", "60_69", "70_79", "80",
}

func (a AgeGroup) String() string {
	if a < 0 || int(a) >= AgeGroupCount {
		return fmt.Sprintf("age_group(%d)", int(a))
	}
	return ageGroupLabels[a]
}

// Valid reports whether the band index is in range
func (a AgeGroup) Valid() bool {
	return a >= 0 && int(a) < AgeGroupCount
}

// AgeGroupLabels returns the band suffixes used by per-group parameter names
func AgeGroupLabels() []string {
	out := make([]string, AgeGroupCount)
	copy(out, ageGroupLabels[:])
	return out
}

// TimePoint is one row of the cumulative infection time series
type TimePoint struct {
	Time          float64 `json:"time"`
	TotalInfected float64 `json:"total_infected"`
}

// TimeSeries is ordered by Time
type TimeSeries []TimePoint

// Final returns the last row's cumulative count, or zero for an empty series
func (ts TimeSeries) Final() float64 {
	if len(ts) == 0 {
		return 0
	}
	return ts[len(ts)-1].TotalInfected
}

// Max returns the largest cumulative count in the series
func (ts TimeSeries) Max() float64 {
	var m float64
	for _, p := range ts {
		if p.TotalInfected > m {
			m = p.TotalInfected
		}
	}
	return m
}

// TransmissionEvent records one infection
type TransmissionEvent struct {
	VictimID             int64          `json:"victim_id"`
	VictimAgeGroup       AgeGroup       `json:"victim_age_group"`
	InfectorStatus       InfectorStatus `json:"infector_status"`
	InfectorNetwork      Network        `json:"infector_network"`
	InfectorInfectedTime float64        `json:"infector_infected_time"`
}

// TransmissionLog holds one row per infection of a run
type TransmissionLog []TransmissionEvent

// Artifacts are the parsed outputs of one simulator run
type Artifacts struct {
	TimeSeries   TimeSeries
	Transmission TransmissionLog
}
