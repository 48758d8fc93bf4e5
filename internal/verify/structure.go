package verify

import (
	"fmt"

	"epicalib/domain/epidemic"
	"epicalib/domain/verdict"
	"epicalib/internal/oracle"
)

// StructureExpectations parameterise the transmission log sanity checks
type StructureExpectations struct {
	SeedInfections int
	InfectiousMean float64
	InfectiousSD   float64
}

// TransmissionStructure runs the sanity checks on the transmission log of a
// single run:
//   - the log has one row per infection in the time series
//   - every infector status transmits, and so does every network
//   - seeds are the only events with infector time 0 and nothing is earlier
//   - some transmissions come from people infected at time 1
//   - no infector time reaches mean + 7 sd of the infectious period
//   - hospitalised people only transmit on the random network
func TransmissionStructure(artifacts *epidemic.Artifacts, exp StructureExpectations) Result {
	var res Result
	fail := func(format string, args ...interface{}) {
		res.Violations = append(res.Violations, verdict.Violation{
			Reason: verdict.ReasonStructure,
			Group:  -1,
			Detail: fmt.Sprintf(format, args...),
		})
	}
	check := func(ok bool, format string, args ...interface{}) {
		res.Checked++
		if !ok {
			fail(format, args...)
		}
	}

	log := artifacts.Transmission
	maxInfected := artifacts.TimeSeries.Max()
	check(float64(len(log)) == maxInfected,
		"transmission log has %d rows but the time series peaks at %g infections", len(log), maxInfected)

	if len(log) == 0 {
		fail("transmission log is empty")
		return res
	}

	statuses := make(map[epidemic.InfectorStatus]int)
	networks := make(map[epidemic.Network]int)
	minTime, maxTime := log[0].InfectorInfectedTime, log[0].InfectorInfectedTime
	var atZero, atOne, hospitalisedClose int
	for _, e := range log {
		statuses[e.InfectorStatus]++
		networks[e.InfectorNetwork]++
		if e.InfectorInfectedTime < minTime {
			minTime = e.InfectorInfectedTime
		}
		if e.InfectorInfectedTime > maxTime {
			maxTime = e.InfectorInfectedTime
		}
		switch e.InfectorInfectedTime {
		case 0:
			atZero++
		case 1:
			atOne++
		}
		if e.InfectorStatus == epidemic.StatusHospitalised &&
			(e.InfectorNetwork == epidemic.NetworkHousehold || e.InfectorNetwork == epidemic.NetworkWork) {
			hospitalisedClose++
		}
	}

	for _, s := range epidemic.InfectorStatuses {
		check(statuses[s] > 0, "no transmission from %s people", s)
	}
	check(minTime == 0, "earliest infector time is %g, expected 0", minTime)
	check(atZero == exp.SeedInfections, "%d transmissions at infector time 0, expected %d seeds", atZero, exp.SeedInfections)
	check(atOne > 0, "no transmission from people infected at time 1")

	bound := oracle.InfectiousPeriodBound(exp.InfectiousMean, exp.InfectiousSD)
	check(maxTime < bound, "latest infector time %g is not below mean + 7 sd = %g", maxTime, bound)

	for _, n := range epidemic.Networks {
		check(networks[n] > 0, "no transmission on the %s network", n)
	}
	check(hospitalisedClose == 0, "%d hospitalised transmissions on household or work networks", hospitalisedClose)
	return res
}
