// Command fakesim is a synthetic stand-in for the epidemic simulator. It
// honours the same invocation contract:
//
//	fakesim <parameter_file> <line_number> <output_dir> <household_file>
//
// The time series is written to standard output and the transmission log to
// <output_dir>/transmission_Run1.csv.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"epicalib/adapters/params"
	"epicalib/adapters/simulator"
	"epicalib/internal/testkit"
)

func main() {
	transmissionFile := flag.String("transmission-file", simulator.DefaultTransmissionFile, "transmission log name inside the output directory")
	flag.Parse()

	args := flag.Args()
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: fakesim <parameter_file> <line_number> <output_dir> [household_file]")
		os.Exit(2)
	}

	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		fmt.Fprintln(os.Stderr, "invalid line number:", args[1])
		os.Exit(2)
	}

	if err := run(args[0], line, args[2], *transmissionFile); err != nil {
		fmt.Fprintln(os.Stderr, "fakesim:", err)
		os.Exit(1)
	}
}

func run(paramFile string, line int, outputDir, transmissionFile string) error {
	p, err := params.Load(paramFile, line)
	if err != nil {
		return err
	}
	cfg, err := testkit.ConfigFromParams(p)
	if err != nil {
		return err
	}
	artifacts, err := testkit.NewEpidemicGenerator(cfg).Generate()
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(outputDir, transmissionFile))
	if err != nil {
		return fmt.Errorf("failed to create transmission log: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := simulator.WriteTransmissionLog(w, artifacts.Transmission); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	if err := simulator.WriteTimeSeries(out, artifacts.TimeSeries); err != nil {
		return err
	}
	return out.Flush()
}
