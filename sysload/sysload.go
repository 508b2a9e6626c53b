// Package sysload samples host CPU and memory utilization for the
// SessionManager's admission control, reading /proc directly in the style
// of the teacher's sys package (which reads container cgroup files the
// same way rather than pulling in a system-stats library).
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package sysload

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/RibbonsAlmark/Relay/relog"
)

// Sampler reports current load as percentages in [0, 100]. The production
// implementation reads /proc; tests substitute a fake.
type Sampler interface {
	CPUPercent() float64
	MemPercent() float64
}

// NumCPU returns the number of CPUs usable by this process.
func NumCPU() int { return runtime.NumCPU() }

type procSampler struct {
	prevIdle, prevTotal uint64
}

// NewProcSampler returns a Sampler backed by /proc/stat and /proc/meminfo.
// On non-Linux platforms (or if /proc is unreadable) it degrades to 0,
// which an operator would see as "never admission-refused" — acceptable
// for local development, logged as a warning on every failed read.
func NewProcSampler() Sampler { return &procSampler{} }

func (p *procSampler) CPUPercent() float64 {
	idle, total, err := readCPUTicks()
	if err != nil {
		relog.Warningf("sysload: cpu read failed: %v", err)
		return 0
	}
	defer func() { p.prevIdle, p.prevTotal = idle, total }()
	if p.prevTotal == 0 || total <= p.prevTotal {
		return 0
	}
	dIdle := float64(idle - p.prevIdle)
	dTotal := float64(total - p.prevTotal)
	if dTotal <= 0 {
		return 0
	}
	used := (dTotal - dIdle) / dTotal * 100
	return clamp(used)
}

func (p *procSampler) MemPercent() float64 {
	total, available, err := readMemInfo()
	if err != nil {
		relog.Warningf("sysload: mem read failed: %v", err)
		return 0
	}
	if total == 0 {
		return 0
	}
	used := float64(total-available) / float64(total) * 100
	return clamp(used)
}

func clamp(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// readCPUTicks parses the aggregate "cpu" line of /proc/stat into
// (idle ticks, total ticks).
func readCPUTicks() (idle, total uint64, err error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		for i, fs := range fields {
			v, cerr := strconv.ParseUint(fs, 10, 64)
			if cerr != nil {
				continue
			}
			total += v
			if i == 3 { // idle is the 4th field (0-indexed: user,nice,system,idle,...)
				idle = v
			}
		}
		return idle, total, nil
	}
	return 0, 0, sc.Err()
}

// readMemInfo parses MemTotal/MemAvailable (kB) out of /proc/meminfo.
func readMemInfo() (totalKB, availKB uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = parseKB(line)
		}
	}
	return totalKB, availKB, sc.Err()
}

func parseKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[1], 10, 64)
	return v
}
