package procstats

import "errors"

var (
	// ErrNoCPU indicates that the aggregate CPU counters could not be read.
	ErrNoCPU = errors.New("procstats: no cpu counters")

	// ErrShortStat indicates that fewer CPU categories than expected were reported.
	ErrShortStat = errors.New("procstats: short cpu counters")

	// ErrNoMeminfo indicates that no memory fields could be read.
	ErrNoMeminfo = errors.New("procstats: no meminfo")

	// ErrBadPID is returned for non-positive pids.
	ErrBadPID = errors.New("procstats: invalid pid")
)
