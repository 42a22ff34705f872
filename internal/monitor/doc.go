// Package monitor drives health probes and backup cycles on a wall-clock
// aligned schedule.
//
// One loop owns all work. Wakes are aligned to multiples of the probe
// interval since local midnight; a wake that is also aligned to the backup
// interval runs a full cycle (probe, then backup if the server is healthy),
// any other wake runs only the probe. Cycles never overlap, and a failing
// cycle is logged and the loop carries on.
package monitor
