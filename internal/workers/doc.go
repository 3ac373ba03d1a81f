/*
Package workers sizes concurrency from the CPUs a container may actually use.

runtime.NumCPU reports the host's CPUs. GOMAXPROCS follows the cgroup quota
(Go 1.25 updates it when the quota changes), so a pod limited to 2 cores on a
64-core node gets 2:

	workers.ForCPU(8) // 2

MAX_CONCURRENT_JOBS is parsed with ParseLimit:

	MAX_CONCURRENT_JOBS=      unlimited
	MAX_CONCURRENT_JOBS=0     unlimited
	MAX_CONCURRENT_JOBS=auto  one ffmpeg per CPU
	MAX_CONCURRENT_JOBS=3     three

All functions are safe for concurrent use.
*/
package workers
