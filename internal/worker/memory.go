package worker

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// rssReader reports the current process's resident set size in megabytes.
type rssReader struct {
	proc *process.Process
}

func newRSSReader() (*rssReader, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &rssReader{proc: proc}, nil
}

// rssMB returns current RSS in megabytes, or 0 if unavailable.
func (r *rssReader) rssMB() int {
	info, err := r.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return int(info.RSS / (1024 * 1024))
}

// AvailableMemoryMB returns system-wide available memory in megabytes, used
// by the OCR memory gate. Falls back to a permissive value if
// the read fails, since gating on a misread would wrongly block valid OCR.
func AvailableMemoryMB() int {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 1 << 20
	}
	return int(v.Available / (1024 * 1024))
}

// coolDown performs the warn-threshold cool-down: a forced GC pass and a
// short sleep, attempted once before the hard pause threshold is reached.
func coolDown() {
	debug.FreeOSMemory()
	runtime.GC()
	time.Sleep(2 * time.Second)
}
