package system

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stage is one timed step of a run.
type Stage struct {
	Name     string
	Duration time.Duration
}

// Usage is a snapshot of process and host memory.
type Usage struct {
	RSS        uint64
	HostTotal  uint64
	HostUsed   uint64
	HostUsedPc float64
}

// Snapshot reads current memory figures. Fields that cannot be read stay zero.
func Snapshot() (Usage, error) {
	var u Usage

	vm, err := mem.VirtualMemory()
	if err != nil {
		return u, fmt.Errorf("host memory: %w", err)
	}
	u.HostTotal = vm.Total
	u.HostUsed = vm.Used
	u.HostUsedPc = vm.UsedPercent

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return u, fmt.Errorf("process handle: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return u, fmt.Errorf("process memory: %w", err)
	}
	u.RSS = info.RSS
	return u, nil
}

// Report formats the performance report printed with --stats.
func Report(build string, total time.Duration, stages []Stage, u Usage) string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Build: %s\n", build)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", total.Seconds())
	for _, s := range stages {
		fmt.Fprintf(&b, "%s: %.2fs\n", s.Name, s.Duration.Seconds())
	}
	fmt.Fprintf(&b, "RSS: %s\n", formatBytes(u.RSS))
	fmt.Fprintf(&b, "Host memory: %s / %s (%.1f%%)\n", formatBytes(u.HostUsed), formatBytes(u.HostTotal), u.HostUsedPc)
	b.WriteString("----------------------------\n")
	return b.String()
}

// LogLine is the single-line form appended to benchmark.log.
func LogLine(build, input string, total time.Duration, stages []Stage, u Usage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Build: %s | Input: %s | Total: %.2fs",
		time.Now().Format("2006-01-02 15:04:05"), build, input, total.Seconds())
	for _, s := range stages {
		fmt.Fprintf(&b, " | %s: %.2fs", s.Name, s.Duration.Seconds())
	}
	fmt.Fprintf(&b, " | RSS: %s\n", formatBytes(u.RSS))
	return b.String()
}

// AppendLog appends a line to path, creating the file if needed.
func AppendLog(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
