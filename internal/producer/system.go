package producer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ncruces/go-strftime"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	defaultTimeLayout = "%Y-%m-%d %H:%M:%S"
	defaultDiskPath   = "/"
)

var batteryIcons = map[string]string{
	"Charging":     "⚡",
	"Discharging":  "🔋",
	"Full":         "🔌",
	"Not charging": "🔌",
}

// System provides the built-in producers. The zero value is not usable;
// start from [DefaultSystem].
type System struct {
	// SysfsRoot is where power_supply and thermal entries are read from.
	SysfsRoot string

	// Now returns the current time for the time producer.
	Now func() time.Time

	// Logger receives diagnostics for recoverable parameter problems.
	Logger *slog.Logger

	// HTTP serves the http producer.
	HTTP *HTTPClient
}

// DefaultSystem returns a System reading the live /sys tree and clock.
func DefaultSystem() System {
	return System{
		SysfsRoot: "/sys",
		Now:       time.Now,
		Logger:    slog.Default(),
		HTTP:      NewHTTPClient(),
	}
}

// Install registers every built-in producer into r, replacing existing
// entries with the same kind.
func (s System) Install(r *Registry) {
	r.Set("battery", s.Battery)
	r.Set("exec", s.Exec)
	r.Set("memory", s.Memory)
	r.Set("time", s.Time)
	r.Set("temp", s.Temp)
	r.Set("cpu", s.CPU)
	r.Set("load", s.Load)
	r.Set("uptime", s.Uptime)
	r.Set("disk", s.Disk)
	r.Set("file", s.File)
	if s.HTTP != nil {
		r.Set("http", s.HTTP.Produce)
	}
}

// indexParam parses params[0] as a non-negative index, defaulting to 0.
func (s System) indexParam(kind string, params []string) int {
	if len(params) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(params[0]))
	if err != nil || n < 0 {
		if s.Logger != nil {
			s.Logger.Debug("invalid index parameter, using 0", "kind", kind, "param", params[0])
		}
		return 0
	}
	return n
}

// Battery reports the charge of BAT<n> as "<icon> <capacity>%".
func (s System) Battery(ctx context.Context, params []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.SysfsRoot, "class", "power_supply", fmt.Sprintf("BAT%d", s.indexParam("battery", params)))

	capacity, err := readInt(filepath.Join(dir, "capacity"))
	if err != nil {
		return "", fmt.Errorf("battery capacity: %w", err)
	}

	status, err := os.ReadFile(filepath.Join(dir, "status"))
	if err != nil {
		return "", fmt.Errorf("battery status: %w", err)
	}

	icon, ok := batteryIcons[strings.TrimSpace(string(status))]
	if !ok {
		icon = "?"
	}
	return fmt.Sprintf("%s %d%%", icon, capacity), nil
}

// Exec runs params[0] with the remaining params as arguments and returns
// its trimmed standard output.
func (s System) Exec(ctx context.Context, params []string) (string, error) {
	if len(params) == 0 || params[0] == "" {
		return "", fmt.Errorf("exec: no command: %w", ErrNoValue)
	}

	out, err := exec.CommandContext(ctx, params[0], params[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("exec %s: %w", params[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Memory reports physical memory. params[0] selects the format:
//
//   - used (default): used memory in GiB, "3.2 Gi"
//   - available: available memory in GiB
//   - percent: used share of total, "41%"
//   - human: used memory with a binary unit, "3.2 GiB"
//
// An unknown format falls back to used with a diagnostic.
func (s System) Memory(ctx context.Context, params []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: %w", err)
	}

	format := memoryUsed
	if len(params) > 0 && params[0] != "" {
		format = params[0]
	}
	text, ok := formatMemory(format, vm)
	if !ok {
		if s.Logger != nil {
			s.Logger.Debug("unknown memory format, using used", "format", format)
		}
		text, _ = formatMemory(memoryUsed, vm)
	}
	return text, nil
}

const (
	memoryUsed      = "used"
	memoryAvailable = "available"
	memoryPercent   = "percent"
	memoryHuman     = "human"
)

func formatMemory(format string, vm *mem.VirtualMemoryStat) (string, bool) {
	switch format {
	case memoryUsed:
		return fmt.Sprintf("%.1f Gi", float64(vm.Used)/(1<<30)), true
	case memoryAvailable:
		return fmt.Sprintf("%.1f Gi", float64(vm.Available)/(1<<30)), true
	case memoryPercent:
		return fmt.Sprintf("%.0f%%", vm.UsedPercent), true
	case memoryHuman:
		return humanize.IBytes(vm.Used), true
	default:
		return "", false
	}
}

// Time formats the current local time with a strftime layout.
func (s System) Time(_ context.Context, params []string) (string, error) {
	layout := defaultTimeLayout
	if len(params) > 0 && params[0] != "" {
		layout = params[0]
	}
	return strftime.Format(layout, s.Now()), nil
}

// Temp reports thermal_zone<n> in whole degrees Celsius.
func (s System) Temp(ctx context.Context, params []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.SysfsRoot, "class", "thermal", fmt.Sprintf("thermal_zone%d", s.indexParam("temp", params)), "temp")
	milli, err := readInt(path)
	if err != nil {
		return "", fmt.Errorf("temp: %w", err)
	}
	return fmt.Sprintf("%d°C", milli/1000), nil
}

// CPU reports total CPU utilisation since the previous call.
func (s System) CPU(ctx context.Context, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return "", fmt.Errorf("cpu: %w", err)
	}
	if len(pcts) == 0 {
		return "", fmt.Errorf("cpu: %w", ErrNoValue)
	}
	return fmt.Sprintf("%.0f%%", pcts[0]), nil
}

// Load reports the 1, 5 and 15 minute load averages.
func (s System) Load(ctx context.Context, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("load: %w", err)
	}
	return fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15), nil
}

// Uptime reports host uptime as "1d 2h 3m".
func (s System) Uptime(ctx context.Context, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("uptime: %w", err)
	}
	return formatUptime(time.Duration(secs) * time.Second), nil
}

// Disk reports free space on the filesystem holding params[0] (default /).
func (s System) Disk(ctx context.Context, params []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := defaultDiskPath
	if len(params) > 0 && params[0] != "" {
		path = params[0]
	}

	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("disk %s: %w", path, err)
	}
	return humanize.IBytes(usage.Free), nil
}

// File returns the first line of the file at params[0].
func (s System) File(ctx context.Context, params []string) (string, error) {
	if len(params) == 0 || params[0] == "" {
		return "", fmt.Errorf("file: no path: %w", ErrNoValue)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(params[0])
	if err != nil {
		return "", fmt.Errorf("file: %w", err)
	}
	defer func() { _ = f.Close() }()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("file %s: %w", params[0], err)
	}
	return strings.TrimSpace(line), nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return n, nil
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
