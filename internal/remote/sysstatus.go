package remote

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// HostChecks names the hosts probed by the status job. Empty entries are
// skipped.
type HostChecks struct {
	EthHost  string
	InetHost string
	DNSHost  string
	VPNHost  string
}

// SystemStatusJob pings the configured hosts and reports uptime. The result
// becomes an unsolicited status frame.
type SystemStatusJob struct {
	Hosts HostChecks

	// Ping overrides the host probe in tests. nil means a real one-packet
	// ICMP ping via the system binary.
	Ping func(ctx context.Context, host string) bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (j *SystemStatusJob) Name() string { return "system-status" }

func (j *SystemStatusJob) Run(ctx context.Context) Result {
	checks := []struct {
		label string
		host  string
	}{
		{"Eth", j.Hosts.EthHost},
		{"Inet", j.Hosts.InetHost},
		{"DNS", j.Hosts.DNSHost},
		{"VPN", j.Hosts.VPNHost},
	}

	var net strings.Builder
	for _, c := range checks {
		if strings.TrimSpace(c.host) == "" {
			continue
		}
		state := "Err"
		if j.ping(ctx, c.host) {
			state = "Ok"
		}
		fmt.Fprintf(&net, " %s:%s", c.label, state)
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	status := fmt.Sprintf("At %s: Uptime %s",
		now().Format("2006-01-02 15:04:05 MST"),
		humanInterval(systemUptime()),
	)
	if net.Len() > 0 {
		status += "," + net.String()
	}
	return Result{Kind: ResultSystemStatus, Status: status}
}

func (j *SystemStatusJob) ping(ctx context.Context, host string) bool {
	if j.Ping != nil {
		return j.Ping(ctx, host)
	}
	return simplePing(ctx, host)
}

// simplePing sends a single ICMP echo through the system ping binary. Raw
// sockets would need elevated privileges, the binary already has them.
func simplePing(ctx context.Context, host string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-w", "5", host)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// systemUptime reads the host uptime. Returns 0 when unavailable (non-Linux
// or restricted environments).
func systemUptime() time.Duration {
	b, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// humanInterval renders a duration as "Nd NNh NNm".
func humanInterval(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dd %02dh %02dm", days, hours, mins)
}
