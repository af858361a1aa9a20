package netif

import (
	"context"
	"fmt"
	"net"

	"streamctl/internal/core/domain"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// uplink is an interface with the IPv4 address the transport can bind.
type uplink struct {
	Name string
	Addr string
}

// Poller reads the transmit counters in <proc>/net/dev of every interface
// that has a global IPv4 address. Loopback and link-local addresses are
// skipped.
type Poller struct {
	procRoot string
	uplinks  func() ([]uplink, error)
	logger   *zap.SugaredLogger
}

func NewPoller(procRoot string, logger *zap.SugaredLogger) *Poller {
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	return &Poller{procRoot: procRoot, uplinks: listUplinks, logger: logger}
}

func (p *Poller) Poll(ctx context.Context) (map[string]domain.InterfaceCounters, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	links, err := p.uplinks()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	fs, err := procfs.NewFS(p.procRoot)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.procRoot, err)
	}
	dev, err := fs.NetDev()
	if err != nil {
		return nil, fmt.Errorf("read interface counters: %w", err)
	}

	out := make(map[string]domain.InterfaceCounters, len(links))
	for _, l := range links {
		line, ok := dev[l.Name]
		if !ok {
			// The interface went away between listing and reading.
			p.logger.Debugw("no tx counter for interface", "interface", l.Name)
			continue
		}
		out[l.Name] = domain.InterfaceCounters{Address: l.Addr, TxBytes: line.TxBytes}
	}
	return out, nil
}

func listUplinks() ([]uplink, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []uplink
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		if addr := firstGlobalIPv4(addrs); addr != "" {
			out = append(out, uplink{Name: ifc.Name, Addr: addr})
		}
	}
	return out, nil
}

func firstGlobalIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		v4 := ip.To4()
		if v4 == nil || v4.IsLoopback() || v4.IsLinkLocalUnicast() {
			continue
		}
		return v4.String()
	}
	return ""
}
