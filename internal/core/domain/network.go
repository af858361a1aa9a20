package domain

// InterfaceCounters is one raw sample from the interface poller.
type InterfaceCounters struct {
	Address string
	TxBytes uint64
}

// InterfaceStats is the published view of one interface.
type InterfaceStats struct {
	Address    string `json:"ip"`
	TxBytes    uint64 `json:"txb"`
	Throughput uint64 `json:"tp"`
}

// InterfaceMetrics maps interface name to its latest stats. A published
// map is never mutated.
type InterfaceMetrics map[string]InterfaceStats
