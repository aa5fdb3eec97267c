package models

import "time"

// Heartbeat is the periodic status message published by the agent.
type Heartbeat struct {
	DeviceID      string       `json:"device_id"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        string       `json:"status"`
	Engine        EngineStatus `json:"engine"`
	CPUPercent    float64      `json:"cpu_percent"`
	MemoryPercent float64      `json:"memory_percent"`
}
