package fdevents

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

type diagnosticID struct {
	DiagnosticID string `json:"diagnosticId"`
	SDKKeySuffix string `json:"sdkKeySuffix,omitempty"`
}

func newDiagnosticID(sdkKey string) diagnosticID {
	id, _ := uuid.NewRandom()
	suffix := sdkKey
	if len(sdkKey) > 6 {
		suffix = sdkKey[len(sdkKey)-6:]
	}
	return diagnosticID{DiagnosticID: id.String(), SDKKeySuffix: suffix}
}

type diagnosticPlatformData struct {
	Name      string `json:"name"`
	GoVersion string `json:"goVersion"`
	OSArch    string `json:"osArch"`
	OSName    string `json:"osName"`
}

type streamInitInfo struct {
	Timestamp      int64 `json:"timestamp"`
	Failed         bool  `json:"failed"`
	DurationMillis int64 `json:"durationMillis"`
}

// DiagnosticsManager computes and formats the diagnostic side channel's init and periodic
// payloads, per spec §4.4's "diagnostic side channel" (SDK version, platform, config digest,
// stream/reconnect counts, dropped-event counts).
type DiagnosticsManager struct {
	mu            sync.Mutex
	id            diagnosticID
	sdkData       map[string]any
	configData    map[string]any
	startTime     int64
	dataSinceTime int64
	streamInits   []streamInitInfo
}

// NewDiagnosticsManager creates a manager tagged with a fresh random diagnostic ID.
func NewDiagnosticsManager(sdkKey string, sdkData, configData map[string]any, startTime int64) *DiagnosticsManager {
	return &DiagnosticsManager{
		id:            newDiagnosticID(sdkKey),
		sdkData:       sdkData,
		configData:    configData,
		startTime:     startTime,
		dataSinceTime: startTime,
	}
}

// RecordStreamInit records one streaming connection attempt's outcome, included in the next
// periodic diagnostic event.
func (m *DiagnosticsManager) RecordStreamInit(timestamp int64, failed bool, durationMillis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamInits = append(m.streamInits, streamInitInfo{Timestamp: timestamp, Failed: failed, DurationMillis: durationMillis})
}

// CreateInitEvent builds the one-time startup diagnostic payload.
func (m *DiagnosticsManager) CreateInitEvent() map[string]any {
	return map[string]any{
		"kind":         "diagnostic-init",
		"id":           m.id,
		"creationDate": m.startTime,
		"sdk":          m.sdkData,
		"configuration": m.configData,
		"platform": diagnosticPlatformData{
			Name:      "Go",
			GoVersion: runtime.Version(),
			OSName:    normalizeOSName(runtime.GOOS),
			OSArch:    runtime.GOARCH,
		},
	}
}

// CreateStatsEventAndReset builds the periodic diagnostic payload and resets the counters that
// are tracked cumulatively between periods.
func (m *DiagnosticsManager) CreateStatsEventAndReset(droppedEvents, deduplicatedContexts, eventsInLastBatch int, now int64) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	event := map[string]any{
		"kind":                  "diagnostic",
		"id":                    m.id,
		"creationDate":          now,
		"dataSinceDate":         m.dataSinceTime,
		"droppedEvents":         droppedEvents,
		"deduplicatedContexts":  deduplicatedContexts,
		"eventsInLastBatch":     eventsInLastBatch,
		"streamInits":           m.streamInits,
	}
	m.streamInits = nil
	m.dataSinceTime = now
	return event
}

func normalizeOSName(osName string) string {
	switch osName {
	case "darwin":
		return "MacOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	}
	return osName
}
