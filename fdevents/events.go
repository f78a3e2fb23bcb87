// Package fdevents implements the analytics event pipeline (spec §4.4): a non-blocking inbound
// queue, a summarizing/deduplicating processor, context redaction, and delivery to the events
// service with retry and permanent-failure handling.
package fdevents

import (
	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/evalcontext"
)

// BaseEvent holds the fields common to every event kind.
type BaseEvent struct {
	CreationDate int64
	Context      evalcontext.Context
}

// Event is the common interface implemented by every inbound event kind.
type Event interface {
	GetBase() BaseEvent
}

// EvaluationEvent records one flag evaluation, corresponding to the wire "feature" event.
type EvaluationEvent struct {
	BaseEvent
	FlagKey              string
	FlagVersion          int
	HasFlagVersion       bool
	Variation            int
	HasVariation         bool
	Value                any
	Default              any
	Reason               eval.Reason
	HasReason            bool
	PrereqOf             string
	HasPrereqOf          bool
	TrackEvents          bool
	DebugEventsUntilDate int64
	HasDebugUntil        bool
	SamplingRatio        int
	ExcludeFromSummaries bool
	Debug                bool
}

func (e EvaluationEvent) GetBase() BaseEvent { return e.BaseEvent }

// IdentifyEvent records an explicit identify call.
type IdentifyEvent struct {
	BaseEvent
}

func (e IdentifyEvent) GetBase() BaseEvent { return e.BaseEvent }

// IndexEvent tells the events service about a context it has not seen recently, generated
// internally by the processor rather than sent directly by application code.
type IndexEvent struct {
	BaseEvent
}

func (e IndexEvent) GetBase() BaseEvent { return e.BaseEvent }

// CustomEvent records an application-defined custom event.
type CustomEvent struct {
	BaseEvent
	Key         string
	Data        any
	HasData     bool
	MetricValue float64
	HasMetric   bool
}

func (e CustomEvent) GetBase() BaseEvent { return e.BaseEvent }

// MigrationOpEvent records one migration-flag read or write operation, per spec §4.4.
type MigrationOpEvent struct {
	BaseEvent
	Operation     string // "read" or "write"
	FlagKey       string
	Evaluation    EvaluationEvent
	Measurements  []MigrationMeasurement
	SamplingRatio int
}

func (e MigrationOpEvent) GetBase() BaseEvent { return e.BaseEvent }

// MigrationMeasurement is one data point attached to a MigrationOpEvent (latency, error, or
// consistency check result for one origin).
type MigrationMeasurement struct {
	Kind  string // "latency_ms", "error", "consistent"
	Origin string
	Value any
}
