package fdevents

// outputFormatter turns buffered events and a summary snapshot into the wire payload described
// in spec §4.4.
type outputFormatter struct {
	policy redactionPolicy
}

func newOutputFormatter(cfg Config) outputFormatter {
	return outputFormatter{policy: newRedactionPolicy(cfg.AllAttributesPrivate, cfg.GlobalPrivateAttributes)}
}

func (f outputFormatter) makeOutputEvents(events []Event, summary *eventSummarizer) []map[string]any {
	out := make([]map[string]any, 0, len(events)+1)
	for _, e := range events {
		if m := f.makeOutputEvent(e); m != nil {
			out = append(out, m)
		}
	}
	if !summary.isEmpty() {
		out = append(out, f.makeSummaryEvent(summary))
	}
	return out
}

func (f outputFormatter) makeOutputEvent(e Event) map[string]any {
	switch evt := e.(type) {
	case IndexEvent:
		return map[string]any{
			"kind":         "index",
			"creationDate": evt.CreationDate,
			"context":      marshalContext(evt.Context, f.policy),
		}
	case IdentifyEvent:
		return map[string]any{
			"kind":         "identify",
			"creationDate": evt.CreationDate,
			"context":      marshalContext(evt.Context, f.policy),
		}
	case EvaluationEvent:
		return f.makeFeatureEvent(evt)
	case CustomEvent:
		m := map[string]any{
			"kind":         "custom",
			"creationDate": evt.CreationDate,
			"key":          evt.Key,
			"context":      marshalContext(evt.Context, f.policy),
		}
		if evt.HasData {
			m["data"] = evt.Data
		}
		if evt.HasMetric {
			m["metricValue"] = evt.MetricValue
		}
		return m
	case MigrationOpEvent:
		return f.makeMigrationOpEvent(evt)
	default:
		return nil
	}
}

func (f outputFormatter) makeFeatureEvent(evt EvaluationEvent) map[string]any {
	m := map[string]any{
		"kind":         "feature",
		"creationDate": evt.CreationDate,
		"key":          evt.FlagKey,
		"context":      marshalContext(evt.Context, f.policy),
		"value":        evt.Value,
		"default":      evt.Default,
	}
	if evt.HasFlagVersion {
		m["version"] = evt.FlagVersion
	}
	if evt.HasVariation {
		m["variation"] = evt.Variation
	}
	if evt.HasReason {
		m["reason"] = evt.Reason
	}
	if evt.HasPrereqOf {
		m["prereqOf"] = evt.PrereqOf
	}
	if evt.TrackEvents {
		m["trackEvents"] = true
	}
	if evt.Debug {
		m["debug"] = true
	}
	if evt.SamplingRatio != 0 && evt.SamplingRatio != 1 {
		m["samplingRatio"] = evt.SamplingRatio
	}
	return m
}

func (f outputFormatter) makeMigrationOpEvent(evt MigrationOpEvent) map[string]any {
	measurements := make([]map[string]any, 0, len(evt.Measurements))
	for _, meas := range evt.Measurements {
		mm := map[string]any{"key": meas.Kind, "value": meas.Value}
		if meas.Origin != "" {
			mm["origin"] = meas.Origin
		}
		measurements = append(measurements, mm)
	}
	m := map[string]any{
		"kind":         "migration_op",
		"creationDate": evt.CreationDate,
		"operation":    evt.Operation,
		"context":      marshalContext(evt.Context, f.policy),
		"evaluation":   f.makeFeatureEvent(evt.Evaluation),
		"measurements": measurements,
	}
	if evt.SamplingRatio != 0 && evt.SamplingRatio != 1 {
		m["samplingRatio"] = evt.SamplingRatio
	}
	return m
}

func (f outputFormatter) makeSummaryEvent(s *eventSummarizer) map[string]any {
	features := map[string]any{}
	for flagKey, fs := range s.flags {
		kinds := make([]string, 0, len(fs.contextKinds))
		for kind := range fs.contextKinds {
			kinds = append(kinds, kind)
		}
		counters := make([]map[string]any, 0, len(fs.counters))
		for key, cv := range fs.counters {
			c := map[string]any{"value": cv.value, "count": cv.count}
			if key.hasVariation {
				c["variation"] = key.variation
			}
			if key.hasVersion {
				c["version"] = key.version
			} else {
				c["unknown"] = true
			}
			counters = append(counters, c)
		}
		features[flagKey] = map[string]any{
			"default":      fs.defaultValue,
			"contextKinds": kinds,
			"counters":     counters,
		}
	}
	return map[string]any{
		"kind":      "summary",
		"startDate": s.startDate,
		"endDate":   s.endDate,
		"features":  features,
	}
}
