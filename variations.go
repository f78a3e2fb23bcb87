package flagbridge

import (
	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/fdevents"
	"github.com/flagbridge/go-server-sdk/flagmodel"
	"github.com/flagbridge/go-server-sdk/flagstate"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// BoolVariation returns the value of a boolean flag for ctx, or defaultVal if the flag doesn't
// exist, is off with no off variation, or evaluation fails for any reason.
func (c *Client) BoolVariation(flagKey string, ctx evalcontext.Context, defaultVal bool) (bool, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Bool(defaultVal), true, false)
	return detail.Value.BoolValue(), err
}

// BoolVariationDetail is BoolVariation plus the full evaluation Detail, with the reason included
// in the resulting analytics event.
func (c *Client) BoolVariationDetail(flagKey string, ctx evalcontext.Context, defaultVal bool) (bool, eval.Detail, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Bool(defaultVal), true, true)
	return detail.Value.BoolValue(), detail, err
}

// IntVariation returns the value of an integer flag for ctx, or defaultVal on any evaluation
// failure. A non-integer numeric variation is truncated toward zero.
func (c *Client) IntVariation(flagKey string, ctx evalcontext.Context, defaultVal int) (int, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Int(defaultVal), true, false)
	return detail.Value.IntValue(), err
}

// IntVariationDetail is IntVariation plus the full evaluation Detail.
func (c *Client) IntVariationDetail(flagKey string, ctx evalcontext.Context, defaultVal int) (int, eval.Detail, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Int(defaultVal), true, true)
	return detail.Value.IntValue(), detail, err
}

// Float64Variation returns the value of a numeric flag for ctx, or defaultVal on any evaluation
// failure.
func (c *Client) Float64Variation(flagKey string, ctx evalcontext.Context, defaultVal float64) (float64, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Float64(defaultVal), true, false)
	return detail.Value.Float64Value(), err
}

// Float64VariationDetail is Float64Variation plus the full evaluation Detail.
func (c *Client) Float64VariationDetail(flagKey string, ctx evalcontext.Context, defaultVal float64) (float64, eval.Detail, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.Float64(defaultVal), true, true)
	return detail.Value.Float64Value(), detail, err
}

// StringVariation returns the value of a string flag for ctx, or defaultVal on any evaluation
// failure.
func (c *Client) StringVariation(flagKey string, ctx evalcontext.Context, defaultVal string) (string, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.String(defaultVal), true, false)
	return detail.Value.StringValue(), err
}

// StringVariationDetail is StringVariation plus the full evaluation Detail.
func (c *Client) StringVariationDetail(flagKey string, ctx evalcontext.Context, defaultVal string) (string, eval.Detail, error) {
	detail, err := c.variation(flagKey, ctx, flagvalue.String(defaultVal), true, true)
	return detail.Value.StringValue(), detail, err
}

// JSONVariation returns the value of a flag for ctx as a flagvalue.Value of any JSON type,
// or defaultVal on any evaluation failure. Unlike the typed Variation methods, no type check is
// performed against defaultVal: the stored variation's own type is returned as-is.
func (c *Client) JSONVariation(flagKey string, ctx evalcontext.Context, defaultVal flagvalue.Value) (flagvalue.Value, error) {
	detail, err := c.variation(flagKey, ctx, defaultVal, false, false)
	return detail.Value, err
}

// JSONVariationDetail is JSONVariation plus the full evaluation Detail.
func (c *Client) JSONVariationDetail(flagKey string, ctx evalcontext.Context, defaultVal flagvalue.Value) (flagvalue.Value, eval.Detail, error) {
	detail, err := c.variation(flagKey, ctx, defaultVal, false, true)
	return detail.Value, detail, err
}

// variation performs one top-level flag evaluation, sending the resulting evaluation event, and
// returns the default value with a client-not-ready/error detail if the client is offline, not yet
// initialized with no stored data, or the stored variation's type doesn't match defaultVal.
func (c *Client) variation(
	flagKey string,
	ctx evalcontext.Context,
	defaultVal flagvalue.Value,
	checkType bool,
	sendReasonInEvent bool,
) (eval.Detail, error) {
	if c.offline {
		return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorClientNotReady)}, nil
	}

	detail, flag, err := c.evaluateInternal(flagKey, ctx, defaultVal)
	if err != nil {
		detail.Value = defaultVal
		detail.VariationIndex = -1
	} else if checkType && !defaultVal.IsNull() && !detail.IsDefaultValue() && detail.Value.Type() != defaultVal.Type() {
		detail = eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorWrongType)}
	}

	c.events.SendEvent(c.newEvaluationEvent(flagKey, ctx, flag, detail, defaultVal, sendReasonInEvent))
	return detail, err
}

// evaluateInternal runs the evaluator, recording prerequisite events along the way, but does not
// send the top-level evaluation event itself (the caller does that, since offline/default-flow
// callers need to vary how the event is built).
func (c *Client) evaluateInternal(
	flagKey string,
	ctx evalcontext.Context,
	defaultVal flagvalue.Value,
) (eval.Detail, *flagmodel.FeatureFlag, error) {
	if !ctx.IsValid() {
		return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorUserNotSpecified)}, nil, ctx.Err()
	}
	if !c.Initialized() {
		if c.store.Initialized() {
			c.loggers.Warn("flag evaluation called before client initialization completed; using last known values from the data store")
		} else {
			return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorClientNotReady)}, nil, ErrClientNotInitialized
		}
	}

	item, err := c.store.Get(datakinds.Flags, flagKey)
	if err != nil {
		return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorException)}, nil, err
	}
	if item.Deleted() {
		return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorFlagNotFound)}, nil, nil
	}
	flag, ok := item.Data.(*flagmodel.FeatureFlag)
	if !ok || flag == nil {
		return eval.Detail{Value: defaultVal, VariationIndex: -1, Reason: eval.NewErrorReason(eval.ErrorFlagNotFound)}, nil, nil
	}

	var prereqEvents []fdevents.Event
	recorder := func(pe eval.PrerequisiteEvent) {
		prereqEvents = append(prereqEvents, c.newEvaluationEvent(pe.Flag.Key, ctx, pe.Flag, pe.Detail, flagvalue.Null(), false))
	}
	detail := c.evaluator.Evaluate(flagKey, ctx, defaultVal, recorder)
	for _, evt := range prereqEvents {
		c.events.SendEvent(evt)
	}
	return detail, flag, nil
}

func (c *Client) newEvaluationEvent(
	flagKey string,
	ctx evalcontext.Context,
	flag *flagmodel.FeatureFlag,
	detail eval.Detail,
	defaultVal flagvalue.Value,
	sendReasonInEvent bool,
) fdevents.EvaluationEvent {
	evt := fdevents.EvaluationEvent{
		BaseEvent: c.baseEvent(ctx),
		FlagKey:   flagKey,
		Value:     detail.Value,
		Default:   defaultVal,
		Reason:    detail.Reason,
		HasReason: sendReasonInEvent || detail.Reason.Kind == eval.KindError,
	}
	if detail.VariationIndex >= 0 {
		evt.Variation = detail.VariationIndex
		evt.HasVariation = true
	}
	if flag != nil {
		evt.FlagVersion = flag.Version
		evt.HasFlagVersion = true
		evt.TrackEvents = flag.TrackEvents
		evt.SamplingRatio = flag.EffectiveSamplingRatio()
		evt.ExcludeFromSummaries = flag.ExcludeFromSummaries
		if flag.DebugEventsUntilDate != nil {
			evt.DebugEventsUntilDate = *flag.DebugEventsUntilDate
			evt.HasDebugUntil = true
			evt.Debug = evt.DebugEventsUntilDate > nowMillis()
		}
	}
	return evt
}

// AllFlagsState returns a snapshot of every flag's evaluation result for ctx, suitable for
// bootstrapping a client-side SDK. It returns an invalid snapshot if the client is offline or the
// data store has never been initialized.
func (c *Client) AllFlagsState(ctx evalcontext.Context, opts flagstate.Options) flagstate.AllFlags {
	if c.offline {
		c.loggers.Warn("AllFlagsState called in offline mode; returning an empty state")
		return flagstate.NewInvalid()
	}
	if !c.Initialized() && !c.store.Initialized() {
		c.loggers.Warn("AllFlagsState called before client initialization; data store unavailable, returning an empty state")
		return flagstate.NewInvalid()
	}
	if !ctx.IsValid() {
		c.loggers.Warn("AllFlagsState called with an invalid context; returning an empty state")
		return flagstate.NewInvalid()
	}

	items, err := c.store.All(datakinds.Flags)
	if err != nil {
		c.loggers.Warnf("unable to fetch flags from data store: %s", err)
		return flagstate.NewInvalid()
	}

	builder := flagstate.NewBuilder(opts)
	for _, keyed := range items {
		flag, ok := keyed.Item.Data.(*flagmodel.FeatureFlag)
		if !ok || flag == nil {
			continue
		}
		if opts.ClientSideOnly && !flag.ClientSideAvailability.UsingEnvironmentID {
			continue
		}
		detail := c.evaluator.Evaluate(flag.Key, ctx, flagvalue.Null(), nil)
		fs := flagstate.FlagState{
			Value:                detail.Value,
			Version:              flag.Version,
			Reason:               detail.Reason,
			HasReason:            true,
			TrackEvents:          flag.TrackEvents,
			TrackReason:          flag.TrackEvents,
		}
		if detail.VariationIndex >= 0 {
			fs.Variation = detail.VariationIndex
			fs.HasVariation = true
		}
		if flag.DebugEventsUntilDate != nil {
			fs.DebugEventsUntilDate = *flag.DebugEventsUntilDate
		}
		builder.AddFlag(flag.Key, fs)
	}
	return builder.Build()
}
