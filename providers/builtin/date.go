package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

// now is replaced in tests.
var now = time.Now

// layoutAliases are the names date-format accepts besides Go reference layouts.
var layoutAliases = map[string]string{
	"":         time.RFC3339,
	"rfc3339":  time.RFC3339,
	"date":     time.DateOnly,
	"time":     time.TimeOnly,
	"datetime": time.DateTime,
	"kitchen":  time.Kitchen,
}

func dateNodes() []Node {
	return []Node{
		newNode("date", "now",
			ports{},
			ports{"value": typemodel.Date},
			func(context.Context, *engine.Invocation) (*engine.Output, error) {
				return single(engine.Record{"value": now().UTC()})
			},
			withDescription("The time the node is evaluated, in UTC."),
		),
		newNode("date", "format",
			ports{"date": typemodel.Date, "layout": typemodel.NewNullable(typemodel.String)},
			ports{"out": typemodel.String},
			formatHandler,
			withDescription("Formats date with a Go reference layout or one of rfc3339, date, time, datetime, kitchen."),
		),
		newNode("date", "addDays",
			ports{"date": typemodel.Date, "days": typemodel.Integer},
			ports{"out": typemodel.Date},
			addDaysHandler,
			withDescription("Shifts date by a number of calendar days, which may be negative."),
		),
	}
}

func dateInput(invocation *engine.Invocation, name string) (time.Time, error) {
	switch value := invocation.Input(name).(type) {
	case time.Time:
		return value, nil
	case string:
		if parsed, ok := typemodel.ParseDate(value); ok {
			return parsed, nil
		}
	case nil:
		return time.Time{}, fmt.Errorf("input %s is required", name)
	}
	return time.Time{}, fmt.Errorf("input %s: %v is not a date", name, invocation.Input(name))
}

func formatHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	date, err := dateInput(invocation, "date")
	if err != nil {
		return nil, err
	}
	layout, err := textInput(invocation, "layout")
	if err != nil {
		return nil, err
	}
	if alias, ok := layoutAliases[strings.ToLower(layout)]; ok {
		layout = alias
	}
	return single(engine.Record{"out": date.Format(layout)})
}

func addDaysHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	date, err := dateInput(invocation, "date")
	if err != nil {
		return nil, err
	}
	days, err := integerInput(invocation, "days", 0)
	if err != nil {
		return nil, err
	}
	return single(engine.Record{"out": date.AddDate(0, 0, int(days))})
}
