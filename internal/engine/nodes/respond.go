package nodes

import (
	"context"
	"encoding/json"
	"fmt"
)

// RespondBehavior shapes the final payload delivered back to the origin
// channel. When the merged upstream data carries a defaultData field that is
// what the user sees; otherwise the whole data set is rendered.
type RespondBehavior struct{}

func NewRespondBehavior() *RespondBehavior {
	return &RespondBehavior{}
}

func (r *RespondBehavior) Execute(ctx context.Context, in Input) Output {
	if in.Data == nil {
		return Success("text", "")
	}

	if v, ok := in.Data["defaultData"]; ok {
		return Success("text", render(v))
	}

	if template := stringConfig(in.Config, "template"); template != "" {
		// Single-placeholder template, enough for chat-style replies.
		return Success("text", fmt.Sprintf(template, render(in.Data)))
	}

	return Success("json", in.Data)
}

func render(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
