package chatbox

import "github.com/germanamz/chatbox/pkg/registry"

// Plugin registers the widget under TagName. Options act as defaults for
// every mounted instance; Props from the host replace the initial messages,
// handler and logger.
type Plugin struct {
	Options Options
}

// Install implements registry.Plugin.
func (p Plugin) Install(r *registry.Registry) error {
	r.Register(TagName, func(props registry.Props) (registry.Component, error) {
		opts := p.Options
		opts.Initial = props.Initial
		opts.Handler = props.Handler
		opts.Logger = props.Logger
		m, err := New(opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	return nil
}

var _ registry.Plugin = Plugin{}
