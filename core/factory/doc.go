// Package factory is a generic registry that builds pluggable components,
// such as metrics sinks, from a type name and a raw settings map.
//
//	reg := factory.NewRegistry[metrics.Sink]()
//	_ = reg.Register("nop", func(map[string]any) (metrics.Sink, error) { return metrics.NopSink{}, nil })
//	s, err := reg.Create(factory.ModuleConfig{Type: "nop"})
package factory
