package config

import "gopkg.in/yaml.v3"

// GlobalConfig holds process-wide keys unrelated to any single service.
// Per the Design Notes, the decision generator never reads this directly
// at decision time: the outer orchestrator looks it up once and passes
// the resolved bool into decision.Generate as an explicit parameter.
type GlobalConfig struct {
	Serve struct {
		StrictMaxCapacity bool `yaml:"strict_max_capacity"`
	} `yaml:"serve"`
}

// ParseGlobal decodes the subset of global configuration the autoscaler
// cares about.
func ParseGlobal(doc []byte) (GlobalConfig, error) {
	var gc GlobalConfig
	if len(doc) == 0 {
		return gc, nil
	}
	if err := yaml.Unmarshal(doc, &gc); err != nil {
		return GlobalConfig{}, newConfigError("<global-document>", err.Error())
	}
	return gc, nil
}
