package main

import (
	"encoding/json"
	"fmt"
	"os"

	taskapi "metatask/pkg/metatask"
)

// loadRunRequestFromConfig reads a run request from a JSON file. Unknown
// keys are ignored so configs can carry operator annotations.
func loadRunRequestFromConfig(path string) (taskapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return taskapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return taskapi.RunRequest{}, err
	}

	var req taskapi.RunRequest
	if v, ok := asString(raw["family"]); ok {
		req.Family = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asBool(raw["train"]); ok {
		req.Train = v
	}
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.LearningRate = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (taskapi.RunRequest, error) {
	if configPath == "" {
		return taskapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return taskapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

// overrideFromFlags applies explicitly set command-line flags on top of a
// config-loaded request.
func overrideFromFlags(req *taskapi.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "family":
			req.Family = v.(string)
		case "pop":
			req.Population = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "train":
			req.Train = v.(bool)
		case "steps":
			req.Steps = v.(int)
		case "lr":
			req.LearningRate = v.(float64)
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
