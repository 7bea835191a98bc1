/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/cloudwego/seacg/internal/opts"
	"github.com/cloudwego/seacg/internal/x64"
)

// Config mirrors the module options. Features lists extension names, or
// "host" for whatever the running CPU has.
type Config struct {
	MaxNodes   int      `yaml:"max_nodes"`
	ArenaBlock int      `yaml:"arena_block"`
	CodeSize   int      `yaml:"code_size"`
	Features   []string `yaml:"features"`
}

var featureNames = map[string]opts.Feature{
	"popcnt": opts.FeaturePOPCNT,
	"lzcnt":  opts.FeatureLZCNT,
	"bmi1":   opts.FeatureBMI1,
}

func defaultConfig() *Config {
	o := opts.GetDefaultOptions()
	return &Config{
		MaxNodes:   o.MaxNodes,
		ArenaBlock: o.ArenaBlock,
		CodeSize:   o.CodeSize,
		Features:   []string{"host"},
	}
}

// loadConfig reads a YAML config file over the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse %v", path)
	}
	if cfg.MaxNodes < 16 || cfg.ArenaBlock < 16 || cfg.CodeSize < 64 {
		return nil, errors.New("%v: limits too small", path)
	}
	return cfg, nil
}

// Target resolves the feature names.
func (c *Config) Target() (*x64.Target, error) {
	var f opts.Feature
	for _, name := range c.Features {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "host" {
			f |= x64.HostFeatures()
		} else if v, ok := featureNames[name]; ok {
			f |= v
		} else {
			return nil, errors.New("unknown feature %q", name)
		}
	}
	return x64.NewTarget(f), nil
}
