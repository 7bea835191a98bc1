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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	dTree = false
	dSchedule = false
	dAsm = false
	svgFile = ""
	cfgFile = ""
	verbosity = ""
}

func execute(t *testing.T, args ...string) (string, error) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, name := range sampleNames() {
		assert.Contains(t, out, name)
	}
	assert.Equal(t, len(samples), strings.Count(out, "\n"))
}

func TestDump_Samples(t *testing.T) {
	for _, name := range sampleNames() {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "dump", name, "--config", writeConfig(t, "features: [popcnt, lzcnt, bmi1]\n"))
			require.NoError(t, err)
			assert.Contains(t, out, "push rbp")
			assert.Contains(t, out, "ret")
			assert.NotContains(t, out, "(bad)")
		})
	}
}

func TestDump_Stages(t *testing.T) {
	svg := filepath.Join(t.TempDir(), "ranges.svg")
	out, err := execute(t, "dump", "sum", "--tree", "--schedule", "--svg", svg)
	require.NoError(t, err)
	assert.Contains(t, out, "; graph of sum")
	assert.Contains(t, out, "; schedule of sum")
	assert.Contains(t, out, "bb_0")
	assert.NotContains(t, out, "push rbp")

	data, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestDump_Errors(t *testing.T) {
	_, err := execute(t, "dump", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sample")

	_, err = execute(t, "dump", "add", "--config", writeConfig(t, "features: [avx512]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avx512")

	_, err = execute(t, "dump", "add", "--config", writeConfig(t, "max_nodes: 4\n"))
	require.Error(t, err)

	_, err = execute(t, "dump")
	require.Error(t, err)
}

func TestConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, "max_nodes: 4096\narena_block: 64\nfeatures: [POPCNT]\n"))
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.MaxNodes)
	assert.Equal(t, 64, cfg.ArenaBlock)
	assert.Equal(t, defaultConfig().CodeSize, cfg.CodeSize)

	tg, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, featureNames["popcnt"], tg.Features)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "seadump.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}
