// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	Keys = ProgramConfig{VendorID: "010f", DefaultProfile: "volatile.default"}
	require.NoError(t, Init(filepath.Join(t.TempDir(), "missing.json")))
	require.Equal(t, "volatile.default", Keys.DefaultProfile)
}

func TestInitLoadsAndValidatesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"host-id": 7,
		"vendor-id": "cafe",
		"listen": {"unicast": ["udpv4://0.0.0.0:7410"]},
		"default-profile": "reliable.default"
	}`), 0o644))

	Keys = ProgramConfig{}
	require.NoError(t, Init(path))
	require.EqualValues(t, 7, Keys.HostID)
	require.Equal(t, "cafe", Keys.VendorID)
	require.Equal(t, "reliable.default", Keys.DefaultProfile)
}

func TestInitRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not-a-real-field": true}`), 0o644))

	Keys = ProgramConfig{}
	require.Error(t, Init(path))
}

func TestValidateRejectsMalformedInstance(t *testing.T) {
	err := Validate(configSchema, json.RawMessage(`{"listen": "not-an-object"}`))
	require.Error(t, err)
}
