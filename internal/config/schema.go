// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

var configSchema = `
{
  "type": "object",
  "properties": {
    "host-id": {
      "description": "Stable identifier for this host, used by internal/transport's SHM locator resolution to detect same-host peers.",
      "type": "integer"
    },
    "vendor-id": {
      "description": "Two-byte RTPS vendor id this participant emits in every header (hex string, e.g. '010f').",
      "type": "string"
    },
    "listen": {
      "description": "Locators this participant binds on.",
      "type": "object",
      "properties": {
        "unicast": { "type": "array", "items": { "type": "string" } },
        "multicast": { "type": "array", "items": { "type": "string" } },
        "tcp-only": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "runtime": {
      "description": "Worker pool size and diagnostics agent configuration (internal/runtime).",
      "type": "object",
      "properties": {
        "workers": { "type": "integer", "minimum": 0 },
        "enable-gops": { "type": "boolean" },
        "gops-addr": { "type": "string" }
      },
      "additionalProperties": false
    },
    "default-profile": {
      "description": "Name of the QoS profile (see default_qos.go) applied when a writer/reader registers without an explicit profile.",
      "type": "string"
    },
    "profiles": {
      "description": "Named QoS profile overrides merged on top of the built-in default table; each value validates against the QoS profile schema (internal/qos).",
      "type": "object",
      "additionalProperties": { "type": "object" }
    }
  },
  "additionalProperties": false
}
`
