package qos

var profileSchema = `
{
  "type": "object",
  "properties": {
    "reliability": {
      "description": "Delivery guarantee: 'best_effort' or 'reliable'.",
      "type": "string",
      "enum": ["best_effort", "reliable"]
    },
    "durability": {
      "description": "How much history is kept for late-joining readers.",
      "type": "string",
      "enum": ["volatile", "transient_local", "transient", "persistent"]
    },
    "history": {
      "description": "Whether to keep only the last N samples per instance or all of them.",
      "type": "string",
      "enum": ["keep_last", "keep_all"]
    },
    "history-depth": {
      "description": "Depth N for keep_last history; ignored for keep_all.",
      "type": "integer",
      "minimum": 0
    },
    "deadline": {
      "description": "Maximum expected period between updates to an instance, as a Go duration string.",
      "type": "string"
    },
    "lifespan": {
      "description": "How long a sample remains valid after being written, as a Go duration string.",
      "type": "string"
    },
    "liveliness": {
      "description": "Who is responsible for asserting liveliness.",
      "type": "string",
      "enum": ["automatic", "manual_by_participant", "manual_by_topic"]
    },
    "lease-duration": {
      "description": "Liveliness lease duration, as a Go duration string.",
      "type": "string"
    },
    "ownership": {
      "description": "Whether multiple writers may update the same instance concurrently.",
      "type": "string",
      "enum": ["shared", "exclusive"]
    },
    "ownership-strength": {
      "description": "Tie-break strength used under exclusive ownership.",
      "type": "integer"
    },
    "content-filter": {
      "description": "Optional expr-lang boolean expression evaluated against a sample's fields.",
      "type": "string"
    }
  },
  "additionalProperties": false
}
`
