// Package llm provides an OpenRouter-compatible chat completion client.
//
// This package is used by:
//   - Research stage: produce a structured research brief from a transcript
//   - Generation stages: draft articles, podcast scripts, and social posts
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title, and
// timeout. The api_key can also come from the SCRIBE_LLM_API_KEY environment
// variable.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive prose.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
package llm
