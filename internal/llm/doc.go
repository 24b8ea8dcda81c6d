// Package llm is the gateway to the completion services used by the receipt
// pipeline and the learners. It routes calls to a primary backend (vision,
// text and speech) or a secondary text-only backend, wraps each call with
// rate limiting, retries and a per-call timeout, and provides lenient
// extraction of fenced JSON or markdown payloads from model replies.
package llm
