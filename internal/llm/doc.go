// Package llm sends survey-response data to a language model and asks it
// which numeric columns are key performance indicators. It wraps the model
// call with exponential-backoff retries for rate limits and optional
// client-side throttling.
package llm
