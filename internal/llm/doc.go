// Package llm extracts structured action parameters (chain, token, amount,
// addresses) from chat messages through a language model. Provider-specific
// adapters live in sub-packages.
package llm
