package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of the optional chains YAML file.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition overrides fields of a built-in chain template. Only the
// non-empty fields are applied.
type ChainDefinition struct {
	RPCURL      string `yaml:"rpc_url"`
	ExplorerURL string `yaml:"explorer_url"`
	IndexerSlug string `yaml:"indexer_slug"`
}

// LoadChainDefinitions parses the YAML file containing chain overrides. An
// empty path yields an empty definition set.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("read chain definitions: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("parse chain definitions: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}

// Apply merges the definitions into the built-in templates. Definitions for
// chains without a built-in template are rejected.
func (d ChainDefinitions) Apply(chains map[string]ChainConfig) error {
	for name, def := range d.Chains {
		chain, ok := chains[name]
		if !ok {
			return fmt.Errorf("chain %q has no built-in template", name)
		}
		if v := strings.TrimSpace(def.RPCURL); v != "" {
			chain.CustomRPCURL = v
		}
		if v := strings.TrimSpace(def.ExplorerURL); v != "" {
			chain.ExplorerURL = v
		}
		if v := strings.TrimSpace(def.IndexerSlug); v != "" {
			chain.IndexerSlug = v
		}
		chains[name] = chain
	}
	return nil
}
