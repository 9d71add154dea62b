package llm

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(ExtractRequest{
		Action:     ActionTransfer,
		Messages:   []string{"hi", "send 0.1 ETH to siddesh.eth on taiko"},
		WalletInfo: "Taiko Wallet Address: 0xabc",
	})
	if err != nil {
		t.Fatalf("build prompt: %v", err)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("placeholders left in prompt:\n%s", prompt)
	}
	for _, fragment := range []string{"- send 0.1 ETH to siddesh.eth on taiko", "Taiko Wallet Address: 0xabc", `"toAddress": string`} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q", fragment)
		}
	}

	if _, err := BuildPrompt(ExtractRequest{Action: "swap"}); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseParams(t *testing.T) {
	content := "Sure!\n```json\n{\n  \"chain\": \"taikoHekla\",\n  \"token\": null,\n  \"amount\": 0.5,\n  \"toAddress\": \"siddesh.eth\"\n}\n```"
	params, err := ParseParams(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.Get("chain") != "taikoHekla" || params.Get("token") != "" || params.Get("amount") != "0.5" || params.Get("toAddress") != "siddesh.eth" {
		t.Fatalf("unexpected params %+v", params)
	}

	bare, err := ParseParams(`{"contractAddress":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}`)
	if err != nil || bare.Get("contractAddress") == "" {
		t.Fatalf("bare json should parse, got %+v %v", bare, err)
	}

	if _, err := ParseParams("I cannot help with that"); err == nil {
		t.Fatal("expected error for non-json reply")
	}
}
