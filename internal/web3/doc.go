// Package web3 houses blockchain connectivity types shared by the wallet and
// analytics layers: chain templates for Taiko and Taiko Hekla, the chain
// client contract implemented by the go-ethereum adapter, and helpers for the
// canonical address and transaction hash shapes.
package web3
