package main

import (
	"fmt"
	"io"
	"os"

	"bazaar/crypto"
)

// runKeygen writes a fresh key as an encrypted keystore and prints its
// address. Existing files are never overwritten.
func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "wallet.json", "keystore output path")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if _, err := os.Stat(*out); err == nil {
		return printError(stderr, fmt.Sprintf("%s already exists; refusing to overwrite", *out))
	}
	pass, err := passSource.Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, fmt.Sprintf("generate key: %v", err))
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("save keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Keystore written to %s\n", *out)
	fmt.Fprintf(stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	path := fs.String("keystore", "wallet.json", "keystore path")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	pass, err := passSource.Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.LoadFromKeystore(*path, pass)
	if err != nil {
		return printError(stderr, fmt.Sprintf("load keystore %s: %v", *path, err))
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}
