package main

import (
	"fmt"
	"io"
	"strings"
)

type ownerParams struct {
	Caller string `json:"caller"`
}

type addressParams struct {
	Address string `json:"address"`
}

type releaseParams struct {
	Time   int64  `json:"time"`
	Amount string `json:"amount"`
}

type createGrantParams struct {
	Caller      string          `json:"caller"`
	Beneficiary string          `json:"beneficiary"`
	Token       string          `json:"token"`
	Cliff       int64           `json:"cliff"`
	CliffAmount string          `json:"cliffAmount"`
	Schedule    []releaseParams `json:"schedule"`
	Revocable   bool            `json:"revocable"`
}

type grantActionParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type tokenQueryParams struct {
	Token   string `json:"token"`
	Address string `json:"address,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Spender string `json:"spender,omitempty"`
}

type tokenMoveParams struct {
	Caller  string `json:"caller"`
	Token   string `json:"token"`
	To      string `json:"to,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

func runArbitratorCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: bazaar-cli arbitrator register --caller ADDR | rule --caller ADDR --contract ADDR --dispute ID --outcome seller|buyer | get --address ADDR")
		return 1
	}
	switch args[0] {
	case "register":
		return runOwnerCall("arbitrator_register", args[1:], stdout, stderr)
	case "rule":
		return runRuling("arbitrator_giveRuling", args[1:], stdout, stderr)
	case "get":
		return runAddressQuery("arbitrator_get", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown arbitrator subcommand: %s\n", args[0])
		return 1
	}
}

func runIdentityCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: bazaar-cli identity register --caller ADDR | get --address ADDR")
		return 1
	}
	switch args[0] {
	case "register":
		return runOwnerCall("identity_register", args[1:], stdout, stderr)
	case "get":
		return runAddressQuery("identity_get", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown identity subcommand: %s\n", args[0])
		return 1
	}
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	return runAddressQuery("account_balance", args, stdout, stderr)
}

func runOwnerCall(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params ownerParams
	fs.StringVar(&params.Caller, "caller", "", "caller bech32 address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("caller", params.Caller); err != nil {
		return printError(stderr, err.Error())
	}
	if err := checkAddress("caller", params.Caller); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, true, stdout, stderr)
}

func runAddressQuery(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params addressParams
	fs.StringVar(&params.Address, "address", "", "bech32 address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("address", params.Address); err != nil {
		return printError(stderr, err.Error())
	}
	if err := checkAddress("address", params.Address); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, false, stdout, stderr)
}

func runVestingCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, strings.Join([]string{
			"Usage: bazaar-cli vesting <subcommand> [flags]",
			"  create --caller ADDR --beneficiary ADDR --token SYM --cliff TIME --cliff-amount N [--release TIME:N ...] [--revocable]",
			"  get    --id ID",
			"  vest   --caller ADDR --id ID",
			"  revoke --caller ADDR --id ID",
		}, "\n"))
		return 1
	}
	switch args[0] {
	case "create":
		return runCreateGrant(args[1:], stdout, stderr)
	case "get":
		return runGetByID("vesting_get", args[1:], stdout, stderr)
	case "vest":
		return runGrantAction("vesting_vest", args[1:], stdout, stderr)
	case "revoke":
		return runGrantAction("vesting_revoke", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown vesting subcommand: %s\n", args[0])
		return 1
	}
}

func runCreateGrant(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vesting create", stderr)
	var (
		params   createGrantParams
		cliff    string
		releases releaseList
	)
	fs.StringVar(&params.Caller, "caller", "", "grantor bech32 address")
	fs.StringVar(&params.Beneficiary, "beneficiary", "", "beneficiary bech32 address")
	fs.StringVar(&params.Token, "token", "", "granted token symbol")
	fs.StringVar(&cliff, "cliff", "", "cliff time as +duration, RFC3339 or unix seconds")
	fs.StringVar(&params.CliffAmount, "cliff-amount", "", "amount released at the cliff")
	fs.Var(&releases, "release", "later release as TIME:AMOUNT (repeatable)")
	fs.BoolVar(&params.Revocable, "revocable", false, "allow the grantor to revoke unvested funds")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("caller", params.Caller, "beneficiary", params.Beneficiary, "token", params.Token, "cliff-amount", params.CliffAmount); err != nil {
		return printError(stderr, err.Error())
	}
	for _, check := range [][2]string{{"caller", params.Caller}, {"beneficiary", params.Beneficiary}} {
		if err := checkAddress(check[0], check[1]); err != nil {
			return printError(stderr, err.Error())
		}
	}
	var err error
	if params.Cliff, err = parseTime("cliff", cliff); err != nil {
		return printError(stderr, err.Error())
	}
	if params.CliffAmount, err = normalizeAmount("cliff-amount", params.CliffAmount); err != nil {
		return printError(stderr, err.Error())
	}
	params.Schedule = []releaseParams(releases)
	if params.Schedule == nil {
		params.Schedule = []releaseParams{}
	}
	return invoke("vesting_createGrant", params, true, stdout, stderr)
}

func runGrantAction(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params grantActionParams
	fs.StringVar(&params.Caller, "caller", "", "caller bech32 address")
	fs.Uint64Var(&params.ID, "id", 0, "grant id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("caller", params.Caller); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, true, stdout, stderr)
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, strings.Join([]string{
			"Usage: bazaar-cli token <subcommand> [flags]",
			"  balance   --token SYM --address ADDR",
			"  allowance --token SYM --owner ADDR --spender ADDR",
			"  approve   --caller ADDR --token SYM --spender ADDR --amount N",
			"  transfer  --caller ADDR --token SYM --to ADDR --amount N",
		}, "\n"))
		return 1
	}
	switch args[0] {
	case "balance", "allowance":
		return runTokenQuery(args[0], args[1:], stdout, stderr)
	case "approve", "transfer":
		return runTokenMove(args[0], args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		return 1
	}
}

func runTokenQuery(sub string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token "+sub, stderr)
	var params tokenQueryParams
	fs.StringVar(&params.Token, "token", "", "token symbol")
	method := "token_balanceOf"
	if sub == "allowance" {
		method = "token_allowance"
		fs.StringVar(&params.Owner, "owner", "", "allowance owner")
		fs.StringVar(&params.Spender, "spender", "", "allowance spender")
	} else {
		fs.StringVar(&params.Address, "address", "", "holder address")
	}
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	var err error
	if sub == "allowance" {
		err = required("token", params.Token, "owner", params.Owner, "spender", params.Spender)
	} else {
		err = required("token", params.Token, "address", params.Address)
	}
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, false, stdout, stderr)
}

func runTokenMove(sub string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token "+sub, stderr)
	var params tokenMoveParams
	fs.StringVar(&params.Caller, "caller", "", "caller bech32 address")
	fs.StringVar(&params.Token, "token", "", "token symbol")
	fs.StringVar(&params.Amount, "amount", "", "amount in base units (supports 100e18)")
	method := "token_transfer"
	counterparty := "to"
	if sub == "approve" {
		method = "token_approve"
		counterparty = "spender"
		fs.StringVar(&params.Spender, "spender", "", "spender address")
	} else {
		fs.StringVar(&params.To, "to", "", "recipient address")
	}
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("caller", params.Caller, "token", params.Token, counterparty, params.To+params.Spender, "amount", params.Amount); err != nil {
		return printError(stderr, err.Error())
	}
	var err error
	if params.Amount, err = normalizeAmount("amount", params.Amount); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, true, stdout, stderr)
}
