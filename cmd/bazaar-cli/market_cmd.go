package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type callerParams struct {
	Caller      string `json:"caller"`
	ViaIdentity bool   `json:"viaIdentity,omitempty"`
}

type createListingParams struct {
	callerParams
	ContentRef string `json:"contentRef"`
	Units      uint64 `json:"units"`
	Owner      string `json:"owner,omitempty"`
}

type updateListingParams struct {
	callerParams
	ListingID       uint64 `json:"listingId"`
	ContentRef      string `json:"contentRef"`
	AdditionalUnits uint64 `json:"additionalUnits"`
}

type makeOfferParams struct {
	callerParams
	ListingID       uint64 `json:"listingId"`
	ContentRef      string `json:"contentRef"`
	FinalizesAt     int64  `json:"finalizesAt"`
	Affiliate       string `json:"affiliate,omitempty"`
	Commission      string `json:"commission,omitempty"`
	Amount          string `json:"amount"`
	Funding         string `json:"funding"`
	Token           string `json:"token,omitempty"`
	Arbitrator      string `json:"arbitrator"`
	WithdrawTimeout int64  `json:"withdrawTimeout"`
	Units           uint64 `json:"units,omitempty"`
	Value           string `json:"value,omitempty"`
}

type offerRefParams struct {
	callerParams
	ListingID uint64 `json:"listingId"`
	OfferID   uint64 `json:"offerId"`
}

type disputeParams struct {
	offerRefParams
	Evidence string `json:"evidence"`
	Refund   string `json:"refund,omitempty"`
}

type rulingParams struct {
	Caller        string `json:"caller"`
	Contract      string `json:"contract,omitempty"`
	DisputeID     uint64 `json:"disputeId"`
	Outcome       string `json:"outcome"`
	PayCommission bool   `json:"payCommission"`
	Refund        string `json:"refund,omitempty"`
}

type idParams struct {
	ID uint64 `json:"id"`
}

type listEventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

func runMarketCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, marketUsage())
		return 1
	}
	switch args[0] {
	case "create-listing":
		return runCreateListing(args[1:], stdout, stderr)
	case "update-listing":
		return runUpdateListing(args[1:], stdout, stderr)
	case "offer":
		return runMakeOffer(args[1:], stdout, stderr)
	case "accept":
		return runOfferTransition("market_acceptOffer", args[1:], stdout, stderr)
	case "decline":
		return runOfferTransition("market_declineOffer", args[1:], stdout, stderr)
	case "withdraw":
		return runOfferTransition("market_withdrawOffer", args[1:], stdout, stderr)
	case "finalize":
		return runOfferTransition("market_finalize", args[1:], stdout, stderr)
	case "dispute":
		return runDispute(args[1:], stdout, stderr)
	case "rule":
		return runRuling("market_giveRuling", args[1:], stdout, stderr)
	case "listing":
		return runGetByID("market_getListing", args[1:], stdout, stderr)
	case "get-offer":
		return runGetOffer(args[1:], stdout, stderr)
	case "get-dispute":
		return runGetByID("market_getDispute", args[1:], stdout, stderr)
	case "events":
		return runListEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown market subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, marketUsage())
		return 1
	}
}

func marketUsage() string {
	return strings.Join([]string{
		"Usage: bazaar-cli market <subcommand> [flags]",
		"  create-listing --caller ADDR --content-ref HEX --units N [--owner ADDR] [--via-identity]",
		"  update-listing --caller ADDR --listing ID --content-ref HEX [--add-units N]",
		"  offer          --caller ADDR --listing ID --content-ref HEX --amount N --funding native|token [--token SYM]",
		"                 --finalizes-at +72h|RFC3339|unix --arbitrator ADDR [--withdraw-timeout 1d] [--units N]",
		"                 [--affiliate ADDR --commission N] [--value N]",
		"  accept|decline|withdraw|finalize --caller ADDR --listing ID --offer ID",
		"  dispute        --caller ADDR --listing ID --offer ID --evidence TEXT [--refund N]",
		"  rule           --caller ADDR --dispute ID --outcome seller|buyer [--pay-commission] [--refund N]",
		"  listing        --id ID",
		"  get-offer      --listing ID --offer ID",
		"  get-dispute    --id ID",
		"  events         [--after SEQ] [--limit N]",
	}, "\n")
}

func bindCaller(fs *flag.FlagSet, p *callerParams) {
	fs.StringVar(&p.Caller, "caller", "", "caller bech32 address")
	fs.BoolVar(&p.ViaIdentity, "via-identity", false, "act through the caller's identity proxy")
}

func checkCaller(p callerParams) error {
	if err := required("caller", p.Caller); err != nil {
		return err
	}
	return checkAddress("caller", p.Caller)
}

func runCreateListing(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market create-listing", stderr)
	var params createListingParams
	bindCaller(fs, &params.callerParams)
	fs.StringVar(&params.ContentRef, "content-ref", "", "32-byte hex content reference")
	fs.Uint64Var(&params.Units, "units", 0, "units offered for sale")
	fs.StringVar(&params.Owner, "owner", "", "proceeds recipient (defaults to the caller)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := checkCaller(params.callerParams); err != nil {
		return printError(stderr, err.Error())
	}
	if err := checkContentRef("content-ref", params.ContentRef); err != nil {
		return printError(stderr, err.Error())
	}
	if params.Units == 0 {
		return printError(stderr, "--units must be positive")
	}
	if err := checkAddress("owner", params.Owner); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("market_createListing", params, true, stdout, stderr)
}

func runUpdateListing(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market update-listing", stderr)
	var params updateListingParams
	bindCaller(fs, &params.callerParams)
	fs.Uint64Var(&params.ListingID, "listing", 0, "listing id")
	fs.StringVar(&params.ContentRef, "content-ref", "", "32-byte hex content reference")
	fs.Uint64Var(&params.AdditionalUnits, "add-units", 0, "units to add")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := checkCaller(params.callerParams); err != nil {
		return printError(stderr, err.Error())
	}
	if err := checkContentRef("content-ref", params.ContentRef); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("market_updateListing", params, true, stdout, stderr)
}

func runMakeOffer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market offer", stderr)
	var (
		params      makeOfferParams
		finalizesAt string
		timeout     string
	)
	bindCaller(fs, &params.callerParams)
	fs.Uint64Var(&params.ListingID, "listing", 0, "listing id")
	fs.StringVar(&params.ContentRef, "content-ref", "", "32-byte hex offer terms reference")
	fs.StringVar(&finalizesAt, "finalizes-at", "", "finalization time as +duration, RFC3339 or unix seconds")
	fs.StringVar(&params.Affiliate, "affiliate", "", "optional affiliate address")
	fs.StringVar(&params.Commission, "commission", "", "commission carved from the amount")
	fs.StringVar(&params.Amount, "amount", "", "offer amount in base units (supports 100e18)")
	fs.StringVar(&params.Funding, "funding", "native", "funding rail: native or token")
	fs.StringVar(&params.Token, "token", "", "token symbol for token funding")
	fs.StringVar(&params.Arbitrator, "arbitrator", "", "arbitrator address")
	fs.StringVar(&timeout, "withdraw-timeout", "0s", "delay before the buyer may withdraw an accepted offer")
	fs.Uint64Var(&params.Units, "units", 1, "units requested")
	fs.StringVar(&params.Value, "value", "", "native value attached (defaults to --amount for native funding)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := checkCaller(params.callerParams); err != nil {
		return printError(stderr, err.Error())
	}
	if err := checkContentRef("content-ref", params.ContentRef); err != nil {
		return printError(stderr, err.Error())
	}
	if err := required("amount", params.Amount, "arbitrator", params.Arbitrator); err != nil {
		return printError(stderr, err.Error())
	}
	var err error
	if params.Amount, err = normalizeAmount("amount", params.Amount); err != nil {
		return printError(stderr, err.Error())
	}
	if params.Commission, err = normalizeAmount("commission", params.Commission); err != nil {
		return printError(stderr, err.Error())
	}
	if params.Value, err = normalizeAmount("value", params.Value); err != nil {
		return printError(stderr, err.Error())
	}
	for _, check := range [][2]string{{"arbitrator", params.Arbitrator}, {"affiliate", params.Affiliate}} {
		if err := checkAddress(check[0], check[1]); err != nil {
			return printError(stderr, err.Error())
		}
	}
	switch strings.ToLower(strings.TrimSpace(params.Funding)) {
	case "native":
		params.Funding = "native"
		params.Token = ""
		if params.Value == "" {
			params.Value = params.Amount
		}
	case "token":
		params.Funding = "token"
		if strings.TrimSpace(params.Token) == "" {
			return printError(stderr, "--token is required for token funding")
		}
	default:
		return printError(stderr, "--funding must be native or token")
	}
	if params.FinalizesAt, err = parseTime("finalizes-at", finalizesAt); err != nil {
		return printError(stderr, err.Error())
	}
	dur, err := parseDuration(timeout)
	if err != nil {
		return printError(stderr, "--withdraw-timeout: "+err.Error())
	}
	params.WithdrawTimeout = int64(dur.Seconds())
	return invoke("market_makeOffer", params, true, stdout, stderr)
}

func bindOfferRef(fs *flag.FlagSet, p *offerRefParams) {
	fs.Uint64Var(&p.ListingID, "listing", 0, "listing id")
	fs.Uint64Var(&p.OfferID, "offer", 0, "offer id")
}

func runOfferTransition(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params offerRefParams
	bindCaller(fs, &params.callerParams)
	bindOfferRef(fs, &params)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := checkCaller(params.callerParams); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, true, stdout, stderr)
}

func runDispute(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market dispute", stderr)
	var params disputeParams
	bindCaller(fs, &params.callerParams)
	bindOfferRef(fs, &params.offerRefParams)
	fs.StringVar(&params.Evidence, "evidence", "", "evidence text submitted to the arbitrator")
	fs.StringVar(&params.Refund, "refund", "", "partial refund requested")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := checkCaller(params.callerParams); err != nil {
		return printError(stderr, err.Error())
	}
	var err error
	if params.Refund, err = normalizeAmount("refund", params.Refund); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("market_dispute", params, true, stdout, stderr)
}

// runRuling serves both market rule (direct arbitrator) and arbitrator rule
// (through a registered contract, which requires --contract).
func runRuling(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params rulingParams
	fs.StringVar(&params.Caller, "caller", "", "caller bech32 address")
	if method == "arbitrator_giveRuling" {
		fs.StringVar(&params.Contract, "contract", "", "arbitration contract address")
	}
	fs.Uint64Var(&params.DisputeID, "dispute", 0, "dispute id")
	fs.StringVar(&params.Outcome, "outcome", "", "seller or buyer")
	fs.BoolVar(&params.PayCommission, "pay-commission", false, "route the commission to the affiliate")
	fs.StringVar(&params.Refund, "refund", "", "partial refund to the buyer")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required("caller", params.Caller, "outcome", params.Outcome); err != nil {
		return printError(stderr, err.Error())
	}
	if method == "arbitrator_giveRuling" {
		if err := required("contract", params.Contract); err != nil {
			return printError(stderr, err.Error())
		}
	}
	switch strings.ToLower(strings.TrimSpace(params.Outcome)) {
	case "seller", "buyer":
	default:
		return printError(stderr, "--outcome must be seller or buyer")
	}
	var err error
	if params.Refund, err = normalizeAmount("refund", params.Refund); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, params, true, stdout, stderr)
}

func runGetByID(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var params idParams
	fs.Uint64Var(&params.ID, "id", 0, "record id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return invoke(method, params, false, stdout, stderr)
}

func runGetOffer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market get-offer", stderr)
	var params offerRefParams
	bindOfferRef(fs, &params)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return invoke("market_getOffer", params, false, stdout, stderr)
}

func runListEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("market events", stderr)
	var params listEventsParams
	fs.Uint64Var(&params.After, "after", 0, "return events after this sequence")
	fs.IntVar(&params.Limit, "limit", 100, "maximum events to return")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if params.Limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	return invoke("market_listEvents", params, false, stdout, stderr)
}
