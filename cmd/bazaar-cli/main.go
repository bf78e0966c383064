package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"bazaar/cmd/internal/secret"
)

const (
	rpcURLEnv     = "BAZAAR_RPC_URL"
	rpcTokenEnv   = "BAZAAR_RPC_TOKEN"
	keystorePass  = "BAZAAR_KEYSTORE_PASS"
	defaultRPCURL = "http://localhost:8545"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var (
	rpcEndpoint    = defaultRPCEndpoint()
	idempotencyKey string
	tokenSource    = secret.NewSource(rpcTokenEnv, "RPC bearer token")
	passSource     = secret.NewSource(keystorePass, "keystore passphrase")
	httpClient     = &http.Client{Timeout: 30 * time.Second}
	rpcCall        = callRPC
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "market":
		return runMarketCommand(args[1:], stdout, stderr)
	case "arbitrator":
		return runArbitratorCommand(args[1:], stdout, stderr)
	case "vesting":
		return runVestingCommand(args[1:], stdout, stderr)
	case "token":
		return runTokenCommand(args[1:], stdout, stderr)
	case "identity":
		return runIdentityCommand(args[1:], stdout, stderr)
	case "balance":
		return runBalance(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: bazaar-cli [--rpc URL] [--idempotency-key KEY] <command> [flags]",
		"",
		"Commands:",
		"  market      create-listing | update-listing | offer | accept | decline | withdraw | finalize | dispute | rule | listing | get-offer | get-dispute | events",
		"  arbitrator  register | rule | get",
		"  vesting     create | get | vest | revoke",
		"  token       balance | allowance | approve | transfer",
		"  identity    register | get",
		"  balance     --address ADDR",
		"  keygen      --out FILE",
		"  address     --keystore FILE",
		"",
		"Mutating calls authenticate with " + rpcTokenEnv + " (or an interactive prompt).",
	}, "\n")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return defaultRPCURL
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--idempotency-key":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			setGlobal(arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--rpc="):
			setGlobal("--rpc", strings.TrimPrefix(arg, "--rpc="))
		case strings.HasPrefix(arg, "--idempotency-key="):
			setGlobal("--idempotency-key", strings.TrimPrefix(arg, "--idempotency-key="))
		default:
			return append(out, args[i:]...), nil
		}
	}
	return out, nil
}

func setGlobal(name, value string) {
	switch name {
	case "--rpc":
		rpcEndpoint = strings.TrimSpace(value)
	case "--idempotency-key":
		idempotencyKey = strings.TrimSpace(value)
	}
}

// callRPC posts one JSON-RPC request. Mutating calls carry the bearer token
// and an Idempotency-Key, generated when none was supplied.
func callRPC(method string, params interface{}, mutating bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if mutating {
		token, err := tokenSource.Get()
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
		key := idempotencyKey
		if key == "" {
			key = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

// invoke performs the call and pretty-prints the result.
func invoke(method string, params interface{}, mutating bool, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, mutating)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", rpcErr)
		return 1
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(result))
		return 0
	}
	fmt.Fprintln(stdout, pretty.String())
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(stderr io.Writer, msg string) int {
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	return 1
}

// parseFlags parses args and rejects stray positional arguments.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

// required takes name, value pairs and reports the first empty flag.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("--%s is required", pairs[i])
		}
	}
	return nil
}
