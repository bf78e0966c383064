package rpc

import (
	"fmt"
	"net/http"
	"strings"

	"bazaar/native/vesting"
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
	Address string `json:"address"`
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

func (s *Server) handleArbitratorRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownerParams
	if !decodeParams(w, req, &params) {
		return
	}
	owner, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	contract, err := s.node.RegisterArbitrator(owner)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatContract(contract))
}

func (s *Server) handleArbitratorGiveRuling(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params rulingParams
	if !decodeParams(w, req, &params) {
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("contract: %w", err))
		return
	}
	ruling, err := params.toRuling()
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	caller, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	settlement, err := s.node.ArbitratorGiveRuling(caller, contract, params.DisputeID, ruling)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSettlement(settlement))
}

func (s *Server) handleArbitratorGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	contract, err := s.node.GetArbitrator(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatContract(contract))
}

func (p createGrantParams) toGrant() (vesting.GrantParams, error) {
	beneficiary, err := parseAddress(p.Beneficiary)
	if err != nil {
		return vesting.GrantParams{}, fmt.Errorf("beneficiary: %w", err)
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		return vesting.GrantParams{}, fmt.Errorf("token required")
	}
	cliffAmount, err := parseAmount(p.CliffAmount)
	if err != nil {
		return vesting.GrantParams{}, fmt.Errorf("cliffAmount: %w", err)
	}
	schedule := make([]vesting.Release, len(p.Schedule))
	for i, rel := range p.Schedule {
		amount, err := parseAmount(rel.Amount)
		if err != nil {
			return vesting.GrantParams{}, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		schedule[i] = vesting.Release{Time: rel.Time, Amount: amount}
	}
	return vesting.GrantParams{
		Beneficiary: beneficiary,
		Token:       token,
		Cliff:       p.Cliff,
		CliffAmount: cliffAmount,
		Schedule:    schedule,
		Revocable:   p.Revocable,
	}, nil
}

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createGrantParams
	if !decodeParams(w, req, &params) {
		return
	}
	grant, err := params.toGrant()
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	caller, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	created, err := s.node.CreateGrant(caller, grant)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGrant(created))
}

func (s *Server) handleGetGrant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if !decodeParams(w, req, &params) {
		return
	}
	status, err := s.node.GetGrant(params.ID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGrantStatus(status))
}

func (s *Server) handleVest(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params grantActionParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	released, err := s.node.Vest(caller, params.ID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"released": formatAmount(released)})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params grantActionParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	rev, err := s.node.RevokeGrant(caller, params.ID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"paid":     formatAmount(rev.Paid),
		"returned": formatAmount(rev.Returned),
	})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenQueryParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	balance, err := s.node.TokenBalance(params.Token, addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": formatAddress(addr),
		"token":   strings.ToUpper(strings.TrimSpace(params.Token)),
		"balance": formatAmount(balance),
	})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenQueryParams
	if !decodeParams(w, req, &params) {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("owner: %w", err))
		return
	}
	spender, err := parseAddress(params.Spender)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("spender: %w", err))
		return
	}
	allowance, err := s.node.TokenAllowance(params.Token, owner, spender)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"allowance": formatAmount(allowance)})
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenMoveParams
	if !decodeParams(w, req, &params) {
		return
	}
	spender, err := parseAddress(params.Spender)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("spender: %w", err))
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	owner, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	if err := s.node.TokenApprove(owner, params.Token, spender, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"allowance": formatAmount(amount)})
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tokenMoveParams
	if !decodeParams(w, req, &params) {
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("to: %w", err))
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	from, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	if err := s.node.TokenTransfer(from, params.Token, to, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"transferred": formatAmount(amount)})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceJSON{
		Address: formatAddress(addr),
		Balance: formatAmount(account.Balance),
		Nonce:   account.Nonce,
	})
}

func (s *Server) handleIdentityRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownerParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := s.authorizedCaller(w, r, req, params.Caller)
	if !ok {
		return
	}
	id, err := s.node.RegisterUser(account)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatIdentity(id))
}

func (s *Server) handleIdentityGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	id, err := s.node.IdentityOf(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatIdentity(id))
}
