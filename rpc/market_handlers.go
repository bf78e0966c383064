package rpc

import (
	"fmt"
	"net/http"

	"bazaar/core"
	"bazaar/native/marketplace"
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

// authorizedCaller parses the caller address and checks the request
// credentials may act for it.
func (s *Server) authorizedCaller(w http.ResponseWriter, r *http.Request, req *RPCRequest, raw string) ([20]byte, bool) {
	caller, err := parseAddress(raw)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("caller: %w", err))
		return [20]byte{}, false
	}
	if status, authErr := s.authorize(r, caller); authErr != nil {
		writeError(w, status, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return [20]byte{}, false
	}
	return caller, true
}

func (s *Server) nodeCaller(w http.ResponseWriter, r *http.Request, req *RPCRequest, p callerParams) (core.Caller, bool) {
	addr, ok := s.authorizedCaller(w, r, req, p.Caller)
	if !ok {
		return core.Caller{}, false
	}
	return core.Caller{Address: addr, ViaIdentity: p.ViaIdentity}, true
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createListingParams
	if !decodeParams(w, req, &params) {
		return
	}
	contentRef, err := parseContentRef(params.ContentRef)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	listing := marketplace.ListingParams{ContentRef: contentRef, Units: params.Units}
	if params.Owner != "" {
		owner, err := parseAddress(params.Owner)
		if err != nil {
			invalidParams(w, req, fmt.Errorf("owner: %w", err))
			return
		}
		listing.Owner = &owner
	}
	caller, ok := s.nodeCaller(w, r, req, params.callerParams)
	if !ok {
		return
	}
	created, err := s.node.CreateListing(caller, listing)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(created))
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params updateListingParams
	if !decodeParams(w, req, &params) {
		return
	}
	contentRef, err := parseContentRef(params.ContentRef)
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	caller, ok := s.nodeCaller(w, r, req, params.callerParams)
	if !ok {
		return
	}
	updated, err := s.node.UpdateListing(caller, params.ListingID, contentRef, params.AdditionalUnits)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(updated))
}

func (p makeOfferParams) toOffer() (marketplace.OfferParams, error) {
	contentRef, err := parseContentRef(p.ContentRef)
	if err != nil {
		return marketplace.OfferParams{}, err
	}
	amount, err := parsePositiveAmount(p.Amount)
	if err != nil {
		return marketplace.OfferParams{}, fmt.Errorf("amount: %w", err)
	}
	commission, err := parseAmount(p.Commission)
	if err != nil {
		return marketplace.OfferParams{}, fmt.Errorf("commission: %w", err)
	}
	attached, err := parseAmount(p.Value)
	if err != nil {
		return marketplace.OfferParams{}, fmt.Errorf("value: %w", err)
	}
	affiliate, err := parseOptionalAddress(p.Affiliate)
	if err != nil {
		return marketplace.OfferParams{}, fmt.Errorf("affiliate: %w", err)
	}
	arb, err := parseAddress(p.Arbitrator)
	if err != nil {
		return marketplace.OfferParams{}, fmt.Errorf("arbitrator: %w", err)
	}
	funding, err := parseFunding(p.Funding, p.Token)
	if err != nil {
		return marketplace.OfferParams{}, err
	}
	return marketplace.OfferParams{
		ListingID:       p.ListingID,
		ContentRef:      contentRef,
		FinalizesAt:     p.FinalizesAt,
		Affiliate:       affiliate,
		Commission:      commission,
		Amount:          amount,
		Funding:         funding,
		Arbitrator:      arb,
		WithdrawTimeout: p.WithdrawTimeout,
		Units:           p.Units,
		Attached:        attached,
	}, nil
}

func (s *Server) handleMakeOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params makeOfferParams
	if !decodeParams(w, req, &params) {
		return
	}
	offer, err := params.toOffer()
	if err != nil {
		invalidParams(w, req, err)
		return
	}
	caller, ok := s.nodeCaller(w, r, req, params.callerParams)
	if !ok {
		return
	}
	created, err := s.node.MakeOffer(caller, offer)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatOffer(created))
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleOfferTransition(w, r, req, s.node.AcceptOffer)
}

func (s *Server) handleDeclineOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleOfferTransition(w, r, req, s.node.DeclineOffer)
}

func (s *Server) handleWithdrawOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleOfferTransition(w, r, req, s.node.WithdrawOffer)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleOfferTransition(w, r, req, s.node.Finalize)
}

func (s *Server) handleOfferTransition(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(core.Caller, uint64, uint64) (*marketplace.Settlement, error)) {
	var params offerRefParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.nodeCaller(w, r, req, params.callerParams)
	if !ok {
		return
	}
	settlement, err := fn(caller, params.ListingID, params.OfferID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSettlement(settlement))
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params disputeParams
	if !decodeParams(w, req, &params) {
		return
	}
	refund, err := parseAmount(params.Refund)
	if err != nil {
		invalidParams(w, req, fmt.Errorf("refund: %w", err))
		return
	}
	caller, ok := s.nodeCaller(w, r, req, params.callerParams)
	if !ok {
		return
	}
	dispute, err := s.node.Dispute(caller, params.ListingID, params.OfferID, params.Evidence, refund)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDispute(dispute))
}

func (p rulingParams) toRuling() (marketplace.Ruling, error) {
	outcome, err := marketplace.ParseOutcome(p.Outcome)
	if err != nil {
		return marketplace.Ruling{}, err
	}
	refund, err := parseAmount(p.Refund)
	if err != nil {
		return marketplace.Ruling{}, fmt.Errorf("refund: %w", err)
	}
	return marketplace.Ruling{Outcome: outcome, PayCommission: p.PayCommission, Refund: refund}, nil
}

func (s *Server) handleGiveRuling(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params rulingParams
	if !decodeParams(w, req, &params) {
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
	settlement, err := s.node.GiveRuling(caller, params.DisputeID, ruling)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSettlement(settlement))
}

func (s *Server) handleGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if !decodeParams(w, req, &params) {
		return
	}
	listing, err := s.node.GetListing(params.ID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleGetOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerRefParams
	if !decodeParams(w, req, &params) {
		return
	}
	offer, err := s.node.GetOffer(params.ListingID, params.OfferID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatOffer(offer))
}

func (s *Server) handleGetDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if !decodeParams(w, req, &params) {
		return
	}
	dispute, err := s.node.GetDispute(params.ID)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDispute(dispute))
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listEventsParams
	if len(req.Params) > 0 && !decodeParams(w, req, &params) {
		return
	}
	records, err := s.node.Events(params.After, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	next := params.After
	if len(records) > 0 {
		next = records[len(records)-1].Sequence
	}
	writeResult(w, req.ID, eventsJSON{Events: records, Next: next})
}
