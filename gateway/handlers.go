package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/signers"
)

type importAccountRequest struct {
	SecretKey string `json:"secretKey" validate:"required"`
}

type fundAccountRequest struct {
	PublicKey string `json:"publicKey" validate:"required"`
}

type fundAccountResponse struct {
	PublicKey string `json:"publicKey"`
	Funded    bool   `json:"funded"`
}

type paymentRequest struct {
	SenderSecretKey   string      `json:"senderSecretKey" validate:"required"`
	ReceiverPublicKey string      `json:"receiverPublicKey" validate:"required"`
	Amount            decimalText `json:"amount" validate:"required"`
	Asset             string      `json:"asset"`
	Issuer            string      `json:"issuer"`
	Memo              string      `json:"memo"`
}

type createAssetRequest struct {
	AssetCode       string `json:"assetCode" validate:"required"`
	IssuerPublicKey string `json:"issuerPublicKey" validate:"required"`
}

type createAssetResponse struct {
	AssetCode string `json:"assetCode"`
	Issuer    string `json:"issuer"`
	AssetType string `json:"assetType"`
}

type trustAssetRequest struct {
	SecretKey       string      `json:"secretKey" validate:"required"`
	AssetCode       string      `json:"assetCode" validate:"required"`
	IssuerPublicKey string      `json:"issuerPublicKey" validate:"required"`
	Limit           decimalText `json:"limit"`
}

type issueAssetRequest struct {
	IssuerSecretKey      string      `json:"issuerSecretKey" validate:"required"`
	DestinationPublicKey string      `json:"destinationPublicKey" validate:"required"`
	AssetCode            string      `json:"assetCode" validate:"required"`
	Amount               decimalText `json:"amount" validate:"required"`
}

// handleCreateAccount generates and funds a new account. If funding fails the
// generated keys are still returned in the error body.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	kp, err := s.accounts.CreateAccount(r.Context())
	if err != nil {
		status, body := errorBody(err)
		body.PublicKey = kp.PublicKey
		body.SecretKey = kp.SecretKey
		s.logFailure(r, status, err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, kp)
}

func (s *Server) handleImportAccount(w http.ResponseWriter, r *http.Request) {
	var req importAccountRequest
	if err := s.decode(r, &req, "Secret key is required"); err != nil {
		s.writeError(w, r, err)
		return
	}

	kp, err := s.accounts.ImportAccount(req.SecretKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kp)
}

func (s *Server) handleFundAccount(w http.ResponseWriter, r *http.Request) {
	var req fundAccountRequest
	if err := s.decode(r, &req, "Public key is required"); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.accounts.FundAccount(r.Context(), req.PublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fundAccountResponse{PublicKey: req.PublicKey, Funded: true})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	details, err := s.accounts.GetAccountDetails(r.Context(), chi.URLParam(r, "publicKey"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := s.decode(r, &req, "Missing required parameters"); err != nil {
		s.writeError(w, r, err)
		return
	}

	signer, err := signers.FromSecret(req.SenderSecretKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.payments.Pay(r.Context(), payment.PaymentRequest{
		Signer:      signer,
		Destination: req.ReceiverPublicKey,
		Amount:      string(req.Amount),
		Asset:       req.Asset,
		Issuer:      req.Issuer,
		Memo:        req.Memo,
	})
	s.respondTransaction(w, r, "payment", result, err)
}

// handleCreateAsset validates an asset definition. Nothing is written to the ledger:
// the asset comes into existence when its issuer first pays it out.
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := s.decode(r, &req, "Asset code and issuer public key are required"); err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := stellarpay.NewAsset(req.AssetCode, req.IssuerPublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createAssetResponse{
		AssetCode: asset.Code,
		Issuer:    asset.Issuer,
		AssetType: asset.Type(),
	})
}

func (s *Server) handleTrustAsset(w http.ResponseWriter, r *http.Request) {
	var req trustAssetRequest
	if err := s.decode(r, &req, "Missing required parameters"); err != nil {
		s.writeError(w, r, err)
		return
	}

	signer, err := signers.FromSecret(req.SecretKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset, err := stellarpay.NewAsset(req.AssetCode, req.IssuerPublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.payments.EstablishTrust(r.Context(), signer, asset, string(req.Limit))
	s.respondTransaction(w, r, "change_trust", result, err)
}

func (s *Server) handleIssueAsset(w http.ResponseWriter, r *http.Request) {
	var req issueAssetRequest
	if err := s.decode(r, &req, "Missing required parameters"); err != nil {
		s.writeError(w, r, err)
		return
	}

	issuer, err := signers.FromSecret(req.IssuerSecretKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.payments.IssueAsset(r.Context(), issuer, req.DestinationPublicKey, req.AssetCode, string(req.Amount))
	s.respondTransaction(w, r, "issue", result, err)
}

func (s *Server) respondTransaction(w http.ResponseWriter, r *http.Request, kind string, result *stellarpay.TransactionResult, err error) {
	s.metrics.transaction(kind, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
