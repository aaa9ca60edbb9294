package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// StellarClient is a TransferClient backed by a Stellar Horizon instance.
// Signing secrets are registered per source account; transfers from an
// unregistered account fail before touching the network.
type StellarClient struct {
	client            *horizonclient.Client
	networkPassphrase string
	assetIssuer       string
	signers           map[string]string // account address -> signing secret
}

func NewStellarClient(horizonURL, networkPassphrase, assetIssuer string) *StellarClient {
	return &StellarClient{
		client:            &horizonclient.Client{HorizonURL: horizonURL},
		networkPassphrase: networkPassphrase,
		assetIssuer:       assetIssuer,
		signers:           make(map[string]string),
	}
}

// RegisterSigner stores the signing secret for a source account.
func (s *StellarClient) RegisterSigner(account, secret string) {
	s.signers[account] = secret
}

// Transfer builds, signs and (when commit is true) submits a payment from one
// account to another. Meta entries are carried as a text memo so transfers
// remain attributable to the product that triggered them.
func (s *StellarClient) Transfer(from, to string, amount decimal.Decimal, currency string, meta map[string]string, commit bool) (string, error) {
	secret, ok := s.signers[from]
	if !ok {
		return "", fmt.Errorf("no signing secret registered for account %s", from)
	}
	sourceKP, err := keypair.ParseFull(secret)
	if err != nil {
		return "", fmt.Errorf("invalid signing secret for account %s: %w", from, err)
	}

	sourceAccount, err := s.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: from,
	})
	if err != nil {
		return "", fmt.Errorf("failed to load source account: %w", err)
	}

	var asset txnbuild.Asset
	if currency == "XLM" {
		asset = txnbuild.NativeAsset{}
	} else {
		asset = txnbuild.CreditAsset{Code: currency, Issuer: s.assetIssuer}
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: to,
				Amount:      amount.StringFixed(7),
				Asset:       asset,
			},
		},
	}
	if memo := transferMemo(meta); memo != "" {
		params.Memo = txnbuild.MemoText(memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	tx, err = tx.Sign(s.networkPassphrase, sourceKP)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if !commit {
		xdr, err := tx.Base64()
		if err != nil {
			return "", fmt.Errorf("failed to encode transaction to XDR: %w", err)
		}
		return xdr, nil
	}

	txResp, err := s.client.SubmitTransaction(tx)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}

	return txResp.Hash, nil
}

// ValidateAccount checks that an account exists on the network.
func (s *StellarClient) ValidateAccount(accountID string) error {
	_, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return fmt.Errorf("invalid or non-existent account: %w", err)
	}
	return nil
}

// transferMemo renders transfer metadata into the 28 bytes a text memo
// allows. The product id is the part worth keeping when space runs out.
func transferMemo(meta map[string]string) string {
	if meta == nil {
		return ""
	}
	memo := meta["type"]
	if id, ok := meta["product_id"]; ok {
		memo = memo + "#" + id
	}
	if len(memo) > 28 {
		memo = memo[len(memo)-28:]
	}
	return memo
}
