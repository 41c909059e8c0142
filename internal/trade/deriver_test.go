package trade

import (
	"math/big"
	"testing"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

func keys() domain.PoolKeys {
	return domain.PoolKeys{
		PoolID:     "pool1",
		BaseMint:   "base-mint",
		QuoteMint:  "quote-mint",
		BaseVault:  "base-vault",
		QuoteVault: "quote-vault",
	}
}

func tx(accounts []domain.PubKey, pre, post []domain.TokenBalance) *domain.Transaction {
	return &domain.Transaction{
		Signature:    "sig1",
		Slot:         100,
		AccountKeys:  accounts,
		PreBalances:  pre,
		PostBalances: post,
	}
}

func TestDeriveBaseInQuoteOut(t *testing.T) {
	accounts := []domain.PubKey{"payer", "base-vault", "quote-vault"}
	pre := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1000"},
		{AccountIndex: 2, AmountAtoms: "2000"},
	}
	post := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1100"}, // base vault increased: user sent base in
		{AccountIndex: 2, AmountAtoms: "1800"}, // quote vault decreased: user received quote
	}
	trade, ok := Derive(tx(accounts, pre, post), keys())
	if !ok {
		t.Fatal("expected a derived trade")
	}
	if trade.InMint != "base-mint" || trade.OutMint != "quote-mint" {
		t.Fatalf("got in=%s out=%s", trade.InMint, trade.OutMint)
	}
	if trade.AmountIn.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("got amountIn %s, want 100", trade.AmountIn)
	}
	if trade.AmountOut.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("got amountOut %s, want 200", trade.AmountOut)
	}
	if trade.User != "payer" {
		t.Fatalf("got user %s, want payer", trade.User)
	}
}

func TestDeriveQuoteInBaseOut(t *testing.T) {
	accounts := []domain.PubKey{"payer", "base-vault", "quote-vault"}
	pre := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1000"},
		{AccountIndex: 2, AmountAtoms: "2000"},
	}
	post := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "900"},
		{AccountIndex: 2, AmountAtoms: "2300"},
	}
	trade, ok := Derive(tx(accounts, pre, post), keys())
	if !ok {
		t.Fatal("expected a derived trade")
	}
	if trade.InMint != "quote-mint" || trade.OutMint != "base-mint" {
		t.Fatalf("got in=%s out=%s", trade.InMint, trade.OutMint)
	}
}

func TestDeriveNoVaultTouchIsNotASwap(t *testing.T) {
	accounts := []domain.PubKey{"payer", "other-vault"}
	_, ok := Derive(tx(accounts, nil, nil), keys())
	if ok {
		t.Fatal("expected no trade when neither vault is referenced")
	}
}

func TestDeriveBothVaultsIncreasedIsLiquidityNotSwap(t *testing.T) {
	accounts := []domain.PubKey{"payer", "base-vault", "quote-vault"}
	pre := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1000"},
		{AccountIndex: 2, AmountAtoms: "2000"},
	}
	post := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1100"},
		{AccountIndex: 2, AmountAtoms: "2200"},
	}
	_, ok := Derive(tx(accounts, pre, post), keys())
	if ok {
		t.Fatal("expected no trade when both vaults moved the same direction")
	}
}

func TestDeriveZeroDeltaIsNotASwap(t *testing.T) {
	accounts := []domain.PubKey{"payer", "base-vault", "quote-vault"}
	bal := []domain.TokenBalance{
		{AccountIndex: 1, AmountAtoms: "1000"},
		{AccountIndex: 2, AmountAtoms: "2000"},
	}
	_, ok := Derive(tx(accounts, bal, bal), keys())
	if ok {
		t.Fatal("expected no trade when neither vault balance changed")
	}
}

func TestDeriveNoAccountKeysRejected(t *testing.T) {
	accounts := []domain.PubKey{}
	pre := []domain.TokenBalance{{AccountIndex: 1, AmountAtoms: "1000"}}
	post := []domain.TokenBalance{{AccountIndex: 1, AmountAtoms: "1100"}}
	_, ok := Derive(tx(accounts, pre, post), keys())
	if ok {
		t.Fatal("expected no trade when the transaction has no account keys")
	}
}
