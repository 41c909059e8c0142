package poolcache

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// Pool account layout, a byte-packed record: public-key
// fields first, then fixed-point price (Q64.64), totals, bin step,
// decimals and flags.
//
//	[0:8)    discriminator (unchecked here; the account is already
//	         known to be a pool by virtue of being looked up by id)
//	[8:40)   baseMint
//	[40:72)  quoteMint
//	[72:104) baseVault
//	[104:136) quoteVault
//	[136:168) lpMint
//	[168:200) creatorFeeVault
//	[200:232) holdersFeeVault
//	[232:264) nftFeeVault
//	[264:280) priceQ64_64, little-endian u128
//	[280:282) binStepBps, little-endian u16
//	[282:286) activeBin, little-endian i32
//	[286:294) lastUpdateSlot, little-endian u64
//	[294]     baseDecimals
//	[295]     quoteDecimals
const poolAccountLen = 296

// DecodePoolAccount parses the fixed-layout pool account blob into a
// domain.Pool.
func DecodePoolAccount(poolID domain.PubKey, raw []byte) (*domain.Pool, error) {
	if len(raw) < poolAccountLen {
		return nil, fmt.Errorf("poolcache: pool account too short: %d < %d", len(raw), poolAccountLen)
	}

	p := &domain.Pool{
		PoolID:          poolID,
		BaseMint:        readPubkey(raw, 8),
		QuoteMint:       readPubkey(raw, 40),
		BaseVault:       readPubkey(raw, 72),
		QuoteVault:      readPubkey(raw, 104),
		LPMint:          readPubkey(raw, 136),
		CreatorFeeVault: readPubkey(raw, 168),
		HoldersFeeVault: readPubkey(raw, 200),
		NFTFeeVault:     readPubkey(raw, 232),
		PriceQ64_64:     readU128(raw, 264),
		BinStepBps:      binary.LittleEndian.Uint16(raw[280:282]),
		ActiveBin:       int32(binary.LittleEndian.Uint32(raw[282:286])),
		LastUpdateSlot:  binary.LittleEndian.Uint64(raw[286:294]),
		BaseDecimals:    int(raw[294]),
		QuoteDecimals:   int(raw[295]),
	}

	if p.BaseMint >= p.QuoteMint {
		return nil, fmt.Errorf("poolcache: pool %s violates canonical base<quote ordering", poolID)
	}
	if p.BaseDecimals < 0 || p.BaseDecimals > 18 || p.QuoteDecimals < 0 || p.QuoteDecimals > 18 {
		return nil, fmt.Errorf("poolcache: pool %s has out-of-range decimals", poolID)
	}
	return p, nil
}

func readPubkey(raw []byte, offset int) domain.PubKey {
	return domain.PubKey(base58.Encode(raw[offset : offset+32]))
}

func readU128(raw []byte, offset int) *big.Int {
	// little-endian 128-bit unsigned integer
	lo := binary.LittleEndian.Uint64(raw[offset : offset+8])
	hi := binary.LittleEndian.Uint64(raw[offset+8 : offset+16])
	out := new(big.Int).SetUint64(hi)
	out.Lsh(out, 64)
	out.Or(out, new(big.Int).SetUint64(lo))
	return out
}

// mintDecimalsOffset is the byte offset of the decimals field in the
// standard SPL-token mint account layout (82 bytes total).
const (
	mintDecimalsOffset = 44
	mintAccountLen      = 82
)

// DecodeMintDecimals extracts the decimals field from a token mint
// account's raw bytes.
func DecodeMintDecimals(raw []byte) (int, error) {
	if len(raw) < mintAccountLen {
		return 0, fmt.Errorf("poolcache: mint account too short: %d < %d", len(raw), mintAccountLen)
	}
	return int(raw[mintDecimalsOffset]), nil
}

// Standard SPL-token token-account layout: mint at [0:32), owner at
// [32:64), amount as a little-endian u64 at [64:72).
const (
	tokenAccountLen       = 165
	tokenAccountMintOff   = 0
	tokenAccountAmountOff = 64
)

// DecodeTokenAccount extracts the mint and raw amount from a
// token-account blob, used by the fee-vault refresher to read vault
// balances directly rather than through an RPC's UI-amount field.
func DecodeTokenAccount(raw []byte) (mint domain.PubKey, amount *big.Int, err error) {
	if len(raw) < tokenAccountLen {
		return "", nil, fmt.Errorf("poolcache: token account too short: %d < %d", len(raw), tokenAccountLen)
	}
	mint = readPubkey(raw, tokenAccountMintOff)
	amount = new(big.Int).SetUint64(binary.LittleEndian.Uint64(raw[tokenAccountAmountOff : tokenAccountAmountOff+8]))
	return mint, amount, nil
}
