package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/stake"
)

// Postgres is the concrete StateStore backing this system: every
// table it owns lives in one pool, migrated on construction.
type Postgres struct {
	pool             *pgxpool.Pool
	txnIndex         *txnIndexer
	persistUnknownTx bool
	log              *logrus.Logger
}

// Open connects to dsn, runs the idempotent schema migration, and
// returns a ready StateStore. persistUnknownTx gates the "Integrity"
// fallback row for transactions whose logs decode to zero events.
func Open(ctx context.Context, dsn string, client rpcclient.Client, persistUnknownTx bool, log *logrus.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persist: migrate: %w", err)
	}
	return &Postgres{
		pool:             pool,
		txnIndex:         newTxnIndexer(client),
		persistUnknownTx: persistUnknownTx,
		log:              log,
	}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// PersistEvents implements C11: a strict, idempotent append, one row
// per decoded event, falling back to a single "tx" row carrying the
// raw logs when nothing decoded and the Integrity toggle is on.
func (p *Postgres) PersistEvents(ctx context.Context, tx *domain.Transaction, programID domain.PubKey, events []domain.Event) error {
	blockTime := int64(0)
	if tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}
	txnIdx := p.txnIndex.Resolve(ctx, tx.Slot, tx.Signature)

	if len(events) == 0 {
		if !p.persistUnknownTx {
			return nil
		}
		return p.insertEventRow(ctx, domain.EventRecord{
			Signature:  tx.Signature,
			Slot:       tx.Slot,
			BlockTime:  blockTime,
			ProgramID:  programID,
			EventType:  "tx",
			TxnIndex:   txnIdx,
			EventIndex: 0,
			Logs:       tx.LogMessages,
		})
	}
	for i, ev := range events {
		rec := domain.EventRecord{
			Signature:  tx.Signature,
			Slot:       tx.Slot,
			BlockTime:  blockTime,
			ProgramID:  programID,
			EventType:  ev.Name,
			TxnIndex:   txnIdx,
			EventIndex: i,
			EventData:  ev.Data,
			Logs:       tx.LogMessages,
		}
		if err := p.insertEventRow(ctx, rec); err != nil {
			return err
		}
		p.noteLiquidityEvent(ctx, rec)
	}
	return nil
}

// noteLiquidityEvent advances a pool's latest_liq_event_slot when a
// liquidity add/remove lands, slot-gated like every other derived pool
// field. Best effort: a failure here never blocks the event append.
func (p *Postgres) noteLiquidityEvent(ctx context.Context, rec domain.EventRecord) {
	if rec.EventType != "LiquidityDeposited" && rec.EventType != "LiquidityWithdrawn" {
		return
	}
	pool := eventPoolHint(rec.EventData)
	if pool == "" {
		return
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE dex_pools SET latest_liq_event_slot = $2
		WHERE pool_id = $1 AND (latest_liq_event_slot IS NULL OR latest_liq_event_slot < $2)
	`, string(pool), rec.Slot)
	if err != nil {
		p.log.WithError(err).WithField("pool", pool).Warn("persist: liquidity event slot update failed")
	}
}

// eventPoolHint mirrors the WS hub's payload-peek routing rule for the
// pool id an event belongs to.
func eventPoolHint(data map[string]any) domain.PubKey {
	for _, key := range []string{"pool", "pairId", "poolId"} {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return domain.PubKey(s)
			}
		}
	}
	return ""
}

func (p *Postgres) insertEventRow(ctx context.Context, rec domain.EventRecord) error {
	var data []byte
	if rec.EventData != nil {
		var err error
		data, err = json.Marshal(rec.EventData)
		if err != nil {
			return fmt.Errorf("persist: marshal event data: %w", err)
		}
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dex_events (program_id, slot, txn_index, event_index, signature, block_time, event_type, event_data, logs)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (program_id, slot, txn_index, event_index) DO NOTHING
	`, string(rec.ProgramID), rec.Slot, rec.TxnIndex, rec.EventIndex, string(rec.Signature), rec.BlockTime, rec.EventType, data, rec.Logs)
	if err != nil {
		return fmt.Errorf("persist: insert event: %w", err)
	}
	return nil
}

// UpsertPoolState implements the slot-gated half of C12: the update
// only lands when the incoming slot is newer than what's stored,
// making out-of-order backfill/live delivery safe.
func (p *Postgres) UpsertPoolState(ctx context.Context, programID domain.PubKey, pool *domain.Pool, lastTradeSig domain.Signature) error {
	price := "0"
	if pool.PriceQ64_64 != nil {
		price = pool.PriceQ64_64.String()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dex_pools (pool_id, program_id, base_mint, quote_mint, base_decimals, quote_decimals,
			base_vault, quote_vault, lp_mint, active_bin, last_price_quote_per_base, last_trade_signature, last_update_slot, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
		ON CONFLICT (pool_id) DO UPDATE SET
			base_decimals = EXCLUDED.base_decimals,
			quote_decimals = EXCLUDED.quote_decimals,
			base_vault = EXCLUDED.base_vault,
			quote_vault = EXCLUDED.quote_vault,
			lp_mint = EXCLUDED.lp_mint,
			active_bin = EXCLUDED.active_bin,
			last_price_quote_per_base = EXCLUDED.last_price_quote_per_base,
			last_trade_signature = EXCLUDED.last_trade_signature,
			last_update_slot = EXCLUDED.last_update_slot,
			updated_at = now()
		WHERE dex_pools.last_update_slot IS NULL OR dex_pools.last_update_slot < EXCLUDED.last_update_slot
	`, string(pool.PoolID), string(programID), string(pool.BaseMint), string(pool.QuoteMint), pool.BaseDecimals, pool.QuoteDecimals,
		string(pool.BaseVault), string(pool.QuoteVault), nullableKey(pool.LPMint), pool.ActiveBin, price,
		nullableStr(string(lastTradeSig)), pool.LastUpdateSlot)
	if err != nil {
		return fmt.Errorf("persist: upsert pool state: %w", err)
	}
	return nil
}

// UpdatePoolLiquidity records the reserve-derived liquidity and TVL
// snapshot the fee-vault refresher computes alongside its fee reads.
func (p *Postgres) UpdatePoolLiquidity(ctx context.Context, poolID domain.PubKey, liquidityQuote, tvlLockedQuote *big.Float) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE dex_pools SET liquidity_quote = $2, tvl_locked_quote = $3, updated_at = now()
		WHERE pool_id = $1
	`, string(poolID), bigFloatString(liquidityQuote), bigFloatString(tvlLockedQuote))
	if err != nil {
		return fmt.Errorf("persist: update pool liquidity: %w", err)
	}
	return nil
}

// UpdatePoolFees is not slot-gated: the Fee-Vault Refresher already
// debounces its own reads, so every call here reflects the latest
// balance it fetched.
func (p *Postgres) UpdatePoolFees(ctx context.Context, poolID domain.PubKey, fees domain.FeeUI) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE dex_pools SET creator_fee_ui = $2, holders_fee_ui = $3, nft_fee_ui = $4, updated_at = now()
		WHERE pool_id = $1
	`, string(poolID), bigFloatString(fees.Creator), bigFloatString(fees.Holders), bigFloatString(fees.NFT))
	if err != nil {
		return fmt.Errorf("persist: update pool fees: %w", err)
	}
	return nil
}

// UpsertCandles batches the aggregator's dirty set into one
// round trip, conflict-upserting every (pool, tf, bucketStartSec) row.
func (p *Postgres) UpsertCandles(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO dex_pool_candles (pool_id, tf, bucket_start_sec, open, high, low, close, volume_quote, trades_count, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
			ON CONFLICT (pool_id, tf, bucket_start_sec) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
				volume_quote = EXCLUDED.volume_quote, trades_count = EXCLUDED.trades_count, updated_at = now()
		`, string(c.PoolID), string(c.Timeframe), c.BucketStartSec, bigFloatString(c.Open), bigFloatString(c.High),
			bigFloatString(c.Low), bigFloatString(c.Close), bigFloatString(c.VolumeQuote), c.TradesCount)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range candles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("persist: upsert candles: %w", err)
		}
	}
	return nil
}

// InsertTrade implements the dex_trades half of the store: one row
// per (signature, poolId), idempotent on conflict.
func (p *Postgres) InsertTrade(ctx context.Context, t *domain.Trade) error {
	var blockTime any
	if t.BlockTime != nil {
		blockTime = *t.BlockTime
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dex_trades (signature, pool_id, slot, block_time, "user", in_mint, out_mint, amount_in_raw, amount_out_raw)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (signature, pool_id) DO NOTHING
	`, string(t.Signature), string(t.PoolID), t.Slot, blockTime, string(t.User), string(t.InMint), string(t.OutMint),
		bigString(t.AmountIn), bigString(t.AmountOut))
	if err != nil {
		return fmt.Errorf("persist: insert trade: %w", err)
	}
	return nil
}

func nullableKey(k domain.PubKey) any {
	return nullableStr(string(k))
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- stake.Writer / stake.Reader: C10's sink ---

func (p *Postgres) InsertStakeEvent(ctx context.Context, rec stake.StakeEventRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO streamflow_events (vault_id, signature, owner, slot, block_time, delta_raw, balance_after_raw)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (vault_id, signature, owner) DO NOTHING
	`, string(rec.VaultID), string(rec.Signature), string(rec.Owner), rec.Slot, rec.BlockTime,
		bigString(rec.DeltaRaw), bigString(rec.BalanceAfterRaw))
	if err != nil {
		return fmt.Errorf("persist: insert stake event: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertStake(ctx context.Context, row stake.StakeRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO streamflow_stakes (vault_id, owner, balance_raw)
		VALUES ($1,$2,$3)
		ON CONFLICT (vault_id, owner) DO UPDATE SET balance_raw = EXCLUDED.balance_raw
	`, string(row.VaultID), string(row.Owner), bigString(row.BalanceRaw))
	if err != nil {
		return fmt.Errorf("persist: upsert stake: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteStake(ctx context.Context, vaultID, owner domain.PubKey) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM streamflow_stakes WHERE vault_id = $1 AND owner = $2`, string(vaultID), string(owner))
	if err != nil {
		return fmt.Errorf("persist: delete stake: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateVaultTotals(ctx context.Context, vaultID domain.PubKey, holders int, totalStakedRaw *big.Int) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO streamflow_vaults (vault_id, holders, total_staked_raw, updated_at)
		VALUES ($1,$2,$3, now())
		ON CONFLICT (vault_id) DO UPDATE SET holders = EXCLUDED.holders, total_staked_raw = EXCLUDED.total_staked_raw, updated_at = now()
	`, string(vaultID), holders, bigString(totalStakedRaw))
	if err != nil {
		return fmt.Errorf("persist: update vault totals: %w", err)
	}
	return nil
}

// UpsertNFTStake writes one (nftMint, owner) row. The COALESCEs keep
// the stake-time fields an unstake transition doesn't carry (stake
// account, lock duration, unlock time, pool) from being nulled out by
// a status-only update.
func (p *Postgres) UpsertNFTStake(ctx context.Context, row stake.NFTStakeRow) error {
	var lockDur any
	if row.LockDurationSec > 0 {
		lockDur = row.LockDurationSec
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO nft_stakes (nft_mint, owner, stake_account, status, staked_at_sec, lock_duration_sec, unlock_at_sec, associated_pool)
		VALUES ($1,$2,$3,$4,$5, COALESCE($6, 0),$7,$8)
		ON CONFLICT (nft_mint, owner) DO UPDATE SET
			stake_account = COALESCE(EXCLUDED.stake_account, nft_stakes.stake_account),
			status = EXCLUDED.status,
			staked_at_sec = EXCLUDED.staked_at_sec,
			lock_duration_sec = COALESCE(NULLIF(EXCLUDED.lock_duration_sec, 0), nft_stakes.lock_duration_sec),
			unlock_at_sec = COALESCE(EXCLUDED.unlock_at_sec, nft_stakes.unlock_at_sec),
			associated_pool = COALESCE(EXCLUDED.associated_pool, nft_stakes.associated_pool)
	`, string(row.NFTMint), string(row.Owner), nullableKey(row.StakeAccount), string(row.Status), row.StakedAtSec,
		lockDur, row.UnlockAtSec, nullableKey(row.AssociatedPool))
	if err != nil {
		return fmt.Errorf("persist: upsert nft stake: %w", err)
	}
	return nil
}

func (p *Postgres) LoadStakes(ctx context.Context, vaultID domain.PubKey) ([]stake.StakeRow, error) {
	rows, err := p.pool.Query(ctx, `SELECT owner, balance_raw FROM streamflow_stakes WHERE vault_id = $1`, string(vaultID))
	if err != nil {
		return nil, fmt.Errorf("persist: load stakes: %w", err)
	}
	defer rows.Close()
	var out []stake.StakeRow
	for rows.Next() {
		var owner, balance string
		if err := rows.Scan(&owner, &balance); err != nil {
			return nil, fmt.Errorf("persist: scan stake: %w", err)
		}
		bal, ok := new(big.Int).SetString(balance, 10)
		if !ok {
			bal = big.NewInt(0)
		}
		out = append(out, stake.StakeRow{VaultID: vaultID, Owner: domain.PubKey(owner), BalanceRaw: bal})
	}
	return out, rows.Err()
}

func (p *Postgres) LoadSeenSignatures(ctx context.Context, vaultID domain.PubKey) (map[domain.Signature]struct{}, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT signature FROM streamflow_events WHERE vault_id = $1`, string(vaultID))
	if err != nil {
		return nil, fmt.Errorf("persist: load seen signatures: %w", err)
	}
	defer rows.Close()
	out := make(map[domain.Signature]struct{})
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("persist: scan signature: %w", err)
		}
		out[domain.Signature(sig)] = struct{}{}
	}
	return out, rows.Err()
}

func (p *Postgres) LoadActiveNFTStakes(ctx context.Context) ([]stake.NFTStakeRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT nft_mint, owner, stake_account, status, staked_at_sec, lock_duration_sec, unlock_at_sec, associated_pool
		FROM nft_stakes WHERE status = $1 AND unlock_at_sec IS NOT NULL
	`, string(stake.NFTStatusActive))
	if err != nil {
		return nil, fmt.Errorf("persist: load active nft stakes: %w", err)
	}
	defer rows.Close()
	var out []stake.NFTStakeRow
	for rows.Next() {
		var mint, owner, status string
		var stakeAccount, pool *string
		var stakedAt, lockDur int64
		var unlockAt *int64
		if err := rows.Scan(&mint, &owner, &stakeAccount, &status, &stakedAt, &lockDur, &unlockAt, &pool); err != nil {
			return nil, fmt.Errorf("persist: scan nft stake: %w", err)
		}
		row := stake.NFTStakeRow{
			NFTMint:         domain.PubKey(mint),
			Owner:           domain.PubKey(owner),
			Status:          stake.NFTStakeStatus(status),
			StakedAtSec:     stakedAt,
			LockDurationSec: lockDur,
			UnlockAtSec:     unlockAt,
		}
		if stakeAccount != nil {
			row.StakeAccount = domain.PubKey(*stakeAccount)
		}
		if pool != nil {
			row.AssociatedPool = domain.PubKey(*pool)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LastEventSlot is the boot watermark for missed-transaction recovery:
// the highest slot any persisted event for this vault carries.
func (p *Postgres) LastEventSlot(ctx context.Context, vaultID domain.PubKey) (uint64, bool, error) {
	var slot *uint64
	err := p.pool.QueryRow(ctx, `SELECT max(slot) FROM streamflow_events WHERE vault_id = $1`, string(vaultID)).Scan(&slot)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("persist: last event slot: %w", err)
	}
	if slot == nil {
		return 0, false, nil
	}
	return *slot, true, nil
}

// --- reads for internal/httpapi ---

func (p *Postgres) Pool(ctx context.Context, poolID domain.PubKey) (*domain.Pool, error) {
	var (
		baseMint, quoteMint, baseVault, quoteVault string
		lpMint                                     *string
		baseDecimals, quoteDecimals                int
		activeBin                                  int32
		price                                       string
		lastUpdateSlot                              *uint64
	)
	err := p.pool.QueryRow(ctx, `
		SELECT base_mint, quote_mint, base_decimals, quote_decimals, base_vault, quote_vault, lp_mint, active_bin,
			last_price_quote_per_base, last_update_slot
		FROM dex_pools WHERE pool_id = $1
	`, string(poolID)).Scan(&baseMint, &quoteMint, &baseDecimals, &quoteDecimals, &baseVault, &quoteVault, &lpMint,
		&activeBin, &price, &lastUpdateSlot)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: read pool: %w", err)
	}
	priceInt, _ := new(big.Float).SetString(price)
	priceRaw, _ := priceInt.Int(nil)
	out := &domain.Pool{
		PoolID:        poolID,
		BaseMint:      domain.PubKey(baseMint),
		QuoteMint:     domain.PubKey(quoteMint),
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
		BaseVault:     domain.PubKey(baseVault),
		QuoteVault:    domain.PubKey(quoteVault),
		ActiveBin:     activeBin,
		PriceQ64_64:   priceRaw,
	}
	if lpMint != nil {
		out.LPMint = domain.PubKey(*lpMint)
	}
	if lastUpdateSlot != nil {
		out.LastUpdateSlot = *lastUpdateSlot
	}
	return out, nil
}

func (p *Postgres) RecentTrades(ctx context.Context, poolID domain.PubKey, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT signature, slot, block_time, "user", in_mint, out_mint, amount_in_raw, amount_out_raw
		FROM dex_trades WHERE pool_id = $1 ORDER BY slot DESC LIMIT $2
	`, string(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("persist: recent trades: %w", err)
	}
	defer rows.Close()
	var out []*domain.Trade
	for rows.Next() {
		var (
			sig, user, inMint, outMint, amtIn, amtOut string
			slot                                       uint64
			blockTime                                  *int64
		)
		if err := rows.Scan(&sig, &slot, &blockTime, &user, &inMint, &outMint, &amtIn, &amtOut); err != nil {
			return nil, fmt.Errorf("persist: scan trade: %w", err)
		}
		in, _ := new(big.Int).SetString(amtIn, 10)
		out2, _ := new(big.Int).SetString(amtOut, 10)
		out = append(out, &domain.Trade{
			Signature: domain.Signature(sig),
			Slot:      slot,
			BlockTime: blockTime,
			PoolID:    poolID,
			User:      domain.PubKey(user),
			InMint:    domain.PubKey(inMint),
			OutMint:   domain.PubKey(outMint),
			AmountIn:  in,
			AmountOut: out2,
		})
	}
	return out, rows.Err()
}

func (p *Postgres) RecentCandles(ctx context.Context, poolID domain.PubKey, tf domain.Timeframe, limit int) ([]*domain.Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := p.pool.Query(ctx, `
		SELECT bucket_start_sec, open, high, low, close, volume_quote, trades_count
		FROM dex_pool_candles WHERE pool_id = $1 AND tf = $2 ORDER BY bucket_start_sec DESC LIMIT $3
	`, string(poolID), string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("persist: recent candles: %w", err)
	}
	defer rows.Close()
	var out []*domain.Candle
	for rows.Next() {
		var (
			bucket                                  int64
			o, h, l, c, vol                          string
			trades                                   int
		)
		if err := rows.Scan(&bucket, &o, &h, &l, &c, &vol, &trades); err != nil {
			return nil, fmt.Errorf("persist: scan candle: %w", err)
		}
		parse := func(s string) *big.Float { f, _ := new(big.Float).SetString(s); return f }
		out = append(out, &domain.Candle{
			PoolID:         poolID,
			Timeframe:      tf,
			BucketStartSec: bucket,
			Open:           parse(o),
			High:           parse(h),
			Low:            parse(l),
			Close:          parse(c),
			VolumeQuote:    parse(vol),
			TradesCount:    trades,
		})
	}
	// oldest-first, matching the in-memory reader's contract.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (p *Postgres) ListEvents(ctx context.Context, filter EventFilter) ([]domain.EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT program_id, slot, txn_index, event_index, signature, block_time, event_type, event_data, logs FROM dex_events WHERE 1=1`
	args := []any{}
	if filter.ProgramID != "" {
		args = append(args, string(filter.ProgramID))
		query += fmt.Sprintf(" AND program_id = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY slot DESC, txn_index DESC, event_index DESC LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("persist: list events: %w", err)
	}
	defer rows.Close()
	var out []domain.EventRecord
	for rows.Next() {
		var (
			programID, sig, eventType string
			slot                       uint64
			txnIndex, eventIndex       int
			blockTime                  int64
			rawData                    []byte
			logs                       []string
		)
		if err := rows.Scan(&programID, &slot, &txnIndex, &eventIndex, &sig, &blockTime, &eventType, &rawData, &logs); err != nil {
			return nil, fmt.Errorf("persist: scan event: %w", err)
		}
		var data map[string]any
		if len(rawData) > 0 {
			_ = json.Unmarshal(rawData, &data)
		}
		out = append(out, domain.EventRecord{
			Signature:  domain.Signature(sig),
			Slot:       slot,
			BlockTime:  blockTime,
			ProgramID:  domain.PubKey(programID),
			EventType:  eventType,
			TxnIndex:   txnIndex,
			EventIndex: eventIndex,
			EventData:  data,
			Logs:       logs,
		})
	}
	return out, rows.Err()
}
