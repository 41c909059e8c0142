package persist

// schemaDDL creates every table this system owns if it does not
// already exist. Amounts are stored as NUMERIC so no
// arbitrary-precision value is ever truncated by the driver.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS dex_pools (
	pool_id                  TEXT PRIMARY KEY,
	program_id               TEXT NOT NULL,
	base_mint                TEXT NOT NULL,
	quote_mint               TEXT NOT NULL,
	base_decimals            INT NOT NULL,
	quote_decimals           INT NOT NULL,
	base_vault               TEXT NOT NULL,
	quote_vault              TEXT NOT NULL,
	lp_mint                  TEXT,
	active_bin               INT NOT NULL DEFAULT 0,
	last_price_quote_per_base NUMERIC NOT NULL DEFAULT 0,
	last_trade_signature     TEXT,
	liquidity_quote          NUMERIC NOT NULL DEFAULT 0,
	tvl_locked_quote         NUMERIC NOT NULL DEFAULT 0,
	creator_fee_ui           NUMERIC NOT NULL DEFAULT 0,
	holders_fee_ui           NUMERIC NOT NULL DEFAULT 0,
	nft_fee_ui               NUMERIC NOT NULL DEFAULT 0,
	last_update_slot         BIGINT,
	latest_liq_event_slot    BIGINT,
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dex_trades (
	signature        TEXT NOT NULL,
	pool_id          TEXT NOT NULL,
	slot             BIGINT NOT NULL,
	block_time       BIGINT,
	"user"           TEXT NOT NULL,
	in_mint          TEXT NOT NULL,
	out_mint         TEXT NOT NULL,
	amount_in_raw    NUMERIC NOT NULL,
	amount_out_raw   NUMERIC NOT NULL,
	PRIMARY KEY (signature, pool_id)
);
CREATE INDEX IF NOT EXISTS dex_trades_pool_order_idx
	ON dex_trades (pool_id, slot DESC);

CREATE TABLE IF NOT EXISTS dex_events (
	program_id   TEXT NOT NULL,
	slot         BIGINT NOT NULL,
	txn_index    INT NOT NULL,
	event_index  INT NOT NULL,
	signature    TEXT NOT NULL,
	block_time   BIGINT,
	event_type   TEXT NOT NULL,
	event_data   JSONB,
	logs         TEXT[],
	PRIMARY KEY (program_id, slot, txn_index, event_index)
);

CREATE TABLE IF NOT EXISTS dex_pool_candles (
	pool_id           TEXT NOT NULL,
	tf                TEXT NOT NULL,
	bucket_start_sec  BIGINT NOT NULL,
	open              NUMERIC NOT NULL,
	high              NUMERIC NOT NULL,
	low               NUMERIC NOT NULL,
	close             NUMERIC NOT NULL,
	volume_quote      NUMERIC NOT NULL,
	trades_count      INT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, tf, bucket_start_sec)
);

CREATE TABLE IF NOT EXISTS streamflow_vaults (
	vault_id           TEXT PRIMARY KEY,
	holders            INT NOT NULL DEFAULT 0,
	total_staked_raw   NUMERIC NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS streamflow_stakes (
	vault_id     TEXT NOT NULL,
	owner        TEXT NOT NULL,
	balance_raw  NUMERIC NOT NULL,
	PRIMARY KEY (vault_id, owner)
);

CREATE TABLE IF NOT EXISTS streamflow_events (
	vault_id           TEXT NOT NULL,
	signature          TEXT NOT NULL,
	owner              TEXT NOT NULL,
	slot               BIGINT NOT NULL,
	block_time         BIGINT NOT NULL,
	delta_raw          NUMERIC NOT NULL,
	balance_after_raw  NUMERIC NOT NULL,
	PRIMARY KEY (vault_id, signature, owner)
);

CREATE TABLE IF NOT EXISTS nft_stakes (
	nft_mint          TEXT NOT NULL,
	owner             TEXT NOT NULL,
	stake_account     TEXT,
	status            TEXT NOT NULL,
	staked_at_sec     BIGINT NOT NULL,
	lock_duration_sec BIGINT NOT NULL DEFAULT 0,
	unlock_at_sec     BIGINT,
	associated_pool   TEXT,
	PRIMARY KEY (nft_mint, owner)
);
`
