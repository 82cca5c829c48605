package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/ledger"
	"secureid/pkg/platform/sentinel"
)

// Schema for the PostgreSQL ledger store. Documents and address fingerprints
// are append-only; the primary keys are what serialize concurrent
// registrations of the same document.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	holder            TEXT PRIMARY KEY,
	proof_id          TEXT NOT NULL,
	commitment        TEXT NOT NULL,
	is_adult          BOOLEAN NOT NULL,
	liveness_verified BOOLEAN NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	deleted           BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS used_documents (
	fingerprint TEXT PRIMARY KEY,
	used_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS address_fingerprints (
	fingerprint TEXT PRIMARY KEY,
	holder      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS proof_payloads (
	proof_id TEXT PRIMARY KEY,
	payload  TEXT NOT NULL
);
`

// PostgresStore persists ledger state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the ledger schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// CreateIdentity runs the four creation effects in one transaction. The
// used_documents primary key is the serialization point: of two concurrent
// attempts on the same fingerprint exactly one insert succeeds.
func (s *PostgresStore) CreateIdentity(ctx context.Context, params ledger.CreateParams) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var deleted bool
	row := tx.QueryRowContext(ctx, `SELECT deleted FROM identities WHERE holder = $1 FOR UPDATE`, params.Holder.String())
	switch scanErr := row.Scan(&deleted); {
	case scanErr == nil:
		if !deleted {
			return sentinel.ErrConflict
		}
	case errors.Is(scanErr, sql.ErrNoRows):
		// first identity for this holder
	default:
		return fmt.Errorf("check existing identity: %w", scanErr)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO used_documents (fingerprint) VALUES ($1)`,
		params.DocumentFingerprint.Hex(),
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("mark document used: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO identities (holder, proof_id, commitment, is_adult, liveness_verified, created_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (holder) DO UPDATE SET
			proof_id = EXCLUDED.proof_id,
			commitment = EXCLUDED.commitment,
			is_adult = EXCLUDED.is_adult,
			liveness_verified = EXCLUDED.liveness_verified,
			created_at = EXCLUDED.created_at,
			deleted = FALSE
	`,
		params.Holder.String(),
		params.Record.ProofID,
		params.Record.Commitment,
		params.Record.IsAdult,
		params.Record.LivenessVerified,
		params.Record.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO address_fingerprints (fingerprint, holder)
		VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET holder = EXCLUDED.holder
	`,
		params.AddressFingerprint.Hex(),
		params.Holder.String(),
	); err != nil {
		return fmt.Errorf("record address fingerprint: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO proof_payloads (proof_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (proof_id) DO UPDATE SET payload = EXCLUDED.payload
	`,
		params.Record.ProofID,
		params.Payload,
	); err != nil {
		return fmt.Errorf("store proof payload: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create identity: %w", err)
	}
	return nil
}

// GetIdentity returns the holder's record, deleted or not.
func (s *PostgresStore) GetIdentity(ctx context.Context, holder domain.Address) (domain.IdentityRecord, error) {
	var record domain.IdentityRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT proof_id, commitment, is_adult, liveness_verified, created_at, deleted
		FROM identities WHERE holder = $1
	`, holder.String()).Scan(
		&record.ProofID,
		&record.Commitment,
		&record.IsAdult,
		&record.LivenessVerified,
		&record.CreatedAt,
		&record.Deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdentityRecord{}, sentinel.ErrNotFound
		}
		return domain.IdentityRecord{}, fmt.Errorf("get identity: %w", err)
	}
	return record, nil
}

// UpdateLiveness sets the liveness flag and replaces the payload with the
// caller-merged content in one transaction.
func (s *PostgresStore) UpdateLiveness(ctx context.Context, holder domain.Address, liveness bool, payload string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin liveness update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var proofID string
	var deleted bool
	row := tx.QueryRowContext(ctx, `SELECT proof_id, deleted FROM identities WHERE holder = $1 FOR UPDATE`, holder.String())
	if err = row.Scan(&proofID, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("load identity for liveness update: %w", err)
	}
	if deleted {
		return sentinel.ErrInvalidState
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE identities SET liveness_verified = $2 WHERE holder = $1`,
		holder.String(), liveness,
	); err != nil {
		return fmt.Errorf("update liveness flag: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO proof_payloads (proof_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (proof_id) DO UPDATE SET payload = EXCLUDED.payload
	`, proofID, payload); err != nil {
		return fmt.Errorf("update proof payload: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit liveness update: %w", err)
	}
	return nil
}

// MarkDeleted flips the deleted flag; the document fingerprint stays used.
func (s *PostgresStore) MarkDeleted(ctx context.Context, holder domain.Address) error {
	var deleted bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE identities SET deleted = TRUE
		WHERE holder = $1 AND deleted = FALSE
		RETURNING deleted
	`, holder.String()).Scan(&deleted)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mark identity deleted: %w", err)
	}

	// Distinguish "never existed" from "already deleted".
	var exists bool
	if scanErr := s.db.QueryRowContext(ctx,
		`SELECT TRUE FROM identities WHERE holder = $1`, holder.String(),
	).Scan(&exists); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("check identity existence: %w", scanErr)
	}
	return sentinel.ErrInvalidState
}

// GetPayload returns the stored payload for proofID, or empty when unknown.
func (s *PostgresStore) GetPayload(ctx context.Context, proofID string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM proof_payloads WHERE proof_id = $1`, proofID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get proof payload: %w", err)
	}
	return payload, nil
}

// IsDocumentUsed reports whether the fingerprint has ever created an identity.
func (s *PostgresStore) IsDocumentUsed(ctx context.Context, fingerprint hashing.Hash) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT TRUE FROM used_documents WHERE fingerprint = $1`, fingerprint.Hex(),
	).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check document usage: %w", err)
	}
	return true, nil
}

// ResolveFingerprint maps an address fingerprint back to its holder.
func (s *PostgresStore) ResolveFingerprint(ctx context.Context, fingerprint hashing.Hash) (domain.Address, error) {
	var holder string
	err := s.db.QueryRowContext(ctx,
		`SELECT holder FROM address_fingerprints WHERE fingerprint = $1`, fingerprint.Hex(),
	).Scan(&holder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("resolve address fingerprint: %w", err)
	}
	return domain.Address(holder), nil
}
