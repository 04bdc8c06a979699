package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// QuestLogVersion is the save format version written with each row.
const QuestLogVersion = 1

var (
	// ErrChecksumMismatch is returned when a stored quest log fails verification.
	ErrChecksumMismatch = errors.New("quest log checksum mismatch")

	// ErrUnsupportedVersion is returned for rows written by a newer format.
	ErrUnsupportedVersion = errors.New("quest log version not supported")
)

// Checksum returns the hex BLAKE2b-256 digest stored alongside quest log data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveQuestLog inserts or replaces the serialized quest log for a player.
func (d *Database) SaveQuestLog(ctx context.Context, playerID string, data []byte) error {
	query := d.qb.Build(`
		INSERT INTO quest_logs (player_id, data, checksum, version, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (player_id) DO UPDATE SET
			data = excluded.data,
			checksum = excluded.checksum,
			version = excluded.version,
			updated_at = CURRENT_TIMESTAMP`)

	if _, err := d.db.ExecContext(ctx, query, playerID, data, Checksum(data), QuestLogVersion); err != nil {
		return fmt.Errorf("failed to save quest log for %s: %w", playerID, err)
	}
	return nil
}

// LoadQuestLog returns the stored quest log for a player. A player with no
// row yields (nil, false, nil).
func (d *Database) LoadQuestLog(ctx context.Context, playerID string) ([]byte, bool, error) {
	query := d.qb.Build(`SELECT data, checksum, version FROM quest_logs WHERE player_id = ?`)

	var (
		data     []byte
		checksum string
		version  int
	)
	err := d.db.QueryRowContext(ctx, query, playerID).Scan(&data, &checksum, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load quest log for %s: %w", playerID, err)
	}

	if version > QuestLogVersion {
		return nil, false, fmt.Errorf("player %s version %d: %w", playerID, version, ErrUnsupportedVersion)
	}
	if Checksum(data) != checksum {
		return nil, false, fmt.Errorf("player %s: %w", playerID, ErrChecksumMismatch)
	}
	return data, true, nil
}

// DeleteQuestLog removes a player's stored quest log.
// Returns true if a row was removed.
func (d *Database) DeleteQuestLog(ctx context.Context, playerID string) (bool, error) {
	query := d.qb.Build(`DELETE FROM quest_logs WHERE player_id = ?`)

	result, err := d.db.ExecContext(ctx, query, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete quest log for %s: %w", playerID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountQuestLogs returns the number of stored quest logs.
func (d *Database) CountQuestLogs(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quest_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quest logs: %w", err)
	}
	return count, nil
}
