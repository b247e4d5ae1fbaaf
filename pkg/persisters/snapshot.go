package persisters

import (
	"context"
	"database/sql"
	"errors"
)

// SnapshotPersister stores the listed-incremental state: one row per
// archived path with the device, inode, and mtime it was last seen
// with. New rows go to a staging table that replaces the snapshot on
// Commit, so an aborted create leaves the previous snapshot intact.
type SnapshotPersister struct {
	*SQLite
}

func NewSnapshotPersister(dbPath string) *SnapshotPersister {
	return &SnapshotPersister{
		&SQLite{
			DBPath: dbPath,
		},
	}
}

func (p *SnapshotPersister) Open() error {
	if err := p.SQLite.Open(); err != nil {
		return err
	}

	for _, table := range []string{"snapshot", "snapshot_staging"} {
		if _, err := p.DB.Exec(`
create table if not exists ` + table + ` (
	path text primary key,
	dev integer not null,
	ino integer not null,
	mtime_ns integer not null
)`); err != nil {
			return err
		}
	}

	if _, err := p.DB.Exec(`delete from snapshot_staging`); err != nil {
		return err
	}

	return nil
}

// Lookup returns the recorded mtime for path from the committed
// snapshot.
func (p *SnapshotPersister) Lookup(ctx context.Context, path string) (mtimeNs int64, ok bool, err error) {
	row := p.DB.QueryRowContext(ctx, `select mtime_ns from snapshot where path = ?`, path)

	if err := row.Scan(&mtimeNs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return mtimeNs, true, nil
}

// Record stages the current state of path for the next Commit.
func (p *SnapshotPersister) Record(ctx context.Context, path string, dev, ino uint64, mtimeNs int64) error {
	_, err := p.DB.ExecContext(
		ctx,
		`insert or replace into snapshot_staging (path, dev, ino, mtime_ns) values (?, ?, ?, ?)`,
		path, int64(dev), int64(ino), mtimeNs,
	)

	return err
}

// Commit atomically replaces the snapshot with the staged rows.
func (p *SnapshotPersister) Commit(ctx context.Context) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		`delete from snapshot`,
		`insert into snapshot select * from snapshot_staging`,
		`delete from snapshot_staging`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()

			return err
		}
	}

	return tx.Commit()
}
