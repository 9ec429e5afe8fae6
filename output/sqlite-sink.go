// elImpute: a high-performance tool for imputing GBS genotypes.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/elimpute/blob/master/LICENSE.txt>.

package output

import (
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/utils"
)

const sqliteSchema = `
PRAGMA journal_mode = OFF;
PRAGMA synchronous = OFF;
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	version TEXT NOT NULL,
	started TEXT NOT NULL,
	samples INTEGER NOT NULL,
	sites INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sites (
	run TEXT NOT NULL,
	site INTEGER NOT NULL,
	name TEXT NOT NULL,
	chrom TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (run, site)
);
CREATE TABLE IF NOT EXISTS samples (
	run TEXT NOT NULL,
	sample INTEGER NOT NULL,
	name TEXT NOT NULL,
	breakpoints TEXT NOT NULL,
	PRIMARY KEY (run, sample)
);
CREATE TABLE IF NOT EXISTS calls (
	run TEXT NOT NULL,
	sample INTEGER NOT NULL,
	calls TEXT NOT NULL,
	PRIMARY KEY (run, sample)
);
`

// RunRecord is a row of the runs table.
type RunRecord struct {
	ID      string `db:"id"`
	Program string `db:"program"`
	Version string `db:"version"`
	Started string `db:"started"`
	Samples int    `db:"samples"`
	Sites   int    `db:"sites"`
}

// SampleRecord joins the samples and calls tables.
type SampleRecord struct {
	Run         string `db:"run"`
	Sample      int    `db:"sample"`
	Name        string `db:"name"`
	Breakpoints string `db:"breakpoints"`
	Calls       string `db:"calls"`
}

// SQLiteSink appends every committed sample to a SQLite database, so
// that partial results survive an interrupted run.
type SQLiteSink struct {
	DB    *sqlx.DB
	RunID string
}

func openSQLite(path string) (*sqlx.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteSink opens or creates the database and records a new run
// together with the sites of the target.
func NewSQLiteSink(path string, target *genotype.Matrix) (sink *SQLiteSink, err error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	if _, err = db.Exec(sqliteSchema); err != nil {
		return nil, pfx.Err(err)
	}
	sink = &SQLiteSink{DB: db, RunID: uuid.New().String()}
	tx, err := db.Beginx()
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.NamedExec(`INSERT INTO runs (id, program, version, started, samples, sites)
		VALUES (:id, :program, :version, :started, :samples, :sites)`, &RunRecord{
		ID:      sink.RunID,
		Program: utils.ProgramName,
		Version: utils.ProgramVersion,
		Started: time.Now().Format(time.RFC3339),
		Samples: target.NumSamples(),
		Sites:   target.NumSites(),
	}); err != nil {
		return nil, pfx.Err(err)
	}
	stmt, err := tx.Preparex(`INSERT INTO sites (run, site, name, chrom, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, pfx.Err(err)
	}
	for i, site := range target.Sites {
		if _, err = stmt.Exec(sink.RunID, i, site.Name, *site.Chrom, site.Position); err != nil {
			_ = stmt.Close()
			return nil, pfx.Err(err)
		}
	}
	if err = stmt.Close(); err != nil {
		return nil, pfx.Err(err)
	}
	if err = tx.Commit(); err != nil {
		return nil, pfx.Err(err)
	}
	return sink, nil
}

// Commit implements impute.Sink.
func (s *SQLiteSink) Commit(row impute.Row) (err error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return pfx.Err(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.Exec(`INSERT INTO samples (run, sample, name, breakpoints) VALUES (?, ?, ?, ?)`,
		s.RunID, row.Sample, row.Name, FormatBreakpoints(row.Breakpoints)); err != nil {
		return pfx.Err(err)
	}
	calls := make([]byte, len(row.Calls))
	for i, call := range row.Calls {
		calls[i] = genotype.CallString(call)
	}
	if _, err = tx.Exec(`INSERT INTO calls (run, sample, calls) VALUES (?, ?, ?)`,
		s.RunID, row.Sample, string(calls)); err != nil {
		return pfx.Err(err)
	}
	if err = tx.Commit(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// Concurrent implements impute.Sink. SQLite writes are serialized.
func (s *SQLiteSink) Concurrent() bool {
	return false
}

// Close implements impute.Sink.
func (s *SQLiteSink) Close() error {
	return s.DB.Close()
}

// ReadSQLiteRun returns the run record and the committed samples of
// a run, ordered by sample index.
func ReadSQLiteRun(path, runID string) (run RunRecord, samples []SampleRecord, err error) {
	db, err := openSQLite(path)
	if err != nil {
		return run, nil, pfx.Err(err)
	}
	defer func() {
		if nerr := db.Close(); err == nil {
			err = nerr
		}
	}()
	if err = db.Get(&run, `SELECT * FROM runs WHERE id = ?`, runID); err != nil {
		return run, nil, pfx.Err(err)
	}
	err = db.Select(&samples, `SELECT s.run, s.sample, s.name, s.breakpoints, c.calls
		FROM samples s JOIN calls c ON s.run = c.run AND s.sample = c.sample
		WHERE s.run = ? ORDER BY s.sample`, runID)
	if err != nil {
		return run, nil, pfx.Err(err)
	}
	return run, samples, nil
}
